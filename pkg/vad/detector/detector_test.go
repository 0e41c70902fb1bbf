package detector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/classifier"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
)

const (
	toneFrequency = 700
	toneAmplitude = 6000
	warmUpFrames  = 50
)

func sine(freq, amplitude float64, rate audio.SampleRate, length, offset int) []int16 {
	out := make([]int16, length)
	for idx := range out {
		t := float64(offset+idx) / float64(rate)
		out[idx] = framing.SaturateInt16(amplitude * math.Sin(2*math.Pi*freq*t))
	}
	return out
}

type testConfig struct {
	Rate     audio.SampleRate
	Duration time.Duration
	Mode     vad.Mode
}

func (cfg testConfig) String() string {
	return fmt.Sprintf("%dHz_%v_%s", cfg.Rate, cfg.Duration, cfg.Mode)
}

func (cfg testConfig) frameLength(t testing.TB) int {
	n, err := framing.FrameLength(cfg.Rate, cfg.Duration)
	require.NoError(t, err)
	return n
}

func allConfigs() []testConfig {
	var result []testConfig
	for _, rate := range framing.SupportedSampleRates() {
		for _, d := range framing.SupportedDurations() {
			for mode := vad.ModeQuality; mode < vad.EndOfMode; mode++ {
				result = append(result, testConfig{Rate: rate, Duration: d, Mode: mode})
			}
		}
	}
	return result
}

func newDetector(t testing.TB, cfg testConfig) *Detector {
	d, err := New(context.Background(), cfg.Rate, cfg.Mode, OptionFrameDuration(cfg.Duration))
	require.NoError(t, err)
	return d
}

func TestSilenceIsNotSpeech(t *testing.T) {
	for _, cfg := range allConfigs() {
		t.Run(cfg.String(), func(t *testing.T) {
			d := newDetector(t, cfg)
			silence := make([]int16, cfg.frameLength(t))
			for idx := 0; idx < warmUpFrames+50; idx++ {
				decision, err := d.Process(silence)
				require.NoError(t, err)
				if idx >= warmUpFrames {
					assert.False(t, decision.IsSpeech, "frame %d", idx)
				}
			}
		})
	}
}

func TestToneIsSpeech(t *testing.T) {
	for _, cfg := range allConfigs() {
		t.Run(cfg.String(), func(t *testing.T) {
			d := newDetector(t, cfg)
			n := cfg.frameLength(t)
			speechFrames := 0
			const measuredFrames = 100
			for idx := 0; idx < warmUpFrames+measuredFrames; idx++ {
				decision, err := d.Process(sine(toneFrequency, toneAmplitude, cfg.Rate, n, idx*n))
				require.NoError(t, err)
				if idx >= warmUpFrames && decision.IsSpeech {
					speechFrames++
				}
			}
			assert.Greater(t, speechFrames, measuredFrames/2)
		})
	}
}

// mixedSignal is noise with tone bursts of varying loudness.
func mixedSignal(rate audio.SampleRate, frameLength, frames int) [][]int16 {
	rng := rand.New(rand.NewSource(1))
	amplitudes := []float64{0, 200, 800, 2000, 0, 5000, 400, 0, 10000, 100}
	result := make([][]int16, frames)
	for idx := range result {
		amplitude := amplitudes[(idx/7)%len(amplitudes)]
		frame := sine(toneFrequency, amplitude, rate, frameLength, idx*frameLength)
		for pos := range frame {
			frame[pos] = framing.SaturateInt16(float64(frame[pos]) + rng.NormFloat64()*150)
		}
		result[idx] = frame
	}
	return result
}

func TestSpeechCountGrowsWithMode(t *testing.T) {
	for _, rate := range framing.SupportedSampleRates() {
		for _, duration := range framing.SupportedDurations() {
			t.Run(fmt.Sprintf("%dHz_%v", rate, duration), func(t *testing.T) {
				frameLength, err := framing.FrameLength(rate, duration)
				require.NoError(t, err)
				frames := mixedSignal(rate, frameLength, 300)

				prevCount := -1
				for mode := vad.ModeQuality; mode < vad.EndOfMode; mode++ {
					d := newDetector(t, testConfig{Rate: rate, Duration: duration, Mode: mode})
					count := 0
					for _, frame := range frames {
						decision, err := d.Process(frame)
						require.NoError(t, err)
						if decision.IsSpeech {
							count++
						}
					}
					assert.GreaterOrEqual(t, count, prevCount, "mode %s", mode)
					prevCount = count
				}
			})
		}
	}
}

func TestHangoverAfterBurst(t *testing.T) {
	for _, cfg := range allConfigs() {
		t.Run(cfg.String(), func(t *testing.T) {
			d := newDetector(t, cfg)
			n := cfg.frameLength(t)
			short, _, err := classifier.HangoverFrames(cfg.Mode, cfg.Duration)
			require.NoError(t, err)

			var decisions []bool
			process := func(frame []int16) {
				decision, err := d.Process(frame)
				require.NoError(t, err)
				decisions = append(decisions, decision.IsSpeech)
			}
			for idx := 0; idx < warmUpFrames+10; idx++ {
				process(make([]int16, n))
			}
			const burstFrames = 3
			for idx := 0; idx < burstFrames; idx++ {
				process(sine(toneFrequency, toneAmplitude, cfg.Rate, n, idx*n))
			}
			for idx := 0; idx < 40; idx++ {
				process(make([]int16, n))
			}

			start := -1
			for idx, isSpeech := range decisions {
				if isSpeech {
					start = idx
					break
				}
			}
			require.GreaterOrEqual(t, start, 0, "no speech detected")
			run := 0
			for _, isSpeech := range decisions[start:] {
				if !isSpeech {
					break
				}
				run++
			}
			assert.GreaterOrEqual(t, run, short)
			assert.GreaterOrEqual(t, run, burstFrames+short)
			assert.False(t, decisions[len(decisions)-1])
		})
	}
}

func TestUnsupportedSampleRate(t *testing.T) {
	_, err := New(context.Background(), 44100, vad.ModeQuality)
	var errRate vad.ErrUnsupportedSampleRate
	require.True(t, errors.As(err, &errRate), "%v", err)
	assert.Equal(t, audio.SampleRate(44100), errRate.SampleRate)
}

func TestInvalidAggressivenessLevel(t *testing.T) {
	for _, mode := range []vad.Mode{-1, 4, 100} {
		_, err := New(context.Background(), 16000, mode)
		var errMode vad.ErrInvalidAggressivenessLevel
		require.True(t, errors.As(err, &errMode), "%v", err)
		assert.Equal(t, mode, errMode.Mode)
	}
}

func TestInvalidFrameLength(t *testing.T) {
	d, err := New(context.Background(), 16000, vad.ModeAggressive)
	require.NoError(t, err)

	for _, length := range []int{0, 1, 100, 159, 161, 640} {
		_, err := d.Process(make([]int16, length))
		var errLen vad.ErrInvalidFrameLength
		require.True(t, errors.As(err, &errLen), "length %d: %v", length, err)
		assert.Equal(t, length, errLen.Length)
	}

	_, err = d.ProcessS16LE(make([]byte, 321))
	require.Error(t, err)

	t.Run("restricted_duration", func(t *testing.T) {
		d, err := New(context.Background(), 16000, vad.ModeAggressive, OptionFrameDuration(20*time.Millisecond))
		require.NoError(t, err)
		_, err = d.Process(make([]int16, 160))
		var errLen vad.ErrInvalidFrameLength
		require.True(t, errors.As(err, &errLen), "%v", err)
		_, err = d.Process(make([]int16, 320))
		require.NoError(t, err)
	})

	t.Run("unsupported_duration_option", func(t *testing.T) {
		_, err := New(context.Background(), 16000, vad.ModeAggressive, OptionFrameDuration(25*time.Millisecond))
		require.Error(t, err)
	})
}

func TestDeterminism(t *testing.T) {
	cfg := testConfig{Rate: 32000, Duration: 20 * time.Millisecond, Mode: vad.ModeLowBitrate}
	frames := mixedSignal(cfg.Rate, cfg.frameLength(t), 200)

	run := func() []vad.Decision {
		d := newDetector(t, cfg)
		var result []vad.Decision
		for _, frame := range frames {
			decision, err := d.Process(frame)
			require.NoError(t, err)
			result = append(result, decision)
		}
		return result
	}
	assert.Equal(t, run(), run())
}

func TestReset(t *testing.T) {
	cfg := testConfig{Rate: 8000, Duration: 10 * time.Millisecond, Mode: vad.ModeVeryAggressive}
	frames := mixedSignal(cfg.Rate, cfg.frameLength(t), 120)

	d := newDetector(t, cfg)
	var first []vad.Decision
	for _, frame := range frames {
		decision, err := d.Process(frame)
		require.NoError(t, err)
		first = append(first, decision)
	}

	d.Reset()
	assert.Equal(t, cfg.Mode, d.Mode())
	assert.Equal(t, cfg.Rate, d.SampleRate())
	var second []vad.Decision
	for _, frame := range frames {
		decision, err := d.Process(frame)
		require.NoError(t, err)
		second = append(second, decision)
	}
	assert.Equal(t, first, second)
}

func TestFullScaleInput(t *testing.T) {
	for _, rate := range framing.SupportedSampleRates() {
		d, err := New(context.Background(), rate, vad.ModeQuality)
		require.NoError(t, err)
		n, err := framing.FrameLength(rate, 30*time.Millisecond)
		require.NoError(t, err)

		frame := make([]int16, n)
		for idx := range frame {
			if (idx/8)%2 == 0 {
				frame[idx] = math.MaxInt16
			} else {
				frame[idx] = math.MinInt16
			}
		}
		for idx := 0; idx < 20; idx++ {
			decision, err := d.Process(frame)
			require.NoError(t, err)
			assert.False(t, math.IsNaN(decision.Score))
			assert.False(t, math.IsInf(decision.Score, 0))
		}
		for _, band := range d.ModelState().Bands {
			assert.GreaterOrEqual(t, band.Noise.Variance, 9.0)
			assert.GreaterOrEqual(t, band.Speech.Variance, 9.0)
		}
	}
}

func TestProcessAll(t *testing.T) {
	cfg := testConfig{Rate: 16000, Duration: 30 * time.Millisecond, Mode: vad.ModeAggressive}
	frames := mixedSignal(cfg.Rate, cfg.frameLength(t), 50)
	var samples []int16
	for _, frame := range frames {
		samples = append(samples, frame...)
	}

	d0, err := New(context.Background(), cfg.Rate, cfg.Mode)
	require.NoError(t, err)
	all, err := d0.ProcessAll(samples, cfg.Duration)
	require.NoError(t, err)
	require.Len(t, all, len(frames))

	d1 := newDetector(t, cfg)
	for idx, frame := range frames {
		decision, err := d1.ProcessS16LE(framing.SamplesToS16LE(frame))
		require.NoError(t, err)
		assert.Equal(t, all[idx], decision, "frame %d", idx)
	}

	_, err = d0.ProcessAll(samples[:len(samples)-1], cfg.Duration)
	require.Error(t, err)
}

func TestSetMode(t *testing.T) {
	d, err := New(context.Background(), 16000, vad.ModeQuality)
	require.NoError(t, err)
	require.NoError(t, d.SetMode(vad.ModeVeryAggressive))
	assert.Equal(t, vad.ModeVeryAggressive, d.Mode())

	err = d.SetMode(7)
	var errMode vad.ErrInvalidAggressivenessLevel
	require.True(t, errors.As(err, &errMode), "%v", err)
	assert.Equal(t, vad.ModeVeryAggressive, d.Mode())
}

func BenchmarkProcess(b *testing.B) {
	for _, rate := range framing.SupportedSampleRates() {
		b.Run(fmt.Sprintf("%dHz", rate), func(b *testing.B) {
			cfg := testConfig{Rate: rate, Duration: 30 * time.Millisecond, Mode: vad.ModeAggressive}
			d := newDetector(b, cfg)
			frame := sine(toneFrequency, toneAmplitude, rate, cfg.frameLength(b), 0)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = d.Process(frame)
			}
		})
	}
}
