package filterbank

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
)

func sineFrame(t *testing.T, freq, amplitude float64, rate audio.SampleRate, d time.Duration) framing.Frame {
	n, err := framing.FrameLength(rate, d)
	require.NoError(t, err)
	samples := make([]int16, n)
	for idx := range samples {
		samples[idx] = framing.SaturateInt16(amplitude * math.Sin(2*math.Pi*freq*float64(idx)/float64(rate)))
	}
	frame, err := framing.NewFrame(samples, rate)
	require.NoError(t, err)
	return frame
}

func TestBandCount(t *testing.T) {
	assert.Equal(t, 6, BandCount(8000))
	assert.Equal(t, 6, BandCount(16000))
	assert.Equal(t, 6, BandCount(32000))
	assert.Equal(t, 7, BandCount(48000))
	assert.Equal(t, Band{Low: 4000, High: 8000}, Bands(48000)[6])

	_, err := New(44100)
	require.Error(t, err)
}

func TestSilence(t *testing.T) {
	for _, rate := range framing.SupportedSampleRates() {
		fb, err := New(rate)
		require.NoError(t, err)
		frame, err := framing.NewFrame(make([]int16, int(rate)/100), rate)
		require.NoError(t, err)
		features := fb.Extract(frame)
		assert.Len(t, features.Levels, BandCount(rate))
		assert.Zero(t, features.Energy)
		for _, l := range features.Levels {
			assert.Zero(t, l)
		}
	}
}

func TestToneLandsInItsBand(t *testing.T) {
	cases := []struct {
		Frequency float64
		Band      int
	}{
		{Frequency: 700, Band: 2},
		{Frequency: 1400, Band: 3},
	}
	for _, rate := range framing.SupportedSampleRates() {
		fb, err := New(rate)
		require.NoError(t, err)
		for _, c := range cases {
			features := fb.Extract(sineFrame(t, c.Frequency, 6000, rate, 30*time.Millisecond))

			best := 0
			for idx, l := range features.Levels {
				if l > features.Levels[best] {
					best = idx
				}
			}
			assert.Equal(t, c.Band, best, "rate %d, frequency %v: %v", rate, c.Frequency, features.Levels)
			// a sine of amplitude A has the power of A^2/2
			assert.InDelta(t, 10*math.Log10(6000*6000/2), features.Levels[c.Band], 3)
			assert.InDelta(t, 10*math.Log10(6000*6000/2), features.Level, 0.5)
		}
	}
}

func TestFullScaleIsFinite(t *testing.T) {
	for _, rate := range framing.SupportedSampleRates() {
		fb, err := New(rate)
		require.NoError(t, err)
		samples := make([]int16, int(rate)/100*3)
		for idx := range samples {
			samples[idx] = math.MinInt16
			if idx%2 == 0 {
				samples[idx] = math.MaxInt16
			}
		}
		frame, err := framing.NewFrame(samples, rate)
		require.NoError(t, err)
		features := fb.Extract(frame)
		for _, l := range features.Levels {
			assert.False(t, math.IsNaN(l))
			assert.GreaterOrEqual(t, l, 0.0)
			assert.LessOrEqual(t, l, float64(MaxLevel))
		}
	}
}

func TestDesignLowPass(t *testing.T) {
	h := designLowPass(decimate3Taps, decimate3Cutoff)
	require.Len(t, h, decimate3Taps)
	var sum float64
	for idx := range h {
		sum += h[idx]
		assert.InDelta(t, h[idx], h[len(h)-1-idx], 1e-12)
	}
	assert.InDelta(t, 1, sum, 1e-9)
}
