package framing

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad"
)

func TestFrameLength(t *testing.T) {
	for _, rate := range SupportedSampleRates() {
		for _, d := range SupportedDurations() {
			n, err := FrameLength(rate, d)
			require.NoError(t, err)
			assert.Equal(t, int(rate)/1000*int(d/time.Millisecond), n)

			back, err := DurationOf(rate, n)
			require.NoError(t, err)
			assert.Equal(t, d, back)
		}
	}

	_, err := FrameLength(44100, 10*time.Millisecond)
	var errRate vad.ErrUnsupportedSampleRate
	require.True(t, errors.As(err, &errRate), "%v", err)
	assert.Equal(t, audio.SampleRate(44100), errRate.SampleRate)

	_, err = FrameLength(16000, 15*time.Millisecond)
	require.Error(t, err)
}

func TestNewFrame(t *testing.T) {
	t.Run("copies_input", func(t *testing.T) {
		samples := make([]int16, 160)
		samples[0] = 42
		frame, err := NewFrame(samples, 16000)
		require.NoError(t, err)
		samples[0] = 0
		assert.Equal(t, int16(42), frame.At(0))
		assert.Equal(t, 10*time.Millisecond, frame.Duration())

		out := frame.Samples()
		out[0] = 1
		assert.Equal(t, int16(42), frame.At(0))
	})

	t.Run("invalid_length", func(t *testing.T) {
		_, err := NewFrame(make([]int16, 100), 8000)
		var errLen vad.ErrInvalidFrameLength
		require.True(t, errors.As(err, &errLen), "%v", err)
		assert.Equal(t, 100, errLen.Length)
	})
}

func TestSplit(t *testing.T) {
	samples := make([]int16, 240*3)
	for idx := range samples {
		samples[idx] = int16(idx)
	}
	frames, err := Split(samples, 8000, 30*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, int16(240), frames[1].At(0))

	_, err = Split(samples[:500], 8000, 30*time.Millisecond)
	var errLen vad.ErrInvalidFrameLength
	require.True(t, errors.As(err, &errLen), "%v", err)
}

func TestS16LE(t *testing.T) {
	in := []int16{0, 1, -1, math.MaxInt16, math.MinInt16}
	out, err := SamplesFromS16LE(SamplesToS16LE(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = SamplesFromS16LE([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestSamplesFromFloat32Saturates(t *testing.T) {
	out := SamplesFromFloat32([]float32{0, 0.5, 2, -2, float32(math.NaN())})
	assert.Equal(t, []int16{0, 16384, math.MaxInt16, math.MinInt16, 0}, out)
}
