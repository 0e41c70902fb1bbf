package vadstream

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/detector"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
)

const (
	testRate          = audio.SampleRate(16000)
	testFrameDuration = 30 * time.Millisecond
	testFrameLength   = 480

	leadFrames  = 60
	toneFrames  = 60
	trailFrames = 40
)

// testSignal is a quiet noise, then a 700 Hz tone, then the noise again.
func testSignal() []int16 {
	rng := rand.New(rand.NewSource(1))
	total := (leadFrames + toneFrames + trailFrames) * testFrameLength
	samples := make([]int16, total)
	for idx := range samples {
		frame := idx / testFrameLength
		if frame >= leadFrames && frame < leadFrames+toneFrames {
			t := float64(idx) / float64(testRate)
			samples[idx] = framing.SaturateInt16(6000 * math.Sin(2*math.Pi*700*t))
			continue
		}
		samples[idx] = int16(rng.Intn(101) - 50)
	}
	return samples
}

func newTestDetector(t testing.TB) *detector.Detector {
	d, err := detector.New(context.Background(), testRate, vad.ModeQuality)
	require.NoError(t, err)
	return d
}

func newTestSegmenter(t testing.TB, opts ...Option) *Segmenter {
	s, err := NewSegmenter(context.Background(), newTestDetector(t), testFrameDuration, opts...)
	require.NoError(t, err)
	return s
}

func frameTime(frames int) time.Duration {
	return time.Duration(frames) * testFrameDuration
}
