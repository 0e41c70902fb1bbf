package gmm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/filterbank"
)

func features(levels ...float64) filterbank.Features {
	var maxLevel float64
	for _, l := range levels {
		maxLevel = math.Max(maxLevel, l)
	}
	return filterbank.Features{
		Levels: levels,
		Energy: math.Pow(10, maxLevel/10),
		Level:  maxLevel,
	}
}

func TestSilentFrame(t *testing.T) {
	s := NewState(6)
	before := *s
	before.Bands = append([]BandModel(nil), s.Bands...)

	r := s.Update(filterbank.Features{Levels: make([]float64, 6)})
	assert.True(t, r.Silent)
	assert.False(t, r.SpeechLike)
	for _, ratio := range r.Ratios {
		assert.Equal(t, -float64(MaxRatio), ratio)
	}
	assert.Equal(t, before.Bands, s.Bands)
}

func TestLoudBandIsSpeech(t *testing.T) {
	s := NewState(6)
	r := s.Update(features(44, 50, 72, 40, 30, 27))
	assert.False(t, r.Silent)
	assert.True(t, r.SpeechLike)
	assert.Equal(t, float64(MaxRatio), r.Ratios[2])
}

func TestBelowNoiseMeanIsNotSpeechEvidence(t *testing.T) {
	s := NewState(6)
	for idx := range s.Bands {
		s.Bands[idx].Noise = Gaussian{Mean: 40, Variance: 9}
		s.Bands[idx].Speech = Gaussian{Mean: 46, Variance: 400}
	}
	// the wide speech Gaussian is denser here than the narrow noise one
	require.Greater(t, s.Bands[0].Speech.LogDensity(30), s.Bands[0].Noise.LogDensity(30))

	r := s.Update(features(30, 30, 30, 30, 30, 30))
	for idx, ratio := range r.Ratios {
		assert.Zero(t, ratio, "band %d", idx)
	}
}

func TestInvariants(t *testing.T) {
	s := NewState(7)
	levels := [][]float64{
		{100, 100, 100, 100, 100, 100, 100},
		{0, 0, 0, 0, 0, 0, 0},
		{50, 20, 90, 10, 60, 30, 70},
		{12, 12, 12, 12, 12, 12, 12},
	}
	for i := 0; i < 2000; i++ {
		s.Update(features(levels[i%len(levels)]...))
		for idx, band := range s.Bands {
			require.GreaterOrEqual(t, band.Noise.Variance, float64(MinVariance), "band %d", idx)
			require.GreaterOrEqual(t, band.Speech.Variance, float64(MinVariance), "band %d", idx)
			require.LessOrEqual(t, band.Noise.Variance, float64(MaxVariance), "band %d", idx)
			require.GreaterOrEqual(t, band.Speech.Mean-band.Noise.Mean, float64(MinSeparation)-1e-9, "band %d", idx)
			require.False(t, math.IsNaN(band.Speech.Mean))
		}
	}
}

func TestNoiseAdaptsToStationaryLevel(t *testing.T) {
	s := NewState(6)
	initial := s.Bands[0].Noise.Mean
	for i := 0; i < 1000; i++ {
		s.Update(features(45, 45, 45, 45, 45, 45))
	}
	assert.Greater(t, s.Bands[0].Noise.Mean, initial+5)
	assert.Less(t, s.Bands[0].Noise.Mean, 46.0)
}

func TestReset(t *testing.T) {
	s := NewState(6)
	fresh := NewState(6)
	for i := 0; i < 50; i++ {
		s.Update(features(60, 60, 60, 60, 60, 60))
	}
	require.NotEqual(t, fresh.Bands, s.Bands)
	bands := s.Bands
	s.Reset()
	assert.Equal(t, fresh, s)
	assert.Same(t, &bands[0], &s.Bands[0])
}

func TestWeightedScore(t *testing.T) {
	assert.InDelta(t, 3, WeightedScore([]float64{3, 3, 3, 3, 3, 3}), 1e-12)
	assert.InDelta(t, 16.0/66, WeightedScore([]float64{0, 0, 0, 0, 0, 1}), 1e-12)
	assert.Zero(t, WeightedScore(nil))
}

func TestSpeechModelsAdaptOnlyOnSpeechLikeFrames(t *testing.T) {
	s := NewState(6)
	speechBefore := make([]Gaussian, len(s.Bands))
	for idx := range s.Bands {
		speechBefore[idx] = s.Bands[idx].Speech
	}

	r := s.Update(features(initialNoiseMeans[:6]...))
	require.False(t, r.SpeechLike)
	for idx := range s.Bands {
		assert.Equal(t, speechBefore[idx], s.Bands[idx].Speech, "band %d", idx)
	}

	r = s.Update(features(44, 50, 72, 40, 30, 27))
	require.True(t, r.SpeechLike)
	assert.NotEqual(t, speechBefore[2], s.Bands[2].Speech)
}
