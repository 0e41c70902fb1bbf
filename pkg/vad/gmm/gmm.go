// Package gmm keeps the per-band Gaussian models of speech and noise levels
// and turns band levels into log-likelihood ratios.
package gmm

import (
	"math"

	"github.com/xaionaro-go/voiceactivity/pkg/vad/filterbank"
)

const (
	// MaxRatio saturates the per-band log2 likelihood ratios.
	MaxRatio = 31

	// SilenceEnergy is the frame mean square below which the frame is
	// treated as digital silence: the models are not adapted and every band
	// votes for noise.
	SilenceEnergy = 10

	MinVariance = 9 // (3 dB)^2
	MaxVariance = 400

	MinSeparation = 6
	MaxNoiseMean  = 80
	MaxSpeechMean = 95

	NoiseAdaptRate  = 0.05
	SpeechAdaptRate = 0.02
	FloorAdaptRate  = 0.05
	FloorFallRate   = 0.1
	FloorRiseRate   = 0.003

	// a frame is taken as speech for speech model adaptation when its
	// weighted score is positive or a band is at least this confident
	referenceBandRatio = 8
)

var (
	initialNoiseMeans  = []float64{32, 30, 28, 26, 24, 22, 20}
	initialSpeechMeans = []float64{58, 60, 58, 54, 50, 46, 42}
	bandWeights        = []float64{6, 8, 10, 12, 14, 16, 8}
)

const (
	initialNoiseVariance  = 36
	initialSpeechVariance = 100
	initialNoiseLevel     = 30
)

// Gaussian is a normal distribution over a band level in dB.
type Gaussian struct {
	Mean     float64
	Variance float64
}

// LogDensity returns the natural logarithm of the density at x.
func (g Gaussian) LogDensity(x float64) float64 {
	d := x - g.Mean
	return -0.5*math.Log(2*math.Pi*g.Variance) - d*d/(2*g.Variance)
}

type BandModel struct {
	Speech Gaussian
	Noise  Gaussian

	// Floor follows the minimum of the band level: it falls fast and
	// rises slowly.
	Floor float64
}

// State is the adaptive model of a single stream.
type State struct {
	Bands []BandModel

	// NoiseLevel is the smoothed background level of whole frames, dB.
	NoiseLevel float64
}

func NewState(bandCount int) *State {
	s := &State{
		Bands: make([]BandModel, bandCount),
	}
	s.Reset()
	return s
}

// Reset restores the initial models without reallocating.
func (s *State) Reset() {
	for idx := range s.Bands {
		s.Bands[idx] = BandModel{
			Speech: Gaussian{Mean: initialSpeechMeans[idx], Variance: initialSpeechVariance},
			Noise:  Gaussian{Mean: initialNoiseMeans[idx], Variance: initialNoiseVariance},
			Floor:  initialNoiseMeans[idx],
		}
	}
	s.NoiseLevel = initialNoiseLevel
}

type Result struct {
	// Ratios are the per-band log2 likelihood ratios of speech vs noise,
	// within [-MaxRatio, MaxRatio].
	Ratios []float64

	// Silent is true when the frame was below SilenceEnergy.
	Silent bool

	// SpeechLike is the mode independent verdict used to adapt the speech
	// models.
	SpeechLike bool
}

// Update scores the frame against the models and then adapts them. The
// noise models adapt on every non-silent frame; the speech models adapt
// only when this frame is SpeechLike, so the adaptation does not depend
// on the mode or on earlier decisions.
func (s *State) Update(features filterbank.Features) Result {
	s.updateNoiseLevel(features.Level)

	result := Result{
		Ratios: make([]float64, len(s.Bands)),
	}
	if features.Energy < SilenceEnergy {
		for idx := range result.Ratios {
			result.Ratios[idx] = -MaxRatio
		}
		result.Silent = true
		return result
	}

	logRatios := make([]float64, len(s.Bands))
	for idx := range s.Bands {
		band := &s.Bands[idx]
		x := features.Levels[idx]
		llr := band.Speech.LogDensity(x) - band.Noise.LogDensity(x)
		if x <= band.Noise.Mean && llr > 0 {
			llr = 0
		}
		logRatios[idx] = llr
		result.Ratios[idx] = saturate(llr/math.Ln2, MaxRatio)
	}
	result.SpeechLike = IsSpeechLike(result.Ratios)

	for idx := range s.Bands {
		s.Bands[idx].adapt(features.Levels[idx], logRatios[idx], result.SpeechLike)
	}
	return result
}

func (b *BandModel) adapt(x, llr float64, speechLike bool) {
	pSpeech := 1 / (1 + math.Exp(-saturate(llr, 50)))
	pNoise := 1 - pSpeech

	d := x - b.Noise.Mean
	b.Noise.Mean += NoiseAdaptRate * pNoise * d
	b.Noise.Variance += NoiseAdaptRate * pNoise * (d*d - b.Noise.Variance)

	if speechLike {
		d := x - b.Speech.Mean
		b.Speech.Mean += SpeechAdaptRate * pSpeech * d
		b.Speech.Variance += SpeechAdaptRate * pSpeech * (d*d - b.Speech.Variance)
	}

	if x < b.Floor {
		b.Floor += FloorFallRate * (x - b.Floor)
	} else {
		b.Floor += FloorRiseRate * (x - b.Floor)
	}
	b.Noise.Mean += FloorAdaptRate * (b.Floor - b.Noise.Mean)

	b.constrain()
}

func (b *BandModel) constrain() {
	b.Noise.Variance = clamp(b.Noise.Variance, MinVariance, MaxVariance)
	b.Speech.Variance = clamp(b.Speech.Variance, MinVariance, MaxVariance)
	b.Noise.Mean = clamp(b.Noise.Mean, 0, MaxNoiseMean)

	if gap := b.Speech.Mean - b.Noise.Mean; gap < MinSeparation {
		deficit := MinSeparation - gap
		b.Speech.Mean += 0.8 * deficit
		b.Noise.Mean = math.Max(0, b.Noise.Mean-0.2*deficit)
	}
	b.Speech.Mean = clamp(b.Speech.Mean, b.Noise.Mean+MinSeparation, MaxSpeechMean)
}

func (s *State) updateNoiseLevel(level float64) {
	if level < s.NoiseLevel {
		s.NoiseLevel += FloorFallRate * (level - s.NoiseLevel)
	} else {
		s.NoiseLevel += FloorRiseRate * (level - s.NoiseLevel)
	}
}

// WeightedScore is the weighted mean of the per-band ratios; higher bands
// weigh more, the 4-8 kHz band is weighted as the 250-500 Hz one.
func WeightedScore(ratios []float64) float64 {
	var sum, weights float64
	for idx, r := range ratios {
		sum += bandWeights[idx] * r
		weights += bandWeights[idx]
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

func IsSpeechLike(ratios []float64) bool {
	if WeightedScore(ratios) > 0 {
		return true
	}
	for _, r := range ratios {
		if r >= referenceBandRatio {
			return true
		}
	}
	return false
}

func saturate(v, limit float64) float64 {
	return clamp(v, -limit, limit)
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
