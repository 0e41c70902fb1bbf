// Package filterbank splits a frame into sub-bands and measures their
// energies in dB.
package filterbank

import (
	"math"

	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
)

const (
	// MaxLevel is the ceiling of a band level, in dB.
	MaxLevel = 100
)

// Band is the nominal range of a sub-band in Hz.
type Band struct {
	Low  float64
	High float64
}

var bands = []Band{
	{80, 250},
	{250, 500},
	{500, 1000},
	{1000, 2000},
	{2000, 3000},
	{3000, 4000},
	{4000, 8000},
}

// Bands returns the sub-bands measured at the given rate.
func Bands(rate audio.SampleRate) []Band {
	return append([]Band(nil), bands[:BandCount(rate)]...)
}

// BandCount is 6, or 7 at 48 kHz where the 4-8 kHz band is measured too.
func BandCount(rate audio.SampleRate) int {
	if rate == 48000 {
		return 7
	}
	return 6
}

type Features struct {
	// Levels are the per-band levels, dB.
	Levels []float64

	// Energy is the mean square of the frame.
	Energy float64

	// Level is Energy in dB.
	Level float64
}

type Filterbank struct {
	sampleRate audio.SampleRate
	fir        []float64
}

func New(rate audio.SampleRate) (*Filterbank, error) {
	if err := framing.ValidateSampleRate(rate); err != nil {
		return nil, err
	}
	fb := &Filterbank{
		sampleRate: rate,
	}
	if rate == 48000 {
		fb.fir = designLowPass(decimate3Taps, decimate3Cutoff)
	}
	return fb, nil
}

func (fb *Filterbank) SampleRate() audio.SampleRate {
	return fb.sampleRate
}

func (fb *Filterbank) BandCount() int {
	return BandCount(fb.sampleRate)
}

// Decompose returns the sub-band signals of samples (at their own reduced
// rates), in the order of Bands. Every call starts with zeroed filters.
func (fb *Filterbank) Decompose(samples []float64) [][]float64 {
	var upper []float64
	x := samples
	switch fb.sampleRate {
	case 16000:
		_, x = split(x)
	case 32000:
		_, x = split(x)
		_, x = split(x)
	case 48000:
		x = decimate(x, fb.fir, 3)
		upper, x = split(x)
	}

	out := make([][]float64, 0, fb.BandCount())

	hi, lo := split(x)

	// the upper half is inverted, so its lower part is 3-4 kHz
	hi2k, hi3k := split(hi)

	b1k, lo1k := split(lo)
	b500, lo500 := split(lo1k)
	b250, lo250 := split(lo500)
	b80 := highPass(lo250)

	out = append(out, b80, b250, b500, b1k, hi2k, hi3k)
	if upper != nil {
		out = append(out, upper)
	}
	return out
}

// Extract measures the levels of the frame's sub-bands.
func (fb *Filterbank) Extract(frame framing.Frame) Features {
	samples := make([]float64, frame.Len())
	var sum float64
	for idx := range samples {
		v := float64(frame.At(idx))
		samples[idx] = v
		sum += v * v
	}

	result := Features{
		Levels: make([]float64, 0, fb.BandCount()),
	}
	if len(samples) > 0 {
		result.Energy = sum / float64(len(samples))
	}
	result.Level = level(result.Energy)

	for _, band := range fb.Decompose(samples) {
		result.Levels = append(result.Levels, level(meanSquare(band)))
	}
	return result
}

func meanSquare(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum / float64(len(x))
}

func level(energy float64) float64 {
	db := 10 * math.Log10(energy+1)
	switch {
	case math.IsNaN(db) || db < 0:
		return 0
	case db > MaxLevel:
		return MaxLevel
	}
	return db
}
