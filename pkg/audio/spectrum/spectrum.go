// Package spectrum measures frames in the frequency domain; it is a
// diagnostic counterpart of the filterbank.
package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/brettbuddin/fourier"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/filterbank"
)

// Spectrum is a one-sided power spectrum: the sum of Power equals the
// mean square of the (windowed and compensated) signal.
type Spectrum struct {
	SampleRate audio.SampleRate
	Size       int
	Power      []float64
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// transform uses the in-place radix-2 FFT when possible, and the generic
// one otherwise.
func transform(x []float64) ([]complex128, error) {
	if !isPowerOfTwo(len(x)) {
		return fft.FFTReal(x), nil
	}
	coeffs := make([]complex128, len(x))
	for idx, v := range x {
		coeffs[idx] = complex(v, 0)
	}
	if err := fourier.Forward(coeffs); err != nil {
		return nil, fmt.Errorf("unable to transform: %w", err)
	}
	return coeffs, nil
}

// Power computes the Hann-windowed power spectrum of the samples.
func Power(samples []float64, rate audio.SampleRate) (Spectrum, error) {
	n := len(samples)
	if n < 2 {
		return Spectrum{}, fmt.Errorf("at least 2 samples are required, received %d", n)
	}
	w := window.Hann(n)
	var windowPower float64
	windowed := make([]float64, n)
	for idx, v := range samples {
		windowed[idx] = v * w[idx]
		windowPower += w[idx] * w[idx]
	}
	windowPower /= float64(n)

	coeffs, err := transform(windowed)
	if err != nil {
		return Spectrum{}, err
	}

	norm := 1 / (float64(n) * float64(n) * windowPower)
	power := make([]float64, n/2+1)
	for bin := range power {
		p := cmplx.Abs(coeffs[bin])
		p = p * p * norm
		if bin != 0 && !(n%2 == 0 && bin == n/2) {
			p *= 2
		}
		power[bin] = p
	}
	return Spectrum{
		SampleRate: rate,
		Size:       n,
		Power:      power,
	}, nil
}

func (s Spectrum) BinFrequency(bin int) float64 {
	return float64(bin) * float64(s.SampleRate) / float64(s.Size)
}

// Peak is the frequency of the strongest non-DC bin.
func (s Spectrum) Peak() float64 {
	best := 1
	for bin := 1; bin < len(s.Power); bin++ {
		if s.Power[bin] > s.Power[best] {
			best = bin
		}
	}
	return s.BinFrequency(best)
}

// BandLevel is the level of the band in dB, on the scale of
// filterbank.Features.Levels.
func (s Spectrum) BandLevel(band filterbank.Band) float64 {
	var sum float64
	for bin := range s.Power {
		f := s.BinFrequency(bin)
		if f >= band.Low && f < band.High {
			sum += s.Power[bin]
		}
	}
	return min(10*math.Log10(sum+1), filterbank.MaxLevel)
}

// BandLevels measures all the filterbank bands of the rate.
func (s Spectrum) BandLevels() []float64 {
	bands := filterbank.Bands(s.SampleRate)
	levels := make([]float64, len(bands))
	for idx, band := range bands {
		levels[idx] = s.BandLevel(band)
	}
	return levels
}
