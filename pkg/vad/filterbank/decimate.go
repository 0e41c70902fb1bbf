package filterbank

import (
	"math"

	"github.com/mjibson/go-dsp/window"
)

const (
	decimate3Taps   = 33
	decimate3Cutoff = 7000.0 / 48000.0
)

// designLowPass builds a Hamming-windowed sinc low-pass with unity DC gain.
// cutoff is relative to the sample rate.
func designLowPass(taps int, cutoff float64) []float64 {
	h := window.Hamming(taps)
	center := float64(taps-1) / 2
	var sum float64
	for idx := range h {
		t := float64(idx) - center
		sinc := 2 * cutoff
		if t != 0 {
			sinc = math.Sin(2*math.Pi*cutoff*t) / (math.Pi * t)
		}
		h[idx] *= sinc
		sum += h[idx]
	}
	for idx := range h {
		h[idx] /= sum
	}
	return h
}

// decimate filters in with taps and keeps every factor-th sample. Samples
// before the frame are treated as zeros.
func decimate(in []float64, taps []float64, factor int) []float64 {
	out := make([]float64, len(in)/factor)
	for idx := range out {
		pos := idx * factor
		var acc float64
		for k, c := range taps {
			if pos-k < 0 {
				break
			}
			acc += c * in[pos-k]
		}
		out[idx] = acc
	}
	return out
}
