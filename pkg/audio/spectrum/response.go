package spectrum

import (
	"fmt"
	"math"
	"time"

	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/filterbank"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
)

// Response is the filterbank output for a reference tone.
type Response struct {
	Frequency float64
	Levels    []float64
}

// Strongest is the index of the band with the highest level.
func (r Response) Strongest() int {
	best := 0
	for idx, l := range r.Levels {
		if l > r.Levels[best] {
			best = idx
		}
	}
	return best
}

// Sweep feeds a frame of a sine of every given frequency through the
// filterbank of the rate.
func Sweep(
	rate audio.SampleRate,
	frameDuration time.Duration,
	amplitude float64,
	frequencies []float64,
) ([]Response, error) {
	fb, err := filterbank.New(rate)
	if err != nil {
		return nil, err
	}
	length, err := framing.FrameLength(rate, frameDuration)
	if err != nil {
		return nil, err
	}

	samples := make([]int16, length)
	result := make([]Response, 0, len(frequencies))
	for _, freq := range frequencies {
		if freq <= 0 || freq >= float64(rate)/2 {
			return nil, fmt.Errorf("the frequency %v is out of (0, %d)", freq, rate/2)
		}
		for idx := range samples {
			t := float64(idx) / float64(rate)
			samples[idx] = framing.SaturateInt16(amplitude * math.Sin(2*math.Pi*freq*t))
		}
		frame, err := framing.NewFrame(samples, rate)
		if err != nil {
			return nil, err
		}
		result = append(result, Response{
			Frequency: freq,
			Levels:    fb.Extract(frame).Levels,
		})
	}
	return result, nil
}

// LogFrequencies returns count frequencies spread logarithmically over
// [low, high].
func LogFrequencies(low, high float64, count int) []float64 {
	if count < 2 {
		return []float64{low}
	}
	result := make([]float64, count)
	ratio := math.Pow(high/low, 1/float64(count-1))
	f := low
	for idx := range result {
		result[idx] = f
		f *= ratio
	}
	return result
}
