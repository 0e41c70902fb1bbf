// Package framing validates and cuts PCM into the frames a detector accepts.
package framing

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad"
)

var (
	supportedSampleRates = []audio.SampleRate{8000, 16000, 32000, 48000}
	supportedDurations   = []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
)

func SupportedSampleRates() []audio.SampleRate {
	return append([]audio.SampleRate(nil), supportedSampleRates...)
}

func SupportedDurations() []time.Duration {
	return append([]time.Duration(nil), supportedDurations...)
}

func ValidateSampleRate(rate audio.SampleRate) error {
	for _, r := range supportedSampleRates {
		if r == rate {
			return nil
		}
	}
	return vad.ErrUnsupportedSampleRate{SampleRate: rate}
}

func ValidateDuration(d time.Duration) error {
	if DurationIndex(d) < 0 {
		return fmt.Errorf("unsupported frame duration %v (supported: 10ms, 20ms, 30ms)", d)
	}
	return nil
}

// DurationIndex returns the position of d in SupportedDurations, or -1.
func DurationIndex(d time.Duration) int {
	for idx, s := range supportedDurations {
		if s == d {
			return idx
		}
	}
	return -1
}

// FrameLength returns the amount of samples in a frame of the given duration.
func FrameLength(rate audio.SampleRate, d time.Duration) (int, error) {
	if err := ValidateSampleRate(rate); err != nil {
		return 0, err
	}
	if err := ValidateDuration(d); err != nil {
		return 0, err
	}
	return int(uint64(rate) * uint64(d) / uint64(time.Second)), nil
}

// DurationOf returns the frame duration matching the given sample count.
func DurationOf(rate audio.SampleRate, length int) (time.Duration, error) {
	if err := ValidateSampleRate(rate); err != nil {
		return 0, err
	}
	for _, d := range supportedDurations {
		if int(uint64(rate)*uint64(d)/uint64(time.Second)) == length {
			return d, nil
		}
	}
	return 0, vad.ErrInvalidFrameLength{Length: length, SampleRate: rate}
}

// Frame is an immutable chunk of mono 16-bit samples of a valid length.
type Frame struct {
	samples    []int16
	sampleRate audio.SampleRate
	duration   time.Duration
}

// NewFrame copies the samples into a new Frame.
func NewFrame(samples []int16, rate audio.SampleRate) (Frame, error) {
	d, err := DurationOf(rate, len(samples))
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		samples:    append([]int16(nil), samples...),
		sampleRate: rate,
		duration:   d,
	}, nil
}

func (f Frame) Len() int                     { return len(f.samples) }
func (f Frame) At(idx int) int16             { return f.samples[idx] }
func (f Frame) SampleRate() audio.SampleRate { return f.sampleRate }
func (f Frame) Duration() time.Duration      { return f.duration }

// CopyTo copies the samples into dst and returns the amount copied.
func (f Frame) CopyTo(dst []int16) int {
	return copy(dst, f.samples)
}

// Samples returns a copy of the samples.
func (f Frame) Samples() []int16 {
	return append([]int16(nil), f.samples...)
}

// Split cuts samples into consecutive frames of the given duration. The
// input must consist of whole frames.
func Split(
	samples []int16,
	rate audio.SampleRate,
	d time.Duration,
) ([]Frame, error) {
	frameLength, err := FrameLength(rate, d)
	if err != nil {
		return nil, err
	}
	if len(samples)%frameLength != 0 {
		return nil, vad.ErrInvalidFrameLength{Length: len(samples), SampleRate: rate}
	}

	frames := make([]Frame, 0, len(samples)/frameLength)
	for pos := 0; pos < len(samples); pos += frameLength {
		frames = append(frames, Frame{
			samples:    append([]int16(nil), samples[pos:pos+frameLength]...),
			sampleRate: rate,
			duration:   d,
		})
	}
	return frames, nil
}

// SamplesFromS16LE decodes little-endian 16-bit PCM.
func SamplesFromS16LE(b []byte) ([]int16, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("the length of S16LE data must be even, but it is %d", len(b))
	}
	samples := make([]int16, len(b)/2)
	for idx := range samples {
		samples[idx] = int16(binary.LittleEndian.Uint16(b[idx*2:]))
	}
	return samples, nil
}

// SamplesToS16LE encodes samples as little-endian 16-bit PCM.
func SamplesToS16LE(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for idx, s := range samples {
		binary.LittleEndian.PutUint16(b[idx*2:], uint16(s))
	}
	return b
}

// SamplesFromFloat32 converts [-1, 1] float samples, saturating out of
// range values instead of wrapping them.
func SamplesFromFloat32(in []float32) []int16 {
	out := make([]int16, len(in))
	for idx, v := range in {
		out[idx] = SaturateInt16(float64(v) * 32768)
	}
	return out
}

func SaturateInt16(v float64) int16 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	default:
		return int16(math.Round(v))
	}
}
