package vad

import (
	"fmt"

	"github.com/xaionaro-go/voiceactivity/pkg/audio"
)

type ErrUnsupportedSampleRate struct {
	SampleRate audio.SampleRate
}

func (e ErrUnsupportedSampleRate) Error() string {
	return fmt.Sprintf("unsupported sample rate %d Hz (supported: 8000, 16000, 32000, 48000)", e.SampleRate)
}

type ErrInvalidAggressivenessLevel struct {
	Mode Mode
}

func (e ErrInvalidAggressivenessLevel) Error() string {
	return fmt.Sprintf("invalid aggressiveness level %d (expected 0..3)", int(e.Mode))
}

type ErrInvalidFrameLength struct {
	Length     int
	SampleRate audio.SampleRate
}

func (e ErrInvalidFrameLength) Error() string {
	return fmt.Sprintf("invalid frame length %d at %d Hz (expected 10, 20 or 30 ms worth of samples)", e.Length, e.SampleRate)
}
