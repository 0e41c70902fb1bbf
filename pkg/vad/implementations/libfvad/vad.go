//go:build !no_libfvad && !windows

// Package libfvad runs the C libfvad detector behind vad.VAD, to compare
// the native detector against.
package libfvad

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/josharian/fvad"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
)

const (
	FrameDuration = 30 * time.Millisecond
)

var ErrClosed = errors.New("the libfvad detector is closed")

type VAD struct {
	locker     sync.Mutex
	detector   *fvad.Detector
	sampleRate audio.SampleRate
	mode       vad.Mode
	frameSize  int
}

var _ vad.VAD = (*VAD)(nil)

// NewVAD creates a libfvad detector. The mode keeps the meaning of
// vad.Mode (higher flags speech more readily); libfvad counts the other
// way round, so the level is mirrored.
func NewVAD(sampleRate audio.SampleRate, mode vad.Mode) (*VAD, error) {
	if err := framing.ValidateSampleRate(sampleRate); err != nil {
		return nil, err
	}
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	frameLength, err := framing.FrameLength(sampleRate, FrameDuration)
	if err != nil {
		return nil, err
	}

	d := fvad.NewDetector()
	if err := d.SetSampleRate(int(sampleRate)); err != nil {
		d.Close()
		return nil, fmt.Errorf("unable to set the sample rate %d: %w", sampleRate, err)
	}
	if err := d.SetMode(LibFVADMode(mode)); err != nil {
		d.Close()
		return nil, fmt.Errorf("unable to set the mode %s: %w", mode, err)
	}
	return &VAD{
		detector:   d,
		sampleRate: sampleRate,
		mode:       mode,
		frameSize:  frameLength * int(audio.PCMFormatS16LE.Size()),
	}, nil
}

func LibFVADMode(mode vad.Mode) int {
	return int(vad.ModeVeryAggressive - mode)
}

// Close frees the C detector; it is a no-op when called again.
func (v *VAD) Close() error {
	v.locker.Lock()
	defer v.locker.Unlock()
	if v.detector == nil {
		return nil
	}
	v.detector.Close()
	v.detector = nil
	return nil
}

func (v *VAD) Encoding(context.Context) (audio.Encoding, error) {
	return audio.EncodingPCM{
		PCMFormat:  audio.PCMFormatS16LE,
		SampleRate: v.sampleRate,
	}, nil
}

func (v *VAD) Channels(context.Context) (audio.Channel, error) {
	return 1, nil
}

// IsSpeech classifies a single 10, 20 or 30 ms frame.
func (v *VAD) IsSpeech(samples []int16) (bool, error) {
	if _, err := framing.DurationOf(v.sampleRate, len(samples)); err != nil {
		return false, err
	}
	v.locker.Lock()
	defer v.locker.Unlock()
	if v.detector == nil {
		return false, ErrClosed
	}
	return v.detector.Process(samples)
}

func (v *VAD) FindNextVoice(
	ctx context.Context,
	data []byte,
	confidenceThreshold float64,
	minDuration time.Duration,
) (float64, time.Duration, error) {
	var maxConfidence float64
	var foundVoiceFor time.Duration
	firstVoiceDetection := time.Duration(-1)
	for pos := 0; len(data) >= v.frameSize; pos++ {
		samples, err := framing.SamplesFromS16LE(data[:v.frameSize])
		if err != nil {
			return maxConfidence, firstVoiceDetection, err
		}
		data = data[v.frameSize:]

		isSpeech, err := v.IsSpeech(samples)
		if err != nil {
			return maxConfidence, firstVoiceDetection, fmt.Errorf("unable to process chunk #%d: %w", pos, err)
		}
		var confidence float64
		if isSpeech {
			confidence = 1
		}
		maxConfidence = max(maxConfidence, confidence)
		if confidence >= confidenceThreshold && isSpeech {
			foundVoiceFor += FrameDuration
			if firstVoiceDetection < 0 {
				firstVoiceDetection = FrameDuration * time.Duration(pos)
			}
		}
		if firstVoiceDetection >= 0 && foundVoiceFor >= minDuration {
			return maxConfidence, firstVoiceDetection, nil
		}
	}
	if foundVoiceFor < minDuration {
		firstVoiceDetection = -1
	}
	return maxConfidence, firstVoiceDetection, nil
}

func (v *VAD) Reset() error {
	v.locker.Lock()
	defer v.locker.Unlock()
	if v.detector == nil {
		return ErrClosed
	}
	// libfvad forgets the configuration on reset
	v.detector.Reset()
	if err := v.detector.SetSampleRate(int(v.sampleRate)); err != nil {
		return fmt.Errorf("unable to restore the sample rate: %w", err)
	}
	if err := v.detector.SetMode(LibFVADMode(v.mode)); err != nil {
		return fmt.Errorf("unable to restore the mode: %w", err)
	}
	return nil
}
