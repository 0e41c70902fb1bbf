// Package vad holds the vocabulary shared by the detector and its
// wrappers: aggressiveness modes, per-frame decisions, contract errors,
// and the byte oriented VAD interface.
package vad

import (
	"context"
	"time"

	"github.com/xaionaro-go/voiceactivity/pkg/audio"
)

// VAD is a stateful detector over S16LE PCM of the layout reported by
// Encoding and Channels. The state carries over between calls, so one
// VAD serves one stream.
type VAD interface {
	audio.AbstractAnalyzer

	// FindNextVoice returns the maximal confidence seen and the offset of the
	// first voiced chunk, or -1 if less than minDuration of voice was found.
	FindNextVoice(
		_ context.Context,
		samples []byte,
		confidenceThreshold float64,
		minDuration time.Duration,
	) (float64, time.Duration, error)

	// Reset forgets the stream, keeping the configuration.
	Reset() error
}
