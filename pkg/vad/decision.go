package vad

import (
	"fmt"
)

// Decision is the per-frame outcome of a detector.
type Decision struct {
	IsSpeech bool

	// Vote is the frame's own verdict before hangover smoothing.
	Vote bool

	// Score is the weighted log2 likelihood ratio of speech vs noise.
	Score float64

	// Hangover is the amount of frames still forced to speech.
	Hangover int

	// NoiseLevel is the smoothed background level in dB.
	NoiseLevel float64
}

func (d Decision) String() string {
	return fmt.Sprintf("speech:%v vote:%v score:%.2f hangover:%d noise:%.1fdB", d.IsSpeech, d.Vote, d.Score, d.Hangover, d.NoiseLevel)
}
