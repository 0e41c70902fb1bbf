// Package classifier turns per-band likelihood ratios into a smoothed
// speech/non-speech verdict.
package classifier

import (
	"time"

	"github.com/xaionaro-go/voiceactivity/pkg/vad"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/gmm"
)

type Classifier struct {
	mode       vad.Mode
	thresholds Thresholds
	hangover   Hangover
}

func New(mode vad.Mode) (*Classifier, error) {
	c := &Classifier{}
	if err := c.SetMode(mode); err != nil {
		return nil, err
	}
	return c, nil
}

// SetMode switches the thresholds; a pending hangover is kept.
func (c *Classifier) SetMode(mode vad.Mode) error {
	t, err := ThresholdsFor(mode)
	if err != nil {
		return err
	}
	c.mode = mode
	c.thresholds = t
	return nil
}

func (c *Classifier) Mode() vad.Mode {
	return c.mode
}

// Vote tells whether the ratios alone pass the mode's thresholds.
func (c *Classifier) Vote(ratios []float64) (bool, float64) {
	score := gmm.WeightedScore(ratios)
	if score >= c.thresholds.Total {
		return true, score
	}
	for _, r := range ratios {
		if r >= c.thresholds.Individual {
			return true, score
		}
	}
	return false, score
}

// Classify votes on the frame and applies the hangover.
func (c *Classifier) Classify(
	ratios []float64,
	frameDuration time.Duration,
) (vad.Decision, error) {
	short, long, err := HangoverFrames(c.mode, frameDuration)
	if err != nil {
		return vad.Decision{}, err
	}
	vote, score := c.Vote(ratios)
	isSpeech := c.hangover.Step(vote, short, long)
	return vad.Decision{
		IsSpeech: isSpeech,
		Vote:     vote,
		Score:    score,
		Hangover: c.hangover.Countdown,
	}, nil
}

func (c *Classifier) State() State {
	return c.hangover.State
}

func (c *Classifier) Reset() {
	c.hangover.Reset()
}
