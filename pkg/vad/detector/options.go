package detector

import (
	"time"
)

type config struct {
	FrameDuration time.Duration
}

type Option interface {
	apply(*config)
}

type Options []Option

func (s Options) config() config {
	cfg := config{}
	for _, opt := range s {
		opt.apply(&cfg)
	}
	return cfg
}

// OptionFrameDuration restricts the accepted frames to a single duration;
// by default any of 10, 20 and 30 ms is accepted.
type OptionFrameDuration time.Duration

func (opt OptionFrameDuration) apply(cfg *config) {
	cfg.FrameDuration = time.Duration(opt)
}
