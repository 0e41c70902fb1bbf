package vadstream

import (
	"context"
	"time"

	"github.com/xaionaro-go/voiceactivity/pkg/vad"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/config"
)

type options struct {
	Metrics   *Metrics
	Segments  config.Segments
	OnSegment func(context.Context, Segment)
	OnFrame   func(ctx context.Context, start time.Duration, decision vad.Decision)
}

type Option interface {
	apply(*options)
}

type Options []Option

func (s Options) config() options {
	cfg := options{}
	for _, opt := range s {
		opt.apply(&cfg)
	}
	return cfg
}

// OptionMetrics enables metrics reporting; see DefaultMetrics.
type OptionMetrics struct {
	*Metrics
}

func (opt OptionMetrics) apply(cfg *options) {
	cfg.Metrics = opt.Metrics
}

// OptionSegments sets the constraints applied by Segmenter.Result.
type OptionSegments config.Segments

func (opt OptionSegments) apply(cfg *options) {
	cfg.Segments = config.Segments(opt)
}

// OptionOnSegment is called synchronously every time a segment starts.
type OptionOnSegment func(context.Context, Segment)

func (opt OptionOnSegment) apply(cfg *options) {
	cfg.OnSegment = opt
}

// OptionOnFrame is called synchronously with every frame decision.
type OptionOnFrame func(ctx context.Context, start time.Duration, decision vad.Decision)

func (opt OptionOnFrame) apply(cfg *options) {
	cfg.OnFrame = opt
}
