// Package detector is the entry point of the voice activity detector: it
// owns the configuration and the adaptive state of a single stream.
package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/classifier"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/filterbank"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/gmm"
)

// Detector is not safe for concurrent use; use one per stream.
type Detector struct {
	sampleRate    audio.SampleRate
	frameDuration time.Duration
	filterbank    *filterbank.Filterbank
	model         *gmm.State
	classifier    *classifier.Classifier
}

func New(
	ctx context.Context,
	sampleRate audio.SampleRate,
	mode vad.Mode,
	opts ...Option,
) (*Detector, error) {
	cfg := Options(opts).config()
	logger.Debugf(ctx, "initializing a detector: rate:%d mode:%s frame duration:%v", sampleRate, mode, cfg.FrameDuration)

	fb, err := filterbank.New(sampleRate)
	if err != nil {
		return nil, err
	}
	if cfg.FrameDuration != 0 {
		if err := framing.ValidateDuration(cfg.FrameDuration); err != nil {
			return nil, err
		}
	}
	c, err := classifier.New(mode)
	if err != nil {
		return nil, err
	}

	d := &Detector{
		sampleRate:    sampleRate,
		frameDuration: cfg.FrameDuration,
		filterbank:    fb,
		model:         gmm.NewState(fb.BandCount()),
		classifier:    c,
	}
	logger.Debugf(ctx, "the detector measures %d bands: %v", fb.BandCount(), filterbank.Bands(sampleRate))
	return d, nil
}

func (d *Detector) SampleRate() audio.SampleRate {
	return d.sampleRate
}

func (d *Detector) Mode() vad.Mode {
	return d.classifier.Mode()
}

// FrameDuration is the only accepted frame duration, or zero if any
// supported duration is accepted.
func (d *Detector) FrameDuration() time.Duration {
	return d.frameDuration
}

// SetMode changes the aggressiveness keeping the adapted models.
func (d *Detector) SetMode(mode vad.Mode) error {
	return d.classifier.SetMode(mode)
}

// Process classifies a frame of 10, 20 or 30 ms worth of samples.
func (d *Detector) Process(samples []int16) (vad.Decision, error) {
	frame, err := framing.NewFrame(samples, d.sampleRate)
	if err != nil {
		return vad.Decision{}, err
	}
	return d.ProcessFrame(frame)
}

// ProcessS16LE is Process for little-endian 16-bit PCM bytes.
func (d *Detector) ProcessS16LE(pcm []byte) (vad.Decision, error) {
	samples, err := framing.SamplesFromS16LE(pcm)
	if err != nil {
		return vad.Decision{}, vad.ErrInvalidFrameLength{Length: len(pcm), SampleRate: d.sampleRate}
	}
	return d.Process(samples)
}

func (d *Detector) ProcessFrame(frame framing.Frame) (vad.Decision, error) {
	if frame.SampleRate() != d.sampleRate {
		return vad.Decision{}, fmt.Errorf("the frame is at %d Hz, but the detector is configured for %d Hz: %w",
			frame.SampleRate(), d.sampleRate, vad.ErrInvalidFrameLength{Length: frame.Len(), SampleRate: d.sampleRate})
	}
	if d.frameDuration != 0 && frame.Duration() != d.frameDuration {
		return vad.Decision{}, vad.ErrInvalidFrameLength{Length: frame.Len(), SampleRate: d.sampleRate}
	}

	features := d.filterbank.Extract(frame)
	result := d.model.Update(features)
	decision, err := d.classifier.Classify(result.Ratios, frame.Duration())
	if err != nil {
		return vad.Decision{}, err
	}
	decision.NoiseLevel = d.model.NoiseLevel
	return decision, nil
}

// ProcessAll splits samples into frames of the given duration and
// classifies all of them. Nothing is processed if samples are not a whole
// amount of frames.
func (d *Detector) ProcessAll(
	samples []int16,
	frameDuration time.Duration,
) ([]vad.Decision, error) {
	if d.frameDuration != 0 && frameDuration != d.frameDuration {
		return nil, vad.ErrInvalidFrameLength{Length: len(samples), SampleRate: d.sampleRate}
	}
	frames, err := framing.Split(samples, d.sampleRate, frameDuration)
	if err != nil {
		return nil, err
	}

	decisions := make([]vad.Decision, 0, len(frames))
	for _, frame := range frames {
		decision, err := d.ProcessFrame(frame)
		if err != nil {
			return nil, fmt.Errorf("unable to process frame #%d: %w", len(decisions), err)
		}
		decisions = append(decisions, decision)
	}
	return decisions, nil
}

// Reset forgets everything learned from the stream, keeping the
// configuration.
func (d *Detector) Reset() {
	d.model.Reset()
	d.classifier.Reset()
}

// ModelState exposes the adaptive state for diagnostics.
func (d *Detector) ModelState() gmm.State {
	return gmm.State{
		Bands:      append([]gmm.BandModel(nil), d.model.Bands...),
		NoiseLevel: d.model.NoiseLevel,
	}
}
