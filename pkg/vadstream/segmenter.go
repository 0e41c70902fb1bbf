// Package vadstream runs a detector over byte streams of S16LE mono PCM.
package vadstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/voiceactivity/pkg/vad"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/detector"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
)

// Segmenter splits an arbitrarily chunked stream into frames and merges
// the frame decisions into segments. It is not safe for concurrent use.
type Segmenter struct {
	Detector      *detector.Detector
	FrameDuration time.Duration
	options       options

	frameBuf     []byte
	carry        *circular.Buffer // holds the incomplete frame between calls
	samplesTotal uint64
	segments     []Segment
}

func NewSegmenter(
	ctx context.Context,
	det *detector.Detector,
	frameDuration time.Duration,
	opts ...Option,
) (*Segmenter, error) {
	if det.FrameDuration() != 0 && det.FrameDuration() != frameDuration {
		return nil, fmt.Errorf("the detector accepts only %v frames, but %v was requested: %w",
			det.FrameDuration(), frameDuration, vad.ErrInvalidFrameLength{SampleRate: det.SampleRate()})
	}
	frameLength, err := framing.FrameLength(det.SampleRate(), frameDuration)
	if err != nil {
		return nil, err
	}
	frameSize := frameLength * 2
	logger.Debugf(ctx, "frame size: %d bytes", frameSize)

	return &Segmenter{
		Detector:      det,
		FrameDuration: frameDuration,
		options:       Options(opts).config(),
		frameBuf:      make([]byte, frameSize),
		carry:         circular.NewBuffer(2 * frameSize),
	}, nil
}

// FrameSize is the amount of bytes in a frame.
func (s *Segmenter) FrameSize() int {
	return len(s.frameBuf)
}

// Buffered is the amount of bytes waiting for the rest of their frame.
func (s *Segmenter) Buffered() int {
	return s.carry.Len()
}

// Position is the duration of the audio classified so far.
func (s *Segmenter) Position() time.Duration {
	return s.samplesToDuration(s.samplesTotal)
}

func (s *Segmenter) samplesToDuration(samples uint64) time.Duration {
	return time.Duration(samples * uint64(time.Second) / uint64(s.Detector.SampleRate()))
}

// Write consumes S16LE mono PCM and returns the segments started by it.
// An odd amount of bytes is fine: the remainder waits for the next call.
func (s *Segmenter) Write(
	ctx context.Context,
	pcm []byte,
) ([]Segment, error) {
	var started []Segment
	frameSize := len(s.frameBuf)
	for len(pcm) > 0 {
		chunk := pcm
		if space := s.carry.Space(); len(chunk) > space {
			chunk = chunk[:space]
		}
		n, err := s.carry.Write(chunk)
		if err != nil {
			return started, fmt.Errorf("unable to write to the circular buffer: %w", err)
		}
		pcm = pcm[n:]

		for s.carry.Len() >= frameSize {
			if _, err := s.carry.Read(s.frameBuf); err != nil {
				return started, fmt.Errorf("unable to read from the circular buffer: %w", err)
			}
			seg, isNew, err := s.processFrame(ctx, s.frameBuf, frameSize/2)
			if err != nil {
				return started, err
			}
			if isNew {
				started = append(started, seg)
			}
		}
	}
	return started, nil
}

func (s *Segmenter) processFrame(
	ctx context.Context,
	pcm []byte,
	realSamples int,
) (Segment, bool, error) {
	startedAt := time.Now()
	decision, err := s.Detector.ProcessS16LE(pcm)
	if err != nil {
		return Segment{}, false, fmt.Errorf("unable to classify the frame at %v: %w", s.Position(), err)
	}
	s.options.Metrics.RecordFrame(ctx, decision, time.Since(startedAt))

	start := s.Position()
	if s.options.OnFrame != nil {
		s.options.OnFrame(ctx, start, decision)
	}
	s.samplesTotal += uint64(realSamples)
	end := s.Position()

	if len(s.segments) > 0 {
		last := &s.segments[len(s.segments)-1]
		if last.IsSpeech == decision.IsSpeech {
			last.End = end
			return *last, false, nil
		}
		s.options.Metrics.RecordSegment(ctx, *last)
		logger.Tracef(ctx, "segment closed: %s", *last)
	}
	seg := Segment{Start: start, End: end, IsSpeech: decision.IsSpeech}
	s.segments = append(s.segments, seg)
	if s.options.OnSegment != nil {
		s.options.OnSegment(ctx, seg)
	}
	return seg, true, nil
}

// Flush classifies the incomplete trailing frame (zero-padded) and closes
// the last segment.
func (s *Segmenter) Flush(ctx context.Context) ([]Segment, error) {
	var started []Segment
	tail, err := s.carry.Read(s.frameBuf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unable to read from the circular buffer: %w", err)
	}
	if tail >= 2 {
		clear(s.frameBuf[tail:])
		seg, isNew, err := s.processFrame(ctx, s.frameBuf, tail/2)
		if err != nil {
			return nil, err
		}
		if isNew {
			started = append(started, seg)
		}
	}
	if tail%2 != 0 {
		logger.Debugf(ctx, "dropping a dangling odd byte")
	}

	if len(s.segments) > 0 {
		s.options.Metrics.RecordSegment(ctx, s.segments[len(s.segments)-1])
	}
	return started, nil
}

// IsSpeech is the decision on the last classified frame.
func (s *Segmenter) IsSpeech() bool {
	if len(s.segments) == 0 {
		return false
	}
	return s.segments[len(s.segments)-1].IsSpeech
}

// Segments returns the raw timeline: one segment per run of equal
// decisions.
func (s *Segmenter) Segments() []Segment {
	return append([]Segment(nil), s.segments...)
}

// Result is the timeline with the configured segment constraints applied.
func (s *Segmenter) Result() []Segment {
	return Postprocess(s.segments, s.options.Segments)
}

// Reset forgets the stream including the detector state.
func (s *Segmenter) Reset() {
	s.Detector.Reset()
	s.carry.Reset()
	s.samplesTotal = 0
	s.segments = s.segments[:0]
}
