package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/decode"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/planar"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/resampler"
	"github.com/xaionaro-go/voiceactivity/pkg/vad"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/config"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/detector"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/implementations/libfvad"
	"github.com/xaionaro-go/voiceactivity/pkg/vadstream"
)

type analyzer struct {
	Config     config.Config
	Metrics    *vadstream.Metrics
	Container  decode.Container
	RawFormat  resampler.Format
	Frames     bool
	PerChannel bool
	SpeechDir  string
}

type report struct {
	Path     string              `yaml:"path"`
	Channel  *int                `yaml:"channel,omitempty"`
	Format   string              `yaml:"format"`
	Bytes    uint64              `yaml:"bytes"`
	Duration time.Duration       `yaml:"duration"`
	Segments []vadstream.Segment `yaml:"segments,omitempty"`
	Frames   []frameReport       `yaml:"frames,omitempty"`
}

type frameReport struct {
	Start    time.Duration `yaml:"start"`
	IsSpeech bool          `yaml:"speech"`
	Vote     bool          `yaml:"vote"`
	Score    float64       `yaml:"score"`
}

func (a *analyzer) analyzeFile(
	ctx context.Context,
	path string,
) (_ []report, _err error) {
	logger.Tracef(ctx, "analyzeFile(%s)", path)
	defer func() { logger.Tracef(ctx, "/analyzeFile(%s): %v", path, _err) }()

	f, err := decode.Open(path, a.Container, a.RawFormat)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	counter := datacounter.NewReaderCounter(f.Reader)
	src := &decode.Source{
		Format: f.Format,
		Reader: counter,
	}

	var channels [][]int16
	if a.PerChannel && src.Format.Channels > 1 {
		channels, err = a.splitChannels(src)
	} else {
		var samples []int16
		samples, err = src.ReadAllSamples(a.Config.SampleRate)
		channels = [][]int16{samples}
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	logger.Debugf(ctx, "read %d bytes of %s from '%s'", counter.Count(), src.Format, path)

	reports := make([]report, 0, len(channels))
	for idx, samples := range channels {
		r, err := a.analyzeSamples(ctx, samples)
		if err != nil {
			return nil, fmt.Errorf("unable to analyse '%s': %w", path, err)
		}
		r.Path = path
		r.Format = src.Format.String()
		r.Bytes = counter.Count()
		if len(channels) > 1 {
			ch := idx
			r.Channel = &ch
		}
		reports = append(reports, r)

		if a.SpeechDir == "" {
			continue
		}
		outPath := speechPath(a.SpeechDir, path, r.Channel)
		if err := writeSpeech(outPath, a.Config.SampleRate, samples, r.Segments); err != nil {
			return nil, fmt.Errorf("unable to write the speech of '%s': %w", path, err)
		}
		logger.Debugf(ctx, "wrote '%s'", outPath)
	}
	return reports, nil
}

// splitChannels converts the source to S16LE at its own rate, splits the
// channels and only then brings each of them to the analysis rate.
func (a *analyzer) splitChannels(src *decode.Source) ([][]int16, error) {
	srcRate := src.Format.SampleRate
	interleaved, err := resampler.NewResampler(src.Format, src.Reader, resampler.Format{
		Channels:   src.Format.Channels,
		SampleRate: srcRate,
		PCMFormat:  audio.PCMFormatS16LE,
	})
	if err != nil {
		return nil, err
	}
	pcm, err := io.ReadAll(interleaved)
	if err != nil {
		return nil, err
	}
	frameSize := 2 * int(src.Format.Channels)
	pcm = pcm[:len(pcm)/frameSize*frameSize]

	channels, err := planar.SplitS16LE(src.Format.Channels, pcm)
	if err != nil {
		return nil, err
	}
	if srcRate == a.Config.SampleRate {
		return channels, nil
	}
	for idx, samples := range channels {
		mono := decode.Raw(bytes.NewReader(framing.SamplesToS16LE(samples)), resampler.DetectorFormat(srcRate))
		channels[idx], err = mono.ReadAllSamples(a.Config.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("unable to resample channel #%d: %w", idx, err)
		}
	}
	return channels, nil
}

func (a *analyzer) analyzeSamples(
	ctx context.Context,
	samples []int16,
) (report, error) {
	r := report{
		Duration: time.Duration(len(samples)) * time.Second / time.Duration(a.Config.SampleRate),
	}
	var err error
	switch a.Config.Engine {
	case config.EngineNative:
		r.Segments, r.Frames, err = a.runNative(ctx, samples)
	case config.EngineLibFVAD:
		r.Segments, r.Frames, err = a.runLibFVAD(ctx, samples)
	default:
		err = fmt.Errorf("unknown engine '%s'", a.Config.Engine)
	}
	if !a.Frames {
		r.Frames = nil
	}
	return r, err
}

func (a *analyzer) runNative(
	ctx context.Context,
	samples []int16,
) ([]vadstream.Segment, []frameReport, error) {
	det, err := detector.New(ctx, a.Config.SampleRate, a.Config.Mode, detector.OptionFrameDuration(a.Config.FrameDuration))
	if err != nil {
		return nil, nil, err
	}

	var frames []frameReport
	segmenter, err := vadstream.NewSegmenter(ctx, det, a.Config.FrameDuration,
		vadstream.OptionMetrics{Metrics: a.Metrics},
		vadstream.OptionSegments(a.Config.Segments),
		vadstream.OptionOnFrame(func(_ context.Context, start time.Duration, d vad.Decision) {
			if !a.Frames {
				return
			}
			frames = append(frames, frameReport{
				Start:    start,
				IsSpeech: d.IsSpeech,
				Vote:     d.Vote,
				Score:    d.Score,
			})
		}),
	)
	if err != nil {
		return nil, nil, err
	}
	if _, err := segmenter.Write(ctx, framing.SamplesToS16LE(samples)); err != nil {
		return nil, nil, err
	}
	if _, err := segmenter.Flush(ctx); err != nil {
		return nil, nil, err
	}
	return segmenter.Result(), frames, nil
}

// runLibFVAD classifies the same frames with libfvad; it yields votes
// only, so the scores stay zero.
func (a *analyzer) runLibFVAD(
	ctx context.Context,
	samples []int16,
) ([]vadstream.Segment, []frameReport, error) {
	v, err := libfvad.NewVAD(a.Config.SampleRate, a.Config.Mode)
	if err != nil {
		return nil, nil, err
	}
	defer v.Close()

	frameLength, err := framing.FrameLength(a.Config.SampleRate, a.Config.FrameDuration)
	if err != nil {
		return nil, nil, err
	}
	var (
		segments []vadstream.Segment
		frames   []frameReport
		frame    = make([]int16, frameLength)
	)
	for pos := 0; pos < len(samples); pos += frameLength {
		n := copy(frame, samples[pos:])
		clear(frame[n:])

		startedAt := time.Now()
		isSpeech, err := v.IsSpeech(frame)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to classify the frame at sample #%d: %w", pos, err)
		}
		decision := vad.Decision{IsSpeech: isSpeech, Vote: isSpeech}
		a.Metrics.RecordFrame(ctx, decision, time.Since(startedAt))

		start := a.samplesToDuration(pos)
		segments = append(segments, vadstream.Segment{
			Start:    start,
			End:      a.samplesToDuration(pos + n),
			IsSpeech: isSpeech,
		})
		frames = append(frames, frameReport{
			Start:    start,
			IsSpeech: isSpeech,
			Vote:     isSpeech,
		})
	}
	for _, seg := range vadstream.Merge(segments) {
		a.Metrics.RecordSegment(ctx, seg)
	}
	return vadstream.Postprocess(segments, a.Config.Segments), frames, nil
}

func (a *analyzer) samplesToDuration(samples int) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(a.Config.SampleRate)
}

func speechPath(dir, input string, channel *int) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if channel != nil {
		name = fmt.Sprintf("%s.ch%d", name, *channel)
	}
	return filepath.Join(dir, name+".speech.wav")
}

// speechSamples concatenates the samples covered by speech segments.
func speechSamples(
	rate audio.SampleRate,
	samples []int16,
	segments []vadstream.Segment,
) []int16 {
	var result []int16
	for _, seg := range vadstream.SpeechOnly(segments) {
		from := min(len(samples), int(seg.Start*time.Duration(rate)/time.Second))
		to := min(len(samples), int(seg.End*time.Duration(rate)/time.Second))
		result = append(result, samples[from:to]...)
	}
	return result
}

func writeSpeech(
	path string,
	rate audio.SampleRate,
	samples []int16,
	segments []vadstream.Segment,
) (_err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil && _err == nil {
			_err = fmt.Errorf("unable to close '%s': %w", path, err)
		}
	}()
	return decode.WriteWAV(f, rate, speechSamples(rate, samples, segments))
}
