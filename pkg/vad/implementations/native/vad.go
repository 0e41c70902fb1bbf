package native

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/detector"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
)

const (
	DefaultFrameDuration = 30 * time.Millisecond
)

// VAD adapts a Detector to the byte oriented vad.VAD. The input is mono
// S16LE; the detector state carries over between calls.
type VAD struct {
	Detector      *detector.Detector
	ChunkSize     uint64
	ChunkDuration time.Duration
}

var _ vad.VAD = (*VAD)(nil)

func NewVAD(
	ctx context.Context,
	sampleRate audio.SampleRate,
	mode vad.Mode,
	frameDuration time.Duration,
) (*VAD, error) {
	if frameDuration == 0 {
		frameDuration = DefaultFrameDuration
	}
	d, err := detector.New(ctx, sampleRate, mode, detector.OptionFrameDuration(frameDuration))
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the detector: %w", err)
	}
	frameLength, err := framing.FrameLength(sampleRate, frameDuration)
	if err != nil {
		return nil, err
	}
	chunkSize := uint64(frameLength) * uint64(audio.PCMFormatS16LE.Size())
	logger.Debugf(ctx, "resulting chunkSize:%d and chunkDuration:%v", chunkSize, frameDuration)
	return &VAD{
		Detector:      d,
		ChunkSize:     chunkSize,
		ChunkDuration: frameDuration,
	}, nil
}

func (v *VAD) Close() error {
	return nil
}

func (v *VAD) Reset() error {
	v.Detector.Reset()
	return nil
}

func (v *VAD) Encoding(context.Context) (audio.Encoding, error) {
	return audio.EncodingPCM{
		PCMFormat:  audio.PCMFormatS16LE,
		SampleRate: v.Detector.SampleRate(),
	}, nil
}

func (v *VAD) Channels(context.Context) (audio.Channel, error) {
	return 1, nil
}

// Confidence maps a decision onto [0, 1]; it is at least 0.5 exactly when
// the frame is speech.
func Confidence(d vad.Decision) float64 {
	p := 1 / (1 + math.Exp2(-d.Score))
	if d.IsSpeech {
		return math.Max(p, 0.5)
	}
	return math.Min(p, math.Nextafter(0.5, 0))
}

func (v *VAD) FindNextVoice(
	ctx context.Context,
	samples []byte,
	confidenceThreshold float64,
	minDuration time.Duration,
) (float64, time.Duration, error) {
	var maxConfidence float64

	var foundVoiceFor time.Duration
	firstVoiceDetection := time.Duration(-1)

	chunkSize := v.ChunkSize
	chunkDuration := v.ChunkDuration
	for pos := 0; uint64(len(samples)) >= chunkSize; pos++ {
		frame := samples[:chunkSize]
		samples = samples[len(frame):]
		decision, err := v.Detector.ProcessS16LE(frame)
		if err != nil {
			return maxConfidence, firstVoiceDetection, fmt.Errorf("unable to process chunk #%d: %w", pos, err)
		}

		voiceConfidence := Confidence(decision)
		if voiceConfidence > maxConfidence {
			maxConfidence = voiceConfidence
		}

		if voiceConfidence >= confidenceThreshold {
			foundVoiceFor += chunkDuration
			if firstVoiceDetection < 0 {
				firstVoiceDetection = chunkDuration * time.Duration(pos)
			}
		}

		if firstVoiceDetection >= 0 && foundVoiceFor >= minDuration {
			logger.Tracef(ctx, "found voice at %v", firstVoiceDetection)
			return maxConfidence, firstVoiceDetection, nil
		}
	}
	if foundVoiceFor < minDuration {
		firstVoiceDetection = -1
	}
	return maxConfidence, firstVoiceDetection, nil
}
