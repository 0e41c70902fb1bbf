package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/config"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/implementations/libfvad"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/implementations/native"
)

const skipConfidenceThreshold = 0.5

func newVAD(
	ctx context.Context,
	engine config.Engine,
	rate audio.SampleRate,
	mode vad.Mode,
	frameDuration time.Duration,
) (vad.VAD, error) {
	switch engine {
	case config.EngineNative:
		return native.NewVAD(ctx, rate, mode, frameDuration)
	case config.EngineLibFVAD:
		return libfvad.NewVAD(rate, mode)
	default:
		return nil, fmt.Errorf("unknown engine '%s'", engine)
	}
}

// skipLeadingSilence reads the whole S16LE mono stream and returns it
// starting at the first voice lasting at least minSpeech. If no such voice
// is found the result is empty.
func skipLeadingSilence(
	ctx context.Context,
	v vad.VAD,
	rate audio.SampleRate,
	r io.Reader,
	minSpeech time.Duration,
) (io.Reader, error) {
	pcm, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read the input: %w", err)
	}

	confidence, offset, err := v.FindNextVoice(ctx, pcm, skipConfidenceThreshold, minSpeech)
	if err != nil {
		return nil, fmt.Errorf("unable to find the voice: %w", err)
	}
	logger.Debugf(ctx, "max confidence %.2f, voice at %v", confidence, offset)
	if offset < 0 {
		return bytes.NewReader(nil), nil
	}

	skip := offsetBytes(offset, rate)
	if skip > len(pcm) {
		skip = len(pcm)
	}
	return bytes.NewReader(pcm[skip:]), nil
}

func offsetBytes(offset time.Duration, rate audio.SampleRate) int {
	samples := int64(offset) * int64(rate) / int64(time.Second)
	return int(samples) * int(audio.PCMFormatS16LE.Size())
}
