package oto

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/resampler"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/types"
)

type PlayerPCM struct {
	OtoCtx *oto.Context
}

var _ types.PlayerPCM = (*PlayerPCM)(nil)

func NewPlayerPCM() (*PlayerPCM, error) {
	otoCtx, err := getOtoContext()
	if err != nil {
		return nil, err
	}
	return &PlayerPCM{
		OtoCtx: otoCtx,
	}, nil
}

// Close keeps the context: it is shared by all the players of the process.
func (*PlayerPCM) Close() error {
	return nil
}

// Ping reports whether the shared context works; oto cannot check the
// device beyond that.
func (p *PlayerPCM) Ping(context.Context) error {
	return p.OtoCtx.Err()
}

// contextFormat is the only layout the shared context plays.
func contextFormat() resampler.Format {
	return resampler.Format{
		Channels:   Channels,
		SampleRate: SampleRate,
		PCMFormat:  Format,
	}
}

func (p *PlayerPCM) PlayPCM(
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (_ types.PlayStream, _err error) {
	logger.Tracef(ctx, "PlayPCM")
	defer func() { logger.Tracef(ctx, "/PlayPCM: %v", _err) }()

	if bufferSize != BufferSize {
		logger.Debugf(ctx, "requested a %v buffer, but the shared context has %v", bufferSize, BufferSize)
	}

	inFmt := resampler.Format{
		Channels:   channels,
		SampleRate: sampleRate,
		PCMFormat:  format,
	}
	if outFmt := contextFormat(); inFmt != outFmt {
		r, err := resampler.NewResampler(inFmt, reader, outFmt)
		if err != nil {
			return nil, fmt.Errorf("unable to convert %s to %s: %w", inFmt, outFmt, err)
		}
		reader = r
	}

	player := p.OtoCtx.NewPlayer(reader)
	player.Play()
	return newStream(player), nil
}
