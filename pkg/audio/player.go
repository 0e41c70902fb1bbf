package audio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/registry"
)

const BufferSize = 100 * time.Millisecond

type Player struct {
	PlayerPCM
}

func NewPlayer(playerPCM PlayerPCM) *Player {
	return &Player{
		PlayerPCM: playerPCM,
	}
}

var playerSelector = backendSelector[registry.PlayerPCMFactory, PlayerPCM]{
	newBackend: func(f registry.PlayerPCMFactory) (PlayerPCM, error) {
		return f.NewPlayerPCM()
	},
}

// NewPlayerAuto picks the most preferred working player backend.
func NewPlayerAuto(
	ctx context.Context,
) (*Player, error) {
	player, err := playerSelector.Select(ctx, registry.PlayerFactories())
	if err != nil {
		return nil, fmt.Errorf("unable to initialize any PCM player: %w", err)
	}
	return NewPlayer(player), nil
}

// PlayS16Mono plays PCM in the output layout of vadstream.Gate.
func (a *Player) PlayS16Mono(
	ctx context.Context,
	sampleRate SampleRate,
	pcmReader io.Reader,
) (PlayStream, error) {
	return a.PlayerPCM.PlayPCM(
		ctx,
		sampleRate,
		1,
		PCMFormatS16LE,
		BufferSize,
		pcmReader,
	)
}

// PlayerPCMDummy consumes the input without playing it.
type PlayerPCMDummy struct{}

var _ PlayerPCM = PlayerPCMDummy{}

func (PlayerPCMDummy) Close() error {
	return nil
}

func (PlayerPCMDummy) Ping(context.Context) error {
	return nil
}

func (PlayerPCMDummy) PlayPCM(
	ctx context.Context,
	sampleRate SampleRate,
	channels Channel,
	format PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (PlayStream, error) {
	s := &discardStream{done: make(chan struct{})}
	observability.Go(ctx, func() {
		defer close(s.done)
		_, s.err = io.Copy(io.Discard, reader)
	})
	return s, nil
}

type discardStream struct {
	done chan struct{}
	err  error
}

func (s *discardStream) Drain() error {
	<-s.done
	return s.err
}

func (s *discardStream) Close() error {
	return nil
}

type StreamDummy struct{}

var _ Stream = StreamDummy{}

func (StreamDummy) Drain() error {
	return nil
}

func (StreamDummy) Close() error {
	return nil
}
