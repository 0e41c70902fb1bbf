package oto

import (
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/types"
)

const drainPollInterval = 10 * time.Millisecond

type Stream struct {
	Player *oto.Player
}

var _ types.PlayStream = (*Stream)(nil)

func newStream(player *oto.Player) *Stream {
	return &Stream{
		Player: player,
	}
}

// Drain blocks until the player consumed its reader.
func (s *Stream) Drain() error {
	for s.Player.IsPlaying() {
		time.Sleep(drainPollInterval)
	}
	if err := s.Player.Err(); err != nil {
		return fmt.Errorf("an error occurred during playback: %w", err)
	}
	return nil
}

func (s *Stream) Close() error {
	return s.Player.Close()
}
