// Package oto is a playback-only backend that works wherever
// ebitengine/oto does. Oto allows a single context per process, so every
// stream is converted to one fixed format.
package oto

import (
	"github.com/xaionaro-go/voiceactivity/pkg/audio/registry"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/types"
)

const (
	Priority = 50
)

func init() {
	registry.RegisterPlayerFactory(Priority, PlayerPCMOtoFactory{})
}

type PlayerPCMOtoFactory struct{}

func (PlayerPCMOtoFactory) NewPlayerPCM() (types.PlayerPCM, error) {
	p, err := NewPlayerPCM()
	if err != nil {
		return nil, err
	}
	return p, nil
}
