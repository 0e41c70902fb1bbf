// Package portaudio is a capture-only backend for the platforms where
// PulseAudio is not available. It needs cgo.
package portaudio

import (
	"github.com/xaionaro-go/voiceactivity/pkg/audio/registry"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/types"
)

const (
	Priority = 60
)

func init() {
	registry.RegisterRecorderFactory(Priority, RecorderPCMFactory{})
}

type RecorderPCMFactory struct{}

func (RecorderPCMFactory) NewRecorderPCM() (types.RecorderPCM, error) {
	r, err := NewRecorderPCM()
	if err != nil {
		return nil, err
	}
	return r, nil
}
