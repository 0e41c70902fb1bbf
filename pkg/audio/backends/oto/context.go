package oto

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/types"
)

const (
	SampleRate = types.SampleRate(48000)
	Channels   = types.Channel(2)
	Format     = types.PCMFormatS16LE
	BufferSize = 100 * time.Millisecond
)

var (
	otoContextOnce  sync.Once
	otoContext      *oto.Context
	otoContextError error
)

func getOtoContext() (*oto.Context, error) {
	otoContextOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   int(SampleRate),
			ChannelCount: int(Channels),
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   BufferSize,
		})
		if err != nil {
			otoContextError = fmt.Errorf("unable to create an oto context: %w", err)
			return
		}
		<-ready
		otoContext = ctx
	})
	return otoContext, otoContextError
}
