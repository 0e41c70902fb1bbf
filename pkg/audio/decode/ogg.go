package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/resampler"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/types"
)

// Ogg decodes an Ogg Vorbis stream on the fly.
func Ogg(r io.Reader) (*Source, error) {
	oggReader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a vorbis reader: %w", err)
	}
	return &Source{
		Format: resampler.Format{
			Channels:   audio.Channel(oggReader.Channels()),
			SampleRate: audio.SampleRate(oggReader.SampleRate()),
			PCMFormat:  types.PCMFormatFloat32LE,
		},
		Reader: newFloat32LEReader(oggReader),
	}, nil
}
