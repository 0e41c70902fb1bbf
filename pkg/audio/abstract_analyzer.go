package audio

import (
	"context"
	"io"
)

// AbstractAnalyzer is anything that consumes PCM of a fixed layout
// (a voice activity detector, for example).
type AbstractAnalyzer interface {
	io.Closer

	Encoding(context.Context) (Encoding, error)
	Channels(context.Context) (Channel, error)
}
