package types

import (
	"context"
	"io"
	"time"
)

// Stream is a running playback or capture.
type Stream interface {
	io.Closer

	// Drain waits until the stream has nothing more to do and returns the
	// error that stopped it, if any.
	Drain() error
}

type PlayStream interface {
	Stream
}

type RecordStream interface {
	Stream
}

// PlayerPCM is an output backend. PlayPCM reads the reader until io.EOF.
type PlayerPCM interface {
	io.Closer
	Ping(context.Context) error
	PlayPCM(
		ctx context.Context,
		sampleRate SampleRate,
		channels Channel,
		format PCMFormat,
		bufferSize time.Duration,
		reader io.Reader,
	) (PlayStream, error)
}

// RecorderPCM is an input backend. RecordPCM writes interleaved samples
// into the writer until the stream is closed.
type RecorderPCM interface {
	io.Closer
	Ping(context.Context) error
	RecordPCM(
		ctx context.Context,
		sampleRate SampleRate,
		channels Channel,
		format PCMFormat,
		writer io.Writer,
	) (RecordStream, error)
}
