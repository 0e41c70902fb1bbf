package portaudio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
	"unsafe"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/types"
)

const (
	// RecordBufferSize is the duration of a single chunk read from the device.
	RecordBufferSize = time.Millisecond * 20

	// recordQueueLength is how many chunks may wait for a slow writer
	// before the capture blocks.
	recordQueueLength = 16
)

type RecordPCMStream struct {
	PortAudioStream *portaudio.Stream
	InputBuffer     []byte
	Writer          io.Writer
	CancelFunc      context.CancelFunc
	WaitGroup       sync.WaitGroup

	chunks     chan []byte
	errLocker  sync.Mutex
	err        error
	closeOnce  sync.Once
	closeError error
}

func newRecordPCMStream[T uint8 | int16 | int32 | float32](
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
) (*RecordPCMStream, error) {
	framesPerBuffer := int(RecordBufferSize.Seconds() * float64(sampleRate))
	buf := make([]T, framesPerBuffer*int(channels))

	var sample T
	logger.Debugf(ctx, "newRecordPCMStream: %T, %d Hz, %d channels, %s (%d frames)", sample, sampleRate, channels, RecordBufferSize, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(int(channels), 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, fmt.Errorf("unable to open the default input stream: %w", err)
	}

	// the device writes into buf, the byte view is what goes downstream
	bytesBuf := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(buf))), len(buf)*int(unsafe.Sizeof(sample)))
	return &RecordPCMStream{
		PortAudioStream: stream,
		InputBuffer:     bytesBuf,
		chunks:          make(chan []byte, recordQueueLength),
	}, nil
}

func (s *RecordPCMStream) init(
	ctx context.Context,
	writer io.Writer,
) error {
	s.Writer = writer
	ctx, s.CancelFunc = context.WithCancel(ctx)

	err := s.PortAudioStream.Start()
	if err != nil {
		s.CancelFunc()
		return fmt.Errorf("unable to start the stream: %w", err)
	}

	s.WaitGroup.Add(1)
	observability.Go(ctx, func() {
		defer s.WaitGroup.Done()
		defer close(s.chunks)
		defer s.CancelFunc()
		s.setError(s.readerLoop(ctx))
	})
	s.WaitGroup.Add(1)
	observability.Go(ctx, func() {
		defer s.WaitGroup.Done()
		defer s.CancelFunc()
		s.setError(s.writerLoop(ctx))
	})
	return nil
}

func (s *RecordPCMStream) setError(err error) {
	if err == nil {
		return
	}
	s.errLocker.Lock()
	defer s.errLocker.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *RecordPCMStream) readerLoop(
	ctx context.Context,
) (_ret error) {
	logger.Debugf(ctx, "readerLoop")
	defer func() { logger.Debugf(ctx, "/readerLoop: %v", _ret) }()

	for {
		logger.Tracef(ctx, "Read")
		err := s.PortAudioStream.Read()
		logger.Tracef(ctx, "/Read: %v", err)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("unable to read: %w", err)
		}

		chunk := make([]byte, len(s.InputBuffer))
		copy(chunk, s.InputBuffer)
		select {
		case s.chunks <- chunk:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *RecordPCMStream) writerLoop(
	ctx context.Context,
) (_ret error) {
	logger.Debugf(ctx, "writerLoop")
	defer func() { logger.Debugf(ctx, "/writerLoop: %v", _ret) }()

	for chunk := range s.chunks {
		logger.Tracef(ctx, "Write")
		n, err := s.Writer.Write(chunk)
		logger.Tracef(ctx, "/Write: %d %v", n, err)
		if err != nil {
			return fmt.Errorf("unable to write: %w", err)
		}
		if n != len(chunk) {
			return fmt.Errorf("invalid write length: %d != %d", n, len(chunk))
		}
	}
	return nil
}

func (s *RecordPCMStream) Close() error {
	s.closeOnce.Do(func() {
		s.CancelFunc()
		if err := s.PortAudioStream.Abort(); err != nil {
			s.closeError = fmt.Errorf("unable to abort the stream: %w", err)
			return
		}
		if err := s.PortAudioStream.Close(); err != nil {
			s.closeError = fmt.Errorf("unable to close the stream: %w", err)
		}
	})
	return s.closeError
}

// Drain waits until the capture stops and returns the reason if it was
// an error.
func (s *RecordPCMStream) Drain() error {
	s.WaitGroup.Wait()
	s.errLocker.Lock()
	defer s.errLocker.Unlock()
	return s.err
}
