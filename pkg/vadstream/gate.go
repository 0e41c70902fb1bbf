package vadstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/observability"
)

// Gate reads S16LE mono PCM from the input and passes it through with the
// non-speech frames replaced by silence. The detection runs in background
// goroutines, so a slow consumer does not stall the input until the
// buffers are full.
type Gate struct {
	Segmenter *Segmenter

	inputBufferLocker  sync.Mutex
	inputBuffer        *circular.Buffer
	inputEOF           bool
	outputBufferLocker sync.Mutex
	outputBuffer       *circular.Buffer
	finished           bool
	resultError        error
	readCtx            context.Context
	cancelFunc         context.CancelFunc

	readProgressedCh            chan struct{}
	detectionInputProgressedCh  chan struct{}
	detectionOutputProgressedCh chan struct{}
	outputProgressedCh          chan struct{}
}

var _ io.ReadCloser = (*Gate)(nil)

func NewGate(
	ctx context.Context,
	input io.Reader,
	segmenter *Segmenter,
	inputBufferSize uint,
	outputBufferSize uint,
) (*Gate, error) {
	frameSize := uint(segmenter.FrameSize())
	if outputBufferSize < 2*frameSize {
		return nil, fmt.Errorf("the output buffer size %d is less than two frames (%d)", outputBufferSize, 2*frameSize)
	}
	if inputBufferSize < 4 {
		return nil, fmt.Errorf("the input buffer size %d is too small", inputBufferSize)
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	g := &Gate{
		Segmenter:    segmenter,
		inputBuffer:  circular.NewBuffer(int(inputBufferSize)),
		outputBuffer: circular.NewBuffer(int(outputBufferSize)),
		readCtx:      ctx,
		cancelFunc:   cancelFunc,

		readProgressedCh:            make(chan struct{}),
		detectionInputProgressedCh:  make(chan struct{}),
		detectionOutputProgressedCh: make(chan struct{}),
		outputProgressedCh:          make(chan struct{}),
	}
	observability.Go(ctx, func() {
		err := g.readerLoop(ctx, input, int(min(inputBufferSize/2, 65536)))
		if err != nil {
			defer cancelFunc()
			g.finish(fmt.Errorf("got an error from the reader loop: %w", err))
		}
	})
	observability.Go(ctx, func() {
		defer cancelFunc()
		err := g.detectionLoop(ctx)
		if err != nil {
			err = fmt.Errorf("got an error from the detection loop: %w", err)
		}
		g.finish(err)
	})
	return g, nil
}

func (g *Gate) finish(err error) {
	g.outputBufferLocker.Lock()
	defer g.outputBufferLocker.Unlock()
	if g.finished {
		return
	}
	g.finished = true
	g.resultError = err
	var oldCh chan struct{}
	oldCh, g.detectionOutputProgressedCh = g.detectionOutputProgressedCh, make(chan struct{})
	close(oldCh)
}

func (g *Gate) readerLoop(
	ctx context.Context,
	input io.Reader,
	readBufSize int,
) (_err error) {
	logger.Tracef(ctx, "readerLoop")
	defer func() { logger.Tracef(ctx, "/readerLoop: %v", _err) }()

	readBuf := make([]byte, readBufSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := input.Read(readBuf)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("unable to read the input: %w", readErr)
		}
		if n < 0 {
			return fmt.Errorf("received invalid value of received bytes: %d", n)
		}

		if err := func() error {
			g.inputBufferLocker.Lock()
			defer g.inputBufferLocker.Unlock()
			pending := readBuf[:n]
			for len(pending) > 0 {
				w, err := g.inputBuffer.Write(pending)
				pending = pending[w:]
				if err == nil {
					break
				}
				if !errors.Is(err, circular.ErrNoSpace) {
					return fmt.Errorf("unable to write to the circular buffer: %w", err)
				}
				if w > 0 {
					g.signalReadProgressed()
				}
				g.waitForDetectionInputProgressed(ctx)
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
			if readErr != nil {
				logger.Debugf(ctx, "the input is exhausted")
				g.inputEOF = true
			}
			g.signalReadProgressed()
			return nil
		}(); err != nil {
			return err
		}
		if readErr != nil {
			return nil
		}
	}
}

// signalReadProgressed must be called with inputBufferLocker held.
func (g *Gate) signalReadProgressed() {
	var oldCh chan struct{}
	oldCh, g.readProgressedCh = g.readProgressedCh, make(chan struct{})
	close(oldCh)
}

func (g *Gate) waitForDetectionInputProgressed(ctx context.Context) {
	logger.Tracef(ctx, "waitForDetectionInputProgressed")
	defer logger.Tracef(ctx, "/waitForDetectionInputProgressed")

	ch := g.detectionInputProgressedCh
	g.inputBufferLocker.Unlock()
	defer g.inputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
	}
}

func (g *Gate) detectionLoop(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "detectionLoop")
	defer func() { logger.Tracef(ctx, "/detectionLoop: %v", _err) }()

	frameSize := g.Segmenter.FrameSize()
	frame := make([]byte, frameSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		receivedCount := 0
		eof := false
		for {
			var waitCh chan struct{}
			if err := func() error {
				g.inputBufferLocker.Lock()
				defer g.inputBufferLocker.Unlock()
				n, err := g.inputBuffer.Read(frame[receivedCount:])
				waitCh = g.readProgressedCh
				eof = g.inputEOF
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("unable to read from the circular buffer: %w", err)
				}
				if n < 0 {
					return fmt.Errorf("received a negative count: %d", n)
				}
				receivedCount += n
				var oldCh chan struct{}
				oldCh, g.detectionInputProgressedCh = g.detectionInputProgressedCh, make(chan struct{})
				close(oldCh)
				return nil
			}(); err != nil {
				return err
			}
			if receivedCount >= frameSize || eof {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-waitCh:
			}
		}

		if receivedCount < frameSize {
			return g.flushTail(ctx, frame[:receivedCount])
		}

		if _, err := g.Segmenter.Write(ctx, frame); err != nil {
			return err
		}
		if !g.Segmenter.IsSpeech() {
			clear(frame)
		}
		if err := g.writeOutput(ctx, frame); err != nil {
			return err
		}
	}
}

func (g *Gate) flushTail(ctx context.Context, tail []byte) error {
	logger.Debugf(ctx, "flushing the tail of %d bytes", len(tail))
	if _, err := g.Segmenter.Write(ctx, tail); err != nil {
		return err
	}
	if _, err := g.Segmenter.Flush(ctx); err != nil {
		return err
	}
	if len(tail) == 0 {
		return nil
	}
	if !g.Segmenter.IsSpeech() {
		clear(tail)
	}
	return g.writeOutput(ctx, tail)
}

func (g *Gate) writeOutput(ctx context.Context, buf []byte) error {
	g.outputBufferLocker.Lock()
	defer g.outputBufferLocker.Unlock()
	for len(buf) > 0 {
		w, err := g.outputBuffer.Write(buf)
		buf = buf[w:]
		if w > 0 {
			var oldCh chan struct{}
			oldCh, g.detectionOutputProgressedCh = g.detectionOutputProgressedCh, make(chan struct{})
			close(oldCh)
		}
		if err == nil {
			break
		}
		if !errors.Is(err, circular.ErrNoSpace) {
			return fmt.Errorf("unable to write to the circular buffer: %w", err)
		}
		g.waitForOutput(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (g *Gate) waitForOutput(ctx context.Context) {
	logger.Tracef(ctx, "waitForOutput")
	defer logger.Tracef(ctx, "/waitForOutput")

	ch := g.outputProgressedCh
	g.outputBufferLocker.Unlock()
	defer g.outputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
	}
}

// Read returns io.EOF once the input is exhausted and everything it had
// is read.
func (g *Gate) Read(pcm []byte) (_ret int, _err error) {
	logger.Tracef(g.readCtx, "Read, len:%d", len(pcm))
	defer func() { logger.Tracef(g.readCtx, "/Read, len:%d: %d, %v", len(pcm), _ret, _err) }()

	g.outputBufferLocker.Lock()
	defer g.outputBufferLocker.Unlock()
	for {
		n, err := g.outputBuffer.Read(pcm)
		if n > 0 {
			var oldCh chan struct{}
			oldCh, g.outputProgressedCh = g.outputProgressedCh, make(chan struct{})
			close(oldCh)
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if g.finished {
			if g.resultError != nil {
				return 0, g.resultError
			}
			return 0, io.EOF
		}

		// closed on both new output and finish
		ch := g.detectionOutputProgressedCh
		g.outputBufferLocker.Unlock()
		<-ch
		g.outputBufferLocker.Lock()
	}
}

// Close stops the background goroutines; the input is not closed.
func (g *Gate) Close() error {
	g.cancelFunc()
	return nil
}
