package vadstream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
)

func TestGate(t *testing.T) {
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	pcm := framing.SamplesToS16LE(testSignal())
	pcm = append(pcm, make([]byte, 101)...)
	s := newTestSegmenter(t)
	g, err := NewGate(ctx, bytes.NewReader(pcm), s, 4096, 4096)
	require.NoError(t, err)
	defer g.Close()

	out, err := io.ReadAll(g)
	require.NoError(t, err)
	require.Len(t, out, len(pcm))

	frameSize := s.FrameSize()
	toneStart := leadFrames * frameSize
	toneEnd := (leadFrames + toneFrames) * frameSize
	require.Equal(t, make([]byte, toneStart), out[:toneStart], "the leading noise is expected to be muted")
	require.Equal(t, pcm[toneStart:toneEnd], out[toneStart:toneEnd])
	tailStart := toneEnd + 10*frameSize
	require.Equal(t, make([]byte, len(out)-tailStart), out[tailStart:])

	segments := s.Segments()
	require.Len(t, segments, 3)
	require.Equal(t, s.Position(), segments[2].End)
}

func gateAll(t *testing.T, input io.Reader, inputBufferSize, outputBufferSize uint, readSize int) []byte {
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	g, err := NewGate(ctx, input, newTestSegmenter(t), inputBufferSize, outputBufferSize)
	require.NoError(t, err)
	defer g.Close()

	var out []byte
	buf := make([]byte, readSize)
	for {
		n, err := g.Read(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
	}
}

func TestGateTightBuffers(t *testing.T) {
	pcm := framing.SamplesToS16LE(testSignal())
	expected := gateAll(t, bytes.NewReader(pcm), 4<<20, 4<<20, 64*1024)
	require.Len(t, expected, len(pcm))

	frameSize := uint(newTestSegmenter(t).FrameSize())
	for _, sizes := range [][2]uint{
		{4, 2 * frameSize},
		{777, 2*frameSize + 1},
		{4096, 4096},
	} {
		for attempt := 0; attempt < 3; attempt++ {
			out := gateAll(t, bytes.NewReader(pcm), sizes[0], sizes[1], 333)
			require.Equal(t, expected, out, "buffers %v, attempt %d", sizes, attempt)
		}
	}

	out := gateAll(t, iotest.OneByteReader(bytes.NewReader(pcm)), 4096, 4096, 7)
	require.Equal(t, expected, out)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("unplugged")
}

func TestGateInputError(t *testing.T) {
	g, err := NewGate(context.Background(), failingReader{}, newTestSegmenter(t), 4096, 4096)
	require.NoError(t, err)
	defer g.Close()

	_, err = io.ReadAll(g)
	require.ErrorContains(t, err, "unplugged")
}

func TestGateBufferSizes(t *testing.T) {
	s := newTestSegmenter(t)
	_, err := NewGate(context.Background(), bytes.NewReader(nil), s, 4096, uint(s.FrameSize()))
	require.Error(t, err)
	_, err = NewGate(context.Background(), bytes.NewReader(nil), s, 2, 4096)
	require.Error(t, err)
}

func TestGateEmptyInput(t *testing.T) {
	g, err := NewGate(context.Background(), bytes.NewReader(nil), newTestSegmenter(t), 4096, 4096)
	require.NoError(t, err)
	defer g.Close()

	out, err := io.ReadAll(g)
	require.NoError(t, err)
	require.Empty(t, out)
}
