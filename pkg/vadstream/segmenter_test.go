package vadstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/voiceactivity/pkg/vad"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/config"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/detector"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
)

func TestSegmenterFindsTheTone(t *testing.T) {
	ctx := context.Background()
	s := newTestSegmenter(t)
	pcm := framing.SamplesToS16LE(testSignal())

	_, err := s.Write(ctx, pcm)
	require.NoError(t, err)
	_, err = s.Flush(ctx)
	require.NoError(t, err)

	segments := s.Segments()
	require.Len(t, segments, 3, spew.Sdump(segments))
	assert.False(t, segments[0].IsSpeech)
	assert.True(t, segments[1].IsSpeech)
	assert.False(t, segments[2].IsSpeech)
	assert.Equal(t, frameTime(leadFrames), segments[1].Start)
	assert.GreaterOrEqual(t, segments[1].End, frameTime(leadFrames+toneFrames))
	assert.Equal(t, frameTime(leadFrames+toneFrames+trailFrames), segments[2].End)
	assert.Equal(t, segments[2].End, s.Position())
	assert.Equal(t, segments, s.Result())
}

func TestSegmenterChunking(t *testing.T) {
	ctx := context.Background()
	pcm := framing.SamplesToS16LE(testSignal())

	whole := newTestSegmenter(t)
	_, err := whole.Write(ctx, pcm)
	require.NoError(t, err)

	for _, chunkSize := range []int{1, 2, 777, 960, 4096} {
		chunked := newTestSegmenter(t)
		var started []Segment
		for offset := 0; offset < len(pcm); offset += chunkSize {
			end := min(offset+chunkSize, len(pcm))
			segs, err := chunked.Write(ctx, pcm[offset:end])
			require.NoError(t, err)
			started = append(started, segs...)
		}
		require.Equal(t, whole.Segments(), chunked.Segments(), "chunk size %d", chunkSize)
		require.Len(t, started, len(chunked.Segments()))
		require.Zero(t, chunked.Buffered())
	}
}

func TestSegmenterFlushTail(t *testing.T) {
	ctx := context.Background()
	s := newTestSegmenter(t)

	_, err := s.Write(ctx, make([]byte, s.FrameSize()+101))
	require.NoError(t, err)
	require.Equal(t, 101, s.Buffered())
	require.Equal(t, testFrameDuration, s.Position())

	_, err = s.Flush(ctx)
	require.NoError(t, err)
	require.Zero(t, s.Buffered())
	require.Equal(t, testFrameDuration+50*time.Second/time.Duration(testRate), s.Position())
	require.Equal(t, []Segment{{Start: 0, End: s.Position()}}, s.Segments())
}

func TestSegmenterOnSegmentAndReset(t *testing.T) {
	ctx := context.Background()
	var started []Segment
	s := newTestSegmenter(t,
		OptionOnSegment(func(_ context.Context, seg Segment) { started = append(started, seg) }),
		OptionSegments(config.Segments{MinSpeech: time.Hour}),
	)
	pcm := framing.SamplesToS16LE(testSignal())

	_, err := s.Write(ctx, pcm)
	require.NoError(t, err)
	require.Len(t, started, 3)
	require.True(t, started[1].IsSpeech)
	require.Len(t, s.Result(), 1)
	require.False(t, s.Result()[0].IsSpeech)

	first := s.Segments()
	s.Reset()
	require.Empty(t, s.Segments())
	require.Zero(t, s.Position())

	_, err = s.Write(ctx, pcm)
	require.NoError(t, err)
	require.Equal(t, first, s.Segments())
}

func TestSegmenterFrameDurationMismatch(t *testing.T) {
	d, err := detector.New(context.Background(), testRate, vad.ModeQuality, detector.OptionFrameDuration(10*time.Millisecond))
	require.NoError(t, err)
	_, err = NewSegmenter(context.Background(), d, testFrameDuration)
	require.Error(t, err)
	require.True(t, errors.As(err, &vad.ErrInvalidFrameLength{}))

	_, err = NewSegmenter(context.Background(), newTestDetector(t), 25*time.Millisecond)
	require.Error(t, err)
}

func TestSegmenterOnFrame(t *testing.T) {
	ctx := context.Background()
	var (
		starts    []time.Duration
		decisions []vad.Decision
	)
	s := newTestSegmenter(t,
		OptionOnFrame(func(_ context.Context, start time.Duration, d vad.Decision) {
			starts = append(starts, start)
			decisions = append(decisions, d)
		}),
	)
	_, err := s.Write(ctx, framing.SamplesToS16LE(testSignal()))
	require.NoError(t, err)

	total := leadFrames + toneFrames + trailFrames
	require.Len(t, decisions, total)
	for idx, start := range starts {
		require.Equal(t, frameTime(idx), start)
	}
	assert.False(t, decisions[leadFrames-1].IsSpeech)
	assert.True(t, decisions[leadFrames].IsSpeech)
	assert.True(t, decisions[leadFrames].Vote)
}

func TestSegmenterCarriesPartialFrames(t *testing.T) {
	ctx := context.Background()
	s := newTestSegmenter(t)
	frameSize := s.FrameSize()
	pcm := framing.SamplesToS16LE(testSignal())[:3*frameSize]

	_, err := s.Write(ctx, pcm[:frameSize-1])
	require.NoError(t, err)
	require.Equal(t, frameSize-1, s.Buffered())
	require.Zero(t, s.Position())

	_, err = s.Write(ctx, pcm[frameSize-1:2*frameSize+7])
	require.NoError(t, err)
	require.Equal(t, 7, s.Buffered())
	require.Equal(t, 2*testFrameDuration, s.Position())

	s.Reset()
	require.Zero(t, s.Buffered())

	_, err = s.Write(ctx, pcm)
	require.NoError(t, err)
	require.Zero(t, s.Buffered())
	require.Equal(t, 3*testFrameDuration, s.Position())
}
