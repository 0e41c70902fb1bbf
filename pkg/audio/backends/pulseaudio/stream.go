package pulseaudio

import (
	"errors"
	"fmt"

	"github.com/jfreymuth/pulse"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/types"
)

// ErrUnderflow means the reader did not keep up with the playback, so
// the sink played silence at some point.
var ErrUnderflow = errors.New("underflow")

// pulseStream is what PlaybackStream and RecordStream have in common.
type pulseStream interface {
	Stop()
	Close()
}

// closeStream stops the stream; the client stays open, it belongs to the
// player or the recorder.
func closeStream(s pulseStream) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("got a panic while closing the stream: %v", r)
		}
	}()
	s.Stop()
	s.Close()
	return nil
}

type PlayStream struct {
	*pulse.PlaybackStream
}

var _ types.PlayStream = (*PlayStream)(nil)

func newPlayStream(s *pulse.PlaybackStream) *PlayStream {
	return &PlayStream{
		PlaybackStream: s,
	}
}

// Drain blocks until the reader is exhausted and played out.
func (s *PlayStream) Drain() error {
	s.PlaybackStream.Drain()
	if err := s.Error(); err != nil {
		return fmt.Errorf("an error occurred during playback: %w", err)
	}
	if s.Underflow() {
		return ErrUnderflow
	}
	return nil
}

func (s *PlayStream) Close() error {
	return closeStream(s.PlaybackStream)
}

type RecordStream struct {
	*pulse.RecordStream
}

var _ types.RecordStream = (*RecordStream)(nil)

func newRecordStream(s *pulse.RecordStream) *RecordStream {
	return &RecordStream{
		RecordStream: s,
	}
}

// Drain only reports the recording error: a capture never runs dry.
func (s *RecordStream) Drain() error {
	if err := s.Error(); err != nil {
		return fmt.Errorf("an error occurred during recording: %w", err)
	}
	return nil
}

func (s *RecordStream) Close() error {
	return closeStream(s.RecordStream)
}
