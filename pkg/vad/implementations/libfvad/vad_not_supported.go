//go:build no_libfvad || windows

package libfvad

import (
	"context"
	"fmt"
	"time"

	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad"
)

const (
	FrameDuration = 30 * time.Millisecond
)

var errNotSupported = fmt.Errorf("built without libfvad")

type VAD struct{}

var _ vad.VAD = (*VAD)(nil)

func NewVAD(sampleRate audio.SampleRate, mode vad.Mode) (*VAD, error) {
	return nil, errNotSupported
}

func LibFVADMode(mode vad.Mode) int {
	return int(vad.ModeVeryAggressive - mode)
}

func (*VAD) Close() error {
	return nil
}

func (*VAD) Encoding(context.Context) (audio.Encoding, error) {
	return nil, errNotSupported
}

func (*VAD) Channels(context.Context) (audio.Channel, error) {
	return 0, errNotSupported
}

func (*VAD) IsSpeech([]int16) (bool, error) {
	return false, errNotSupported
}

func (*VAD) FindNextVoice(context.Context, []byte, float64, time.Duration) (float64, time.Duration, error) {
	return 0, -1, errNotSupported
}

func (*VAD) Reset() error {
	return errNotSupported
}
