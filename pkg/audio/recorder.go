package audio

import (
	"context"
	"fmt"
	"io"

	"github.com/xaionaro-go/voiceactivity/pkg/audio/registry"
)

type Recorder struct {
	RecorderPCM
}

func NewRecorder(recorderPCM RecorderPCM) *Recorder {
	return &Recorder{
		RecorderPCM: recorderPCM,
	}
}

var recorderSelector = backendSelector[registry.RecorderPCMFactory, RecorderPCM]{
	newBackend: func(f registry.RecorderPCMFactory) (RecorderPCM, error) {
		return f.NewRecorderPCM()
	},
}

// NewRecorderAuto picks the most preferred working recorder backend.
func NewRecorderAuto(
	ctx context.Context,
) (*Recorder, error) {
	recorder, err := recorderSelector.Select(ctx, registry.RecorderFactories())
	if err != nil {
		return nil, fmt.Errorf("unable to initialize any PCM recorder: %w", err)
	}
	return NewRecorder(recorder), nil
}

// RecordS16Mono records in the input layout of the voice activity
// detector.
func (a *Recorder) RecordS16Mono(
	ctx context.Context,
	sampleRate SampleRate,
	pcmWriter io.Writer,
) (RecordStream, error) {
	return a.RecorderPCM.RecordPCM(
		ctx,
		sampleRate,
		1,
		PCMFormatS16LE,
		pcmWriter,
	)
}

// RecorderPCMDummy records nothing.
type RecorderPCMDummy struct{}

var _ RecorderPCM = RecorderPCMDummy{}

func (RecorderPCMDummy) Close() error {
	return nil
}

func (RecorderPCMDummy) Ping(context.Context) error {
	return nil
}

func (RecorderPCMDummy) RecordPCM(
	ctx context.Context,
	sampleRate SampleRate,
	channels Channel,
	format PCMFormat,
	writer io.Writer,
) (RecordStream, error) {
	return StreamDummy{}, nil
}
