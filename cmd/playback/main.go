package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	_ "github.com/xaionaro-go/voiceactivity/pkg/audio/backends/oto"
	_ "github.com/xaionaro-go/voiceactivity/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/decode"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/resampler"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/config"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/detector"
	"github.com/xaionaro-go/voiceactivity/pkg/vadstream"
)

func main() {
	defaults := config.Default()

	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	mode := defaults.Mode
	pflag.Var(&mode, "mode", "aggressiveness: 0..3 or quality, low-bitrate, aggressive, very-aggressive")
	sampleRate := pflag.Uint32("rate", uint32(defaults.SampleRate), "the rate to detect and play at: 8000, 16000, 32000 or 48000")
	container := decode.ContainerUndefined
	pflag.Var(&container, "container", "wav, ogg or raw; guessed by the file extension if not set")
	rawFormat := audio.PCMFormatS16LE
	pflag.Var(&rawFormat, "raw-format", "the sample format of raw input")
	rawRate := pflag.Uint32("raw-rate", 16000, "the sample rate of raw input")
	rawChannels := pflag.Uint32("raw-channels", 1, "the amount of interleaved channels of raw input")
	ungated := pflag.Bool("ungated", false, "play everything, not only the speech")
	skipSilence := pflag.Bool("skip-leading-silence", false, "start the playback at the first voice")
	engine := pflag.String("engine", string(defaults.Engine), "the detector used by --skip-leading-silence: native or libfvad")
	pflag.Parse()

	if pflag.NArg() != 1 {
		panic("expected exactly one positional argument: path to a WAV, Ogg Vorbis or raw PCM file")
	}
	filePath := pflag.Arg(0)

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt)
	defer cancelFn()

	logger.Infof(ctx, "starting...")
	file, err := decode.Open(filePath, container, resampler.Format{
		Channels:   audio.Channel(*rawChannels),
		SampleRate: audio.SampleRate(*rawRate),
		PCMFormat:  rawFormat,
	})
	assertNoError(err)
	defer file.Close()
	logger.Debugf(ctx, "'%s' is %s of %s", filePath, file.Container, file.Format)

	rate := audio.SampleRate(*sampleRate)
	var r io.Reader
	r, err = file.ToDetector(rate)
	assertNoError(err)

	if *skipSilence {
		v, err := newVAD(ctx, config.Engine(*engine), rate, mode, defaults.FrameDuration)
		assertNoError(err)
		r, err = skipLeadingSilence(ctx, v, rate, r, defaults.Segments.MinSpeech)
		closeErr := v.Close()
		assertNoError(err)
		assertNoError(closeErr)
	}

	if !*ungated {
		det, err := detector.New(ctx, rate, mode)
		assertNoError(err)
		segmenter, err := vadstream.NewSegmenter(ctx, det, defaults.FrameDuration,
			vadstream.OptionOnSegment(func(ctx context.Context, seg vadstream.Segment) {
				logger.Infof(ctx, "%v: speech:%v", seg.Start, seg.IsSpeech)
			}),
		)
		assertNoError(err)
		gate, err := vadstream.NewGate(ctx, r, segmenter, 64*1024, 64*1024)
		assertNoError(err)
		defer gate.Close()
		r = gate
	}

	player, err := audio.NewPlayerAuto(ctx)
	assertNoError(err)
	defer player.Close()

	logger.Tracef(ctx, "player.PlayS16Mono")
	streamPlay, err := player.PlayS16Mono(ctx, rate, r)
	logger.Tracef(ctx, "/player.PlayS16Mono: %v", err)
	assertNoError(err)
	defer func() {
		assertNoError(streamPlay.Close())
	}()

	logger.Infof(ctx, "started (file -> %T)", player.PlayerPCM)
	if err := streamPlay.Drain(); err != nil {
		logger.Errorf(ctx, "playback: %v", err)
	}
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
