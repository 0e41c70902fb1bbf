package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	_ "github.com/xaionaro-go/voiceactivity/pkg/audio/backends/oto"
	_ "github.com/xaionaro-go/voiceactivity/pkg/audio/backends/portaudio"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/config"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/detector"
	"github.com/xaionaro-go/voiceactivity/pkg/vadstream"
)

func main() {
	defaults := config.Default()

	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	configPath := pflag.String("config", "", "a YAML file with the detection setup; explicitly given flags override it")
	mode := defaults.Mode
	pflag.Var(&mode, "mode", "aggressiveness: 0..3 or quality, low-bitrate, aggressive, very-aggressive")
	sampleRate := pflag.Uint32("rate", uint32(defaults.SampleRate), "the capture rate: 8000, 16000, 32000 or 48000")
	frameDuration := pflag.Duration("frame-duration", defaults.FrameDuration, "10ms, 20ms or 30ms")
	bufferSize := pflag.Uint("buffer-size", 1024*1024, "the size of the gate input and output buffers in bytes")
	eventsOnly := pflag.Bool("events-only", false, "do not play the gated audio back, only print the segments")
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt)
	defer cancelFn()

	if *netPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	cfg := defaults
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		assertNoError(err)
	}
	if pflag.CommandLine.Changed("mode") {
		cfg.Mode = mode
	}
	if pflag.CommandLine.Changed("rate") {
		cfg.SampleRate = audio.SampleRate(*sampleRate)
	}
	if pflag.CommandLine.Changed("frame-duration") {
		cfg.FrameDuration = *frameDuration
	}
	assertNoError(cfg.Validate())
	if cfg.Engine != config.EngineNative {
		logger.Warnf(ctx, "the gate always uses the native engine, ignoring '%s'", cfg.Engine)
	}

	logger.Infof(ctx, "starting...")
	recorder, err := audio.NewRecorderAuto(ctx)
	assertNoError(err)
	defer recorder.Close()

	var player *audio.Player
	if *eventsOnly {
		player = audio.NewPlayer(audio.PlayerPCMDummy{})
	} else {
		player, err = audio.NewPlayerAuto(ctx)
		assertNoError(err)
	}
	defer player.Close()

	r, w := io.Pipe()
	wc := datacounter.NewWriterCounter(w)

	logger.Tracef(ctx, "recorder.RecordS16Mono")
	streamRecord, err := recorder.RecordS16Mono(ctx, cfg.SampleRate, wc)
	logger.Tracef(ctx, "/recorder.RecordS16Mono: %v", err)
	assertNoError(err)
	defer func() {
		assertNoError(streamRecord.Close())
	}()

	det, err := detector.New(ctx, cfg.SampleRate, cfg.Mode, detector.OptionFrameDuration(cfg.FrameDuration))
	assertNoError(err)
	segmenter, err := vadstream.NewSegmenter(ctx, det, cfg.FrameDuration,
		vadstream.OptionMetrics{Metrics: vadstream.DefaultMetrics()},
		vadstream.OptionSegments(cfg.Segments),
		vadstream.OptionOnSegment(func(ctx context.Context, seg vadstream.Segment) {
			if seg.IsSpeech {
				fmt.Printf("%v\tspeech started\n", seg.Start)
			} else {
				fmt.Printf("%v\tspeech ended\n", seg.Start)
			}
		}),
	)
	assertNoError(err)

	gate, err := vadstream.NewGate(ctx, r, segmenter, *bufferSize, *bufferSize)
	assertNoError(err)
	defer gate.Close()
	rc := datacounter.NewReaderCounter(gate)

	observability.Go(ctx, func() {
		logger.Tracef(ctx, "started the traffic count printer loop")
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Debugf(ctx, "recorded: %d, gated: %d", wc.Count(), rc.Count())
				if pulseStreamRecord, ok := streamRecord.(*pulseaudio.RecordStream); ok {
					logger.Debugf(ctx, "record stream status: running:%v, closed:%v, err:%v", pulseStreamRecord.Running(), pulseStreamRecord.Closed(), pulseStreamRecord.Error())
				}
			}
		}
	})
	observability.Go(ctx, func() {
		<-ctx.Done()
		logger.Infof(ctx, "stopping...")
		w.CloseWithError(io.EOF)
	})

	logger.Tracef(ctx, "player.PlayS16Mono")
	streamPlay, err := player.PlayS16Mono(ctx, cfg.SampleRate, rc)
	logger.Tracef(ctx, "/player.PlayS16Mono: %v", err)
	assertNoError(err)
	defer func() {
		assertNoError(streamPlay.Close())
	}()

	logger.Infof(ctx, "started (%T -> %T)", recorder.RecorderPCM, player.PlayerPCM)
	if err := streamPlay.Drain(); err != nil {
		logger.Errorf(ctx, "playback: %v", err)
	}
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
