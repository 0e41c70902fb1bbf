package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/decode"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/resampler"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/config"
	"github.com/xaionaro-go/voiceactivity/pkg/vadstream"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func main() {
	defaults := config.Default()

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	configPath := pflag.String("config", "", "a YAML file with the detection setup; explicitly given flags override it")
	mode := defaults.Mode
	pflag.Var(&mode, "mode", "aggressiveness: 0..3 or quality, low-bitrate, aggressive, very-aggressive")
	sampleRate := pflag.Uint32("rate", uint32(defaults.SampleRate), "the rate to analyse at: 8000, 16000, 32000 or 48000")
	frameDuration := pflag.Duration("frame-duration", defaults.FrameDuration, "10ms, 20ms or 30ms")
	engine := pflag.String("engine", string(defaults.Engine), "native or libfvad")
	minSpeech := pflag.Duration("min-speech", defaults.Segments.MinSpeech, "shorter speech segments are reported as silence")
	minSilence := pflag.Duration("min-silence", defaults.Segments.MinSilence, "shorter gaps between speech are reported as speech")
	padding := pflag.Duration("padding", defaults.Segments.Padding, "extend every speech segment by this on both sides")
	container := decode.ContainerUndefined
	pflag.Var(&container, "container", "wav, ogg or raw; guessed by the file extension if not set")
	rawFormat := audio.PCMFormatS16LE
	pflag.Var(&rawFormat, "raw-format", "the sample format of raw input")
	rawRate := pflag.Uint32("raw-rate", 16000, "the sample rate of raw input")
	rawChannels := pflag.Uint32("raw-channels", 1, "the amount of interleaved channels of raw input")
	outputFormat := pflag.String("output", "text", "text or yaml")
	framesFlag := pflag.Bool("frames", false, "report every frame decision instead of segments")
	perChannel := pflag.Bool("per-channel", false, "analyse every channel on its own instead of the downmix")
	speechDir := pflag.String("speech-dir", "", "write the speech of every input into this directory as <name>.speech.wav")
	filterbankFlag := pflag.Bool("filterbank", false, "print the band levels of reference tones at --rate and exit")
	statsFlag := pflag.Bool("stats", false, "print the collected metrics to stderr on exit")
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	cfg := defaults
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		assertNoError(err)
	}
	flags := pflag.CommandLine
	if flags.Changed("mode") {
		cfg.Mode = mode
	}
	if flags.Changed("rate") {
		cfg.SampleRate = audio.SampleRate(*sampleRate)
	}
	if flags.Changed("frame-duration") {
		cfg.FrameDuration = *frameDuration
	}
	if flags.Changed("engine") {
		cfg.Engine = config.Engine(*engine)
	}
	if flags.Changed("min-speech") {
		cfg.Segments.MinSpeech = *minSpeech
	}
	if flags.Changed("min-silence") {
		cfg.Segments.MinSilence = *minSilence
	}
	if flags.Changed("padding") {
		cfg.Segments.Padding = *padding
	}
	assertNoError(cfg.Validate())
	logger.Debugf(ctx, "config:\n%s", cfg)

	switch *outputFormat {
	case "text", "yaml":
	default:
		panic(fmt.Errorf("unknown output format '%s'", *outputFormat))
	}

	if *filterbankFlag {
		assertNoError(printFilterbank(os.Stdout, cfg))
		return
	}

	if pflag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] FILE...\n", os.Args[0])
		pflag.PrintDefaults()
		os.Exit(2)
	}

	var reader *sdkmetric.ManualReader
	if *statsFlag {
		reader = sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		otel.SetMeterProvider(mp)
		defer mp.Shutdown(ctx)
	}

	a := &analyzer{
		Config:     cfg,
		Metrics:    vadstream.DefaultMetrics(),
		Container:  container,
		Frames:     *framesFlag,
		PerChannel: *perChannel,
		SpeechDir:  *speechDir,
		RawFormat: resampler.Format{
			Channels:   audio.Channel(*rawChannels),
			SampleRate: audio.SampleRate(*rawRate),
			PCMFormat:  rawFormat,
		},
	}

	startedAt := time.Now()
	var (
		mErr    *multierror.Error
		reports []report
	)
	for _, path := range pflag.Args() {
		fileReports, err := a.analyzeFile(ctx, path)
		if err != nil {
			mErr = multierror.Append(mErr, err)
			continue
		}
		reports = append(reports, fileReports...)
	}
	logger.Debugf(ctx, "analysed %d inputs in %v", pflag.NArg(), time.Since(startedAt))

	switch *outputFormat {
	case "text":
		assertNoError(writeText(os.Stdout, reports))
	case "yaml":
		assertNoError(writeYAML(os.Stdout, reports))
	}

	if reader != nil {
		assertNoError(printStats(ctx, os.Stderr, reader))
	}

	if err := mErr.ErrorOrNil(); err != nil {
		logger.Errorf(ctx, "%v", err)
		belt.Flush(ctx)
		os.Exit(1)
	}
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
