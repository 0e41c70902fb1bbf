package main

import (
	"context"
	"io"
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
	_ "github.com/xaionaro-go/voiceactivity/pkg/audio/backends/portaudio"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/decode"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	sampleRate := pflag.Uint32("rate", 16000, "the capture rate: 8000, 16000, 32000 or 48000")
	duration := pflag.Duration("duration", 0, "stop after this long; zero means until interrupted")
	pflag.Parse()

	if pflag.NArg() != 1 {
		panic("expected exactly one positional argument: path to the output WAV file")
	}
	outPath := pflag.Arg(0)

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	rate := audio.SampleRate(*sampleRate)
	assertNoError(framing.ValidateSampleRate(rate))

	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt)
	defer cancelFn()
	if *duration > 0 {
		ctx, cancelFn = context.WithTimeout(ctx, *duration)
		defer cancelFn()
	}

	logger.Infof(ctx, "starting...")
	recorder, err := audio.NewRecorderAuto(ctx)
	assertNoError(err)
	defer recorder.Close()

	r, w := io.Pipe()
	wc := datacounter.NewWriterCounter(w)
	logger.Tracef(ctx, "recorder.RecordS16Mono")
	streamRecord, err := recorder.RecordS16Mono(ctx, rate, wc)
	logger.Tracef(ctx, "/recorder.RecordS16Mono: %v", err)
	assertNoError(err)

	observability.Go(ctx, func() {
		logger.Tracef(ctx, "started the traffic count printer loop")
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Debugf(ctx, "written: %d", wc.Count())
				if pulseStreamRecord, ok := streamRecord.(*pulseaudio.RecordStream); ok {
					logger.Debugf(ctx, "record stream status: running:%v, closed:%v, err:%v", pulseStreamRecord.Running(), pulseStreamRecord.Closed(), pulseStreamRecord.Error())
				}
			}
		}
	})
	observability.Go(ctx, func() {
		<-ctx.Done()
		assertNoError(streamRecord.Close())
		w.Close()
	})

	pcm, err := io.ReadAll(r)
	assertNoError(err)
	samples, err := framing.SamplesFromS16LE(pcm[:len(pcm)&^1])
	assertNoError(err)

	f, err := os.Create(outPath)
	assertNoError(err)
	defer func() {
		assertNoError(f.Close())
	}()
	assertNoError(decode.WriteWAV(f, rate, samples))
	logger.Infof(ctx, "recorded %v into '%s'", time.Duration(len(samples))*time.Second/time.Duration(rate), outPath)
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
