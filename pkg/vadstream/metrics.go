package vadstream

import (
	"context"
	"sync"
	"time"

	"github.com/xaionaro-go/voiceactivity/pkg/vad"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/xaionaro-go/voiceactivity/pkg/vadstream"

// Metrics are the instruments updated by Segmenter and Gate. The
// instruments are safe for concurrent use.
type Metrics struct {
	// Frames counts classified frames, with attribute "speech".
	Frames metric.Int64Counter

	// Segments counts closed segments, with attribute "speech".
	Segments metric.Int64Counter

	// SpeechDuration accumulates the duration of speech segments.
	SpeechDuration metric.Float64Counter

	// ProcessDuration is the wall time spent classifying a single frame.
	ProcessDuration metric.Float64Histogram
}

var processBuckets = []float64{
	0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Frames, err = m.Int64Counter("vad.frames",
		metric.WithDescription("Classified frames by decision."),
	); err != nil {
		return nil, err
	}
	if met.Segments, err = m.Int64Counter("vad.segments",
		metric.WithDescription("Closed segments by kind."),
	); err != nil {
		return nil, err
	}
	if met.SpeechDuration, err = m.Float64Counter("vad.speech.duration",
		metric.WithDescription("Total duration of detected speech."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.ProcessDuration, err = m.Float64Histogram("vad.process.duration",
		metric.WithDescription("Time spent classifying a frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(processBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the instruments of the global meter provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("vadstream: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func speechAttr(isSpeech bool) metric.MeasurementOption {
	return metric.WithAttributes(attribute.Bool("speech", isSpeech))
}

// RecordFrame is a no-op on a nil receiver.
func (m *Metrics) RecordFrame(
	ctx context.Context,
	decision vad.Decision,
	took time.Duration,
) {
	if m == nil {
		return
	}
	m.Frames.Add(ctx, 1, speechAttr(decision.IsSpeech))
	m.ProcessDuration.Record(ctx, took.Seconds())
}

// RecordSegment is a no-op on a nil receiver.
func (m *Metrics) RecordSegment(
	ctx context.Context,
	segment Segment,
) {
	if m == nil {
		return
	}
	m.Segments.Add(ctx, 1, speechAttr(segment.IsSpeech))
	if segment.IsSpeech {
		m.SpeechDuration.Add(ctx, segment.Duration().Seconds())
	}
}
