package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/xaionaro-go/voiceactivity/pkg/audio/spectrum"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/config"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/filterbank"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gopkg.in/yaml.v3"
)

func (r report) title() string {
	if r.Channel == nil {
		return r.Path
	}
	return fmt.Sprintf("%s#%d", r.Path, *r.Channel)
}

func writeText(w io.Writer, reports []report) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%v\n", r.title(), r.Format, r.Duration)
		for _, seg := range r.Segments {
			fmt.Fprintf(tw, "\t%s\t%v\n", seg, seg.Duration())
		}
		for _, f := range r.Frames {
			fmt.Fprintf(tw, "\t%v\tspeech:%v\tvote:%v\tscore:%.2f\n", f.Start, f.IsSpeech, f.Vote, f.Score)
		}
	}
	return tw.Flush()
}

func writeYAML(w io.Writer, reports []report) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("unable to encode the reports: %w", err)
	}
	return enc.Close()
}

// printFilterbank shows which band every reference tone lands in.
func printFilterbank(w io.Writer, cfg config.Config) error {
	const amplitude = 8000
	nyquist := float64(cfg.SampleRate) / 2
	responses, err := spectrum.Sweep(cfg.SampleRate, cfg.FrameDuration, amplitude, spectrum.LogFrequencies(60, nyquist*0.95, 32))
	if err != nil {
		return fmt.Errorf("unable to sweep the filterbank: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "Hz\t")
	for _, band := range filterbank.Bands(cfg.SampleRate) {
		fmt.Fprintf(tw, "%.0f-%.0f\t", band.Low, band.High)
	}
	fmt.Fprintln(tw, "strongest\t")
	for _, resp := range responses {
		fmt.Fprintf(tw, "%.0f\t", resp.Frequency)
		for _, l := range resp.Levels {
			fmt.Fprintf(tw, "%.1f\t", l)
		}
		fmt.Fprintf(tw, "%d\t\n", resp.Strongest())
	}
	return tw.Flush()
}

func printStats(ctx context.Context, w io.Writer, reader *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("unable to collect the metrics: %w", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					fmt.Fprintf(w, "%s%s: %d\n", m.Name, attrsString(dp.Attributes), dp.Value)
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					fmt.Fprintf(w, "%s%s: %g%s\n", m.Name, attrsString(dp.Attributes), dp.Value, m.Unit)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					if dp.Count == 0 {
						continue
					}
					fmt.Fprintf(w, "%s%s: count:%d mean:%g%s\n", m.Name, attrsString(dp.Attributes), dp.Count, dp.Sum/float64(dp.Count), m.Unit)
				}
			}
		}
	}
	return nil
}

func attrsString(set attribute.Set) string {
	if set.Len() == 0 {
		return ""
	}
	var parts []string
	for _, kv := range set.ToSlice() {
		parts = append(parts, fmt.Sprintf("%s=%s", kv.Key, kv.Value.Emit()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
