package vadstream

import (
	"fmt"
	"time"

	"github.com/xaionaro-go/voiceactivity/pkg/vad/config"
)

type Segment struct {
	Start    time.Duration `yaml:"start"`
	End      time.Duration `yaml:"end"`
	IsSpeech bool          `yaml:"speech"`
}

func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

func (s Segment) String() string {
	kind := "silence"
	if s.IsSpeech {
		kind = "speech"
	}
	return fmt.Sprintf("%s [%v, %v)", kind, s.Start, s.End)
}

// Merge joins adjacent segments of the same kind and drops empty ones.
func Merge(segments []Segment) []Segment {
	result := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.End <= seg.Start {
			continue
		}
		if len(result) > 0 {
			last := &result[len(result)-1]
			if last.IsSpeech == seg.IsSpeech {
				last.End = seg.End
				continue
			}
		}
		result = append(result, seg)
	}
	return result
}

// Postprocess applies the minimal silence, minimal speech and padding
// constraints to a contiguous timeline of segments. The timeline keeps
// covering the same interval.
func Postprocess(segments []Segment, cfg config.Segments) []Segment {
	result := Merge(segments)
	if len(result) == 0 {
		return result
	}

	// short gaps inside speech
	for idx := 1; idx < len(result)-1; idx++ {
		seg := &result[idx]
		if !seg.IsSpeech && seg.Duration() < cfg.MinSilence {
			seg.IsSpeech = true
		}
	}
	result = Merge(result)

	for idx := range result {
		seg := &result[idx]
		if seg.IsSpeech && seg.Duration() < cfg.MinSpeech {
			seg.IsSpeech = false
		}
	}
	result = Merge(result)

	if cfg.Padding <= 0 {
		return result
	}
	for idx := range result {
		if !result[idx].IsSpeech {
			continue
		}
		if idx > 0 {
			prev := &result[idx-1]
			start := max(result[idx].Start-cfg.Padding, prev.Start)
			prev.End = start
			result[idx].Start = start
		}
		if idx < len(result)-1 {
			next := &result[idx+1]
			end := min(result[idx].End+cfg.Padding, next.End)
			next.Start = end
			result[idx].End = end
		}
	}
	return Merge(result)
}

// SpeechOnly filters out the non-speech segments.
func SpeechOnly(segments []Segment) []Segment {
	var result []Segment
	for _, seg := range segments {
		if seg.IsSpeech {
			result = append(result, seg)
		}
	}
	return result
}
