package classifier

import (
	"time"

	"github.com/xaionaro-go/voiceactivity/pkg/vad"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
)

// MaxSpeechFrames is the length of a vote run after which the long
// hangover is used.
const MaxSpeechFrames = 6

// Thresholds are in log2 likelihood ratio units.
type Thresholds struct {
	// Total is compared with the weighted score of all bands.
	Total float64

	// Individual is compared with every single band.
	Individual float64
}

var thresholds = [vad.EndOfMode]Thresholds{
	vad.ModeQuality:        {Total: 4, Individual: 12},
	vad.ModeLowBitrate:     {Total: 3, Individual: 10},
	vad.ModeAggressive:     {Total: 2, Individual: 8},
	vad.ModeVeryAggressive: {Total: 1.5, Individual: 6},
}

// hangover lengths in frames, indexed by the frame duration (10, 20, 30 ms)
var (
	shortHangover = [vad.EndOfMode][3]int{
		vad.ModeQuality:        {6, 3, 2},
		vad.ModeLowBitrate:     {6, 3, 2},
		vad.ModeAggressive:     {8, 4, 3},
		vad.ModeVeryAggressive: {8, 4, 3},
	}
	longHangover = [vad.EndOfMode][3]int{
		vad.ModeQuality:        {9, 5, 3},
		vad.ModeLowBitrate:     {9, 5, 3},
		vad.ModeAggressive:     {14, 7, 5},
		vad.ModeVeryAggressive: {14, 7, 5},
	}
)

func ThresholdsFor(mode vad.Mode) (Thresholds, error) {
	if err := mode.Validate(); err != nil {
		return Thresholds{}, err
	}
	return thresholds[mode], nil
}

// HangoverFrames returns the short and the long hangover of the mode for
// frames of the given duration.
func HangoverFrames(mode vad.Mode, frameDuration time.Duration) (short, long int, _ error) {
	if err := mode.Validate(); err != nil {
		return 0, 0, err
	}
	idx := framing.DurationIndex(frameDuration)
	if idx < 0 {
		return 0, 0, framing.ValidateDuration(frameDuration)
	}
	return shortHangover[mode][idx], longHangover[mode][idx], nil
}
