package classifier

import (
	"fmt"
)

type State int

const (
	StateNonSpeech = State(iota)
	StateSpeechHangover
)

func (s State) String() string {
	switch s {
	case StateNonSpeech:
		return "non_speech"
	case StateSpeechHangover:
		return "speech_hangover"
	default:
		return fmt.Sprintf("unknown_state_%d", int(s))
	}
}

// Hangover keeps a detection alive for a few frames after the votes stop.
type Hangover struct {
	State     State
	Countdown int

	// Run is the amount of consecutive votes so far.
	Run int
}

// Step advances the machine by a frame and returns whether the frame is
// speech. A vote never shortens a pending countdown.
func (h *Hangover) Step(vote bool, short, long int) bool {
	if vote {
		h.Run++
		length := short
		if h.Run > MaxSpeechFrames {
			length = long
		}
		h.Countdown = max(h.Countdown, length)
		h.State = StateSpeechHangover
		return true
	}

	h.Run = 0
	if h.State == StateSpeechHangover && h.Countdown > 0 {
		h.Countdown--
		return true
	}
	h.State = StateNonSpeech
	h.Countdown = 0
	return false
}

func (h *Hangover) Reset() {
	*h = Hangover{}
}
