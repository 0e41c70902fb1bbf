package vad

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode is the aggressiveness preset. A higher mode flags speech more
// readily: lower thresholds and longer hangover.
type Mode int

const (
	ModeQuality = Mode(iota)
	ModeLowBitrate
	ModeAggressive
	ModeVeryAggressive
	EndOfMode
)

func (m Mode) String() string {
	switch m {
	case ModeQuality:
		return "quality"
	case ModeLowBitrate:
		return "low-bitrate"
	case ModeAggressive:
		return "aggressive"
	case ModeVeryAggressive:
		return "very-aggressive"
	default:
		return fmt.Sprintf("unknown_mode_%d", int(m))
	}
}

func (m Mode) Validate() error {
	if m < ModeQuality || m >= EndOfMode {
		return ErrInvalidAggressivenessLevel{Mode: m}
	}
	return nil
}

// ParseMode accepts either the numeric level or the preset name.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		m := Mode(n)
		if err := m.Validate(); err != nil {
			return m, err
		}
		return m, nil
	}
	for m := ModeQuality; m < EndOfMode; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return ModeQuality, fmt.Errorf("unknown mode '%s'", s)
}

// Set implements pflag.Value.
func (m *Mode) Set(s string) error {
	v, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Type implements pflag.Value.
func (m *Mode) Type() string {
	return "mode"
}

func (m *Mode) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: mode must be a scalar", value.Line)
	}
	// out of range levels are left for Validate
	if n, err := strconv.Atoi(strings.TrimSpace(value.Value)); err == nil {
		*m = Mode(n)
		return nil
	}
	v, err := ParseMode(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*m = v
	return nil
}

func (m Mode) MarshalYAML() (any, error) {
	return m.String(), nil
}
