// Package config describes a detection setup loadable from YAML.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/vad"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
	"gopkg.in/yaml.v3"
)

type Engine string

const (
	EngineNative  = Engine("native")
	EngineLibFVAD = Engine("libfvad")
)

type Config struct {
	SampleRate    audio.SampleRate `yaml:"sample_rate"`
	Mode          vad.Mode         `yaml:"mode"`
	FrameDuration time.Duration    `yaml:"frame_duration"`
	Engine        Engine           `yaml:"engine"`
	Segments      Segments         `yaml:"segments"`
}

// Segments configures how frame decisions are merged into segments.
type Segments struct {
	// MinSpeech is the shortest speech segment kept; shorter ones become
	// silence.
	MinSpeech time.Duration `yaml:"min_speech"`

	// MinSilence is the shortest gap kept between two speech segments.
	MinSilence time.Duration `yaml:"min_silence"`

	// Padding extends every speech segment on both sides.
	Padding time.Duration `yaml:"padding"`
}

func Default() Config {
	return Config{
		SampleRate:    16000,
		Mode:          vad.ModeQuality,
		FrameDuration: 30 * time.Millisecond,
		Engine:        EngineNative,
		Segments: Segments{
			MinSpeech:  90 * time.Millisecond,
			MinSilence: 300 * time.Millisecond,
		},
	}
}

func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return Config{}, fmt.Errorf("unable to load '%s': %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config on top of Default and validates it.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("unable to decode YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate returns all the problems found at once.
func (cfg Config) Validate() error {
	var mErr *multierror.Error
	if err := framing.ValidateSampleRate(cfg.SampleRate); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("sample_rate: %w", err))
	}
	if err := cfg.Mode.Validate(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("mode: %w", err))
	}
	if err := framing.ValidateDuration(cfg.FrameDuration); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("frame_duration: %w", err))
	}
	switch cfg.Engine {
	case EngineNative, EngineLibFVAD:
	default:
		mErr = multierror.Append(mErr, fmt.Errorf("engine: unknown engine '%s' (expected '%s' or '%s')", cfg.Engine, EngineNative, EngineLibFVAD))
	}
	if cfg.Segments.MinSpeech < 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("segments.min_speech: must not be negative, but is %v", cfg.Segments.MinSpeech))
	}
	if cfg.Segments.MinSilence < 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("segments.min_silence: must not be negative, but is %v", cfg.Segments.MinSilence))
	}
	if cfg.Segments.Padding < 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("segments.padding: must not be negative, but is %v", cfg.Segments.Padding))
	}
	return mErr.ErrorOrNil()
}

func (cfg Config) String() string {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Sprintf("<unable to marshal: %v>", err)
	}
	return string(b)
}
