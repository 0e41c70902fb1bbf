// Package decode opens audio files as PCM streams and converts them into
// the detector input.
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/resampler"
	"github.com/xaionaro-go/voiceactivity/pkg/vad/framing"
)

type Container int

const (
	ContainerUndefined = Container(iota)
	ContainerWAV
	ContainerOgg
	ContainerRaw
	EndOfContainer
)

func (c Container) String() string {
	switch c {
	case ContainerUndefined:
		return "undefined"
	case ContainerWAV:
		return "wav"
	case ContainerOgg:
		return "ogg"
	case ContainerRaw:
		return "raw"
	default:
		return fmt.Sprintf("unknown_container_%d", int(c))
	}
}

func ParseContainer(s string) (Container, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c := ContainerUndefined + 1; c < EndOfContainer; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return ContainerUndefined, fmt.Errorf("unknown container '%s'", s)
}

// Set implements pflag.Value.
func (c *Container) Set(s string) error {
	v, err := ParseContainer(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Type implements pflag.Value.
func (c *Container) Type() string {
	return "container"
}

// ContainerOf guesses the container by the file extension.
func ContainerOf(path string) Container {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return ContainerWAV
	case ".ogg", ".oga":
		return ContainerOgg
	default:
		return ContainerRaw
	}
}

// Source is a PCM stream of a known layout.
type Source struct {
	Format resampler.Format
	io.Reader
}

// Raw is a headerless stream; its layout has to be known in advance.
func Raw(r io.Reader, format resampler.Format) *Source {
	return &Source{
		Format: format,
		Reader: r,
	}
}

// File is an opened audio file.
type File struct {
	*Source
	Container Container
	file      *os.File
}

func (f *File) Close() error {
	return f.file.Close()
}

// Open opens a file; rawFormat is used only if the container is raw.
// ContainerUndefined means to guess by the extension.
func Open(
	path string,
	container Container,
	rawFormat resampler.Format,
) (*File, error) {
	if container == ContainerUndefined {
		container = ContainerOf(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}

	var src *Source
	switch container {
	case ContainerWAV:
		src, err = WAV(f)
	case ContainerOgg:
		src, err = Ogg(f)
	case ContainerRaw:
		src = Raw(f, rawFormat)
	default:
		err = fmt.Errorf("unsupported container %v", container)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("unable to decode '%s' as %s: %w", path, container, err)
	}
	return &File{
		Source:    src,
		Container: container,
		file:      f,
	}, nil
}

// ToDetector converts the stream into S16LE mono at the given rate.
func (s *Source) ToDetector(sampleRate audio.SampleRate) (io.Reader, error) {
	if s.Format == resampler.DetectorFormat(sampleRate) {
		return s.Reader, nil
	}
	return resampler.NewToDetector(s.Format, s.Reader, sampleRate)
}

// ReadAllSamples reads the whole stream as detector samples.
func (s *Source) ReadAllSamples(sampleRate audio.SampleRate) ([]int16, error) {
	r, err := s.ToDetector(sampleRate)
	if err != nil {
		return nil, err
	}
	pcm, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read the stream: %w", err)
	}
	pcm = pcm[:len(pcm)&^1]
	return framing.SamplesFromS16LE(pcm)
}

type float32Reader interface {
	Read([]float32) (int, error)
}

// float32LEReader serializes float samples into Float32LE bytes.
type float32LEReader struct {
	backend float32Reader
	buffer  []float32
}

var _ io.Reader = (*float32LEReader)(nil)

func newFloat32LEReader(backend float32Reader) *float32LEReader {
	return &float32LEReader{
		backend: backend,
	}
}

func (r *float32LEReader) Read(p []byte) (int, error) {
	count := len(p) / 4
	if count == 0 {
		return 0, fmt.Errorf("the provided output buffer is too short: %d < 4", len(p))
	}
	if cap(r.buffer) < count {
		r.buffer = make([]float32, count)
	}
	n, err := r.backend.Read(r.buffer[:count])
	for idx, v := range r.buffer[:n] {
		binary.LittleEndian.PutUint32(p[4*idx:], math.Float32bits(v))
	}
	return 4 * n, err
}
