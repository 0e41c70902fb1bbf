// Package resampler converts PCM between layouts, most importantly into
// the S16LE mono input of the voice activity detector.
package resampler

import (
	"fmt"
	"io"
	"sync"

	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/types"
)

type Format struct {
	Channels   audio.Channel
	SampleRate audio.SampleRate
	PCMFormat  types.PCMFormat
}

func (f Format) String() string {
	return fmt.Sprintf("%s@%dHz*%d", f.PCMFormat, f.SampleRate, f.Channels)
}

func (f Format) validate() error {
	if f.PCMFormat.Size() == 0 {
		return fmt.Errorf("unsupported PCM format %v", f.PCMFormat)
	}
	if f.Channels == 0 {
		return fmt.Errorf("zero channels")
	}
	if f.SampleRate == 0 {
		return fmt.Errorf("zero sample rate")
	}
	return nil
}

// DetectorFormat is the layout the voice activity detector consumes.
func DetectorFormat(sampleRate audio.SampleRate) Format {
	return Format{
		Channels:   1,
		SampleRate: sampleRate,
		PCMFormat:  types.PCMFormatS16LE,
	}
}

type precalculated struct {
	inSampleSize    uint
	outSampleSize   uint
	inNumAvg        uint
	outNumRepeat    uint
	inDistanceStep  uint64
	outDistanceStep uint64
}

// Resampler is a nearest-neighbour upsampler and a box-averaging
// downsampler. Channels are either averaged into mono or mono is
// duplicated into all the channels.
type Resampler struct {
	inReader         io.Reader
	inFormat         Format
	outFormat        Format
	inDistance       uint64
	outDistance      uint64
	locker           sync.Mutex
	buffer           []byte
	pending          int
	accumulated      float64
	accumulatedCount uint
	precalculated
}

var _ io.Reader = (*Resampler)(nil)

func NewResampler(
	inFormat Format,
	inReader io.Reader,
	outFormat Format,
) (*Resampler, error) {
	r := &Resampler{
		inReader:  inReader,
		inFormat:  inFormat,
		outFormat: outFormat,
	}
	err := r.init()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a resampler from %s to %s: %w", inFormat, outFormat, err)
	}
	return r, nil
}

// NewToDetector converts the input to DetectorFormat.
func NewToDetector(
	inFormat Format,
	inReader io.Reader,
	sampleRate audio.SampleRate,
) (*Resampler, error) {
	return NewResampler(inFormat, inReader, DetectorFormat(sampleRate))
}

func (r *Resampler) init() error {
	if err := r.inFormat.validate(); err != nil {
		return fmt.Errorf("invalid input format: %w", err)
	}
	if err := r.outFormat.validate(); err != nil {
		return fmt.Errorf("invalid output format: %w", err)
	}
	r.inSampleSize = r.inFormat.PCMFormat.Size()
	r.outSampleSize = r.outFormat.PCMFormat.Size()

	r.inNumAvg = 1
	r.outNumRepeat = 1
	if r.inFormat.Channels == r.outFormat.Channels && r.inFormat.Channels > 1 && r.inFormat.SampleRate != r.outFormat.SampleRate {
		// samples are stepped one by one, which would mix the channels
		return fmt.Errorf("changing the sample rate of %d channels is not supported; downmix or split them first", r.inFormat.Channels)
	}
	if r.inFormat.Channels != r.outFormat.Channels {
		switch {
		case r.inFormat.Channels == 1:
			r.outNumRepeat = uint(r.outFormat.Channels)
		case r.outFormat.Channels == 1:
			r.inNumAvg = uint(r.inFormat.Channels)
		default:
			return fmt.Errorf("do not know how to convert %d channels to %d", r.inFormat.Channels, r.outFormat.Channels)
		}
	}

	// the positions are in units of 1/(inRate*outRate) s, so the steps are exact
	r.inDistanceStep = uint64(r.outFormat.SampleRate)
	r.outDistanceStep = uint64(r.inFormat.SampleRate)
	r.inDistance = 0
	r.outDistance = 0
	return nil
}

// Read may return zero bytes without an error when the input read was
// too short to produce an output sample.
func (r *Resampler) Read(p []byte) (int, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	inChunkSize := uint64(r.inSampleSize) * uint64(r.inNumAvg)
	maxOutChunks := uint64(len(p)) / uint64(r.outSampleSize) / uint64(r.outNumRepeat)
	if maxOutChunks == 0 {
		return 0, nil
	}

	chunksToRead := maxOutChunks * uint64(r.inFormat.SampleRate) / uint64(r.outFormat.SampleRate)
	if chunksToRead == 0 {
		chunksToRead = 1
	}
	bytesToRead := chunksToRead * inChunkSize
	if uint64(len(r.buffer)) < bytesToRead {
		buf := make([]byte, bytesToRead)
		copy(buf, r.buffer[:r.pending])
		r.buffer = buf
	}
	var (
		n   int
		err error
	)
	if uint64(r.pending) < bytesToRead {
		n, err = r.inReader.Read(r.buffer[r.pending:bytesToRead])
		if n < 0 {
			return 0, fmt.Errorf("received a negative count: %d", n)
		}
	}
	available := uint64(r.pending + n)
	chunksRead := available / inChunkSize

	dstChunkIdx := uint64(0)
	srcChunkIdx := uint64(0)
	for ; srcChunkIdx < chunksRead && dstChunkIdx < maxOutChunks; srcChunkIdx++ {
		idxSrc := srcChunkIdx * inChunkSize
		var sum float64
		for channelIdx := uint64(0); channelIdx < uint64(r.inNumAvg); channelIdx++ {
			sum += getFloat64(r.inFormat.PCMFormat, r.buffer[idxSrc+channelIdx*uint64(r.inSampleSize):])
		}
		r.accumulated += sum / float64(r.inNumAvg)
		r.accumulatedCount++

		val := r.accumulated / float64(r.accumulatedCount)
		for dstChunkIdx < maxOutChunks && r.outDistance <= r.inDistance {
			for repeatIdx := uint64(0); repeatIdx < uint64(r.outNumRepeat); repeatIdx++ {
				idxDst := (dstChunkIdx*uint64(r.outNumRepeat) + repeatIdx) * uint64(r.outSampleSize)
				setFloat64(r.outFormat.PCMFormat, p[idxDst:], val)
			}
			dstChunkIdx++
			r.outDistance += r.outDistanceStep
			r.accumulated, r.accumulatedCount = 0, 0
		}
		r.inDistance += r.inDistanceStep
	}

	consumed := srcChunkIdx * inChunkSize
	r.pending = copy(r.buffer, r.buffer[consumed:available])
	if err == io.EOF {
		switch {
		case uint64(r.pending) >= inChunkSize:
			// the output was too short for the rest
			err = nil
		case r.pending > 0:
			// a truncated trailing sample
			r.pending = 0
		}
	}
	return int(dstChunkIdx * uint64(r.outSampleSize) * uint64(r.outNumRepeat)), err
}
