package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/xaionaro-go/voiceactivity/pkg/audio"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/resampler"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/types"
)

const wavFormatPCM = 1

// WAV decodes a whole PCM WAV file.
func WAV(r io.ReadSeeker) (*Source, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("unable to read the PCM buffer: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid WAV format: %#+v", buf.Format)
	}

	var pcmFormat types.PCMFormat
	switch buf.SourceBitDepth {
	case 8:
		pcmFormat = types.PCMFormatU8
	case 16:
		pcmFormat = types.PCMFormatS16LE
	case 24:
		pcmFormat = types.PCMFormatS24LE
	case 32:
		pcmFormat = types.PCMFormatS32LE
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", buf.SourceBitDepth)
	}

	sampleSize := int(pcmFormat.Size())
	pcm := make([]byte, len(buf.Data)*sampleSize)
	for idx, v := range buf.Data {
		p := pcm[idx*sampleSize:]
		switch pcmFormat {
		case types.PCMFormatU8:
			p[0] = byte(v)
		case types.PCMFormatS16LE:
			binary.LittleEndian.PutUint16(p, uint16(int16(v)))
		case types.PCMFormatS24LE:
			p[0], p[1], p[2] = byte(v), byte(v>>8), byte(v>>16)
		case types.PCMFormatS32LE:
			binary.LittleEndian.PutUint32(p, uint32(int32(v)))
		}
	}

	return &Source{
		Format: resampler.Format{
			Channels:   audio.Channel(buf.Format.NumChannels),
			SampleRate: audio.SampleRate(buf.Format.SampleRate),
			PCMFormat:  pcmFormat,
		},
		Reader: bytes.NewReader(pcm),
	}, nil
}

// WriteWAV writes mono 16-bit samples as a WAV file.
func WriteWAV(
	w io.WriteSeeker,
	sampleRate audio.SampleRate,
	samples []int16,
) error {
	encoder := wav.NewEncoder(w, int(sampleRate), 16, 1, wavFormatPCM)
	data := make([]int, len(samples))
	for idx, v := range samples {
		data[idx] = int(v)
	}
	err := encoder.Write(&goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  int(sampleRate),
		},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err != nil {
		return fmt.Errorf("unable to write the samples: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("unable to finalize the WAV file: %w", err)
	}
	return nil
}
