// Package planar converts between interleaved and planar multichannel
// PCM, so that every channel can be fed to its own detector.
package planar

import (
	"encoding/binary"
	"fmt"

	"github.com/xaionaro-go/voiceactivity/pkg/audio"
)

func validate(channels audio.Channel, sampleSize uint, output, input []byte) error {
	shortestMessageSize := int(channels) * int(sampleSize)
	if shortestMessageSize == 0 {
		return fmt.Errorf("invalid layout: %d channels of %d bytes", channels, sampleSize)
	}
	if len(input)%shortestMessageSize != 0 {
		return fmt.Errorf("expected a message length that is a multiple of %d, but received %d", shortestMessageSize, len(input))
	}
	if len(input) != len(output) {
		return fmt.Errorf("the lengths of input and output are not equal: %d != %d", len(input), len(output))
	}
	return nil
}

// transpose copies samples of a rows*cols matrix stored row by row into
// the column by column order.
func transpose(rows, cols, sampleSize int, output, input []byte) {
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			inIdx := (row*cols + col) * sampleSize
			outIdx := (col*rows + row) * sampleSize
			copy(output[outIdx:outIdx+sampleSize], input[inIdx:inIdx+sampleSize])
		}
	}
}

// Planarize reorders interleaved frames into one block per channel.
func Planarize(channels audio.Channel, sampleSize uint, output, input []byte) error {
	if err := validate(channels, sampleSize, output, input); err != nil {
		return err
	}
	samplesPerChan := len(input) / int(channels) / int(sampleSize)
	transpose(samplesPerChan, int(channels), int(sampleSize), output, input)
	return nil
}

// Unplanarize is the inverse of Planarize.
func Unplanarize(channels audio.Channel, sampleSize uint, output, input []byte) error {
	if err := validate(channels, sampleSize, output, input); err != nil {
		return err
	}
	samplesPerChan := len(input) / int(channels) / int(sampleSize)
	transpose(int(channels), samplesPerChan, int(sampleSize), output, input)
	return nil
}

// SplitS16LE deinterleaves S16LE PCM into the samples of every channel.
func SplitS16LE(channels audio.Channel, pcm []byte) ([][]int16, error) {
	planarized := make([]byte, len(pcm))
	if err := Planarize(channels, 2, planarized, pcm); err != nil {
		return nil, err
	}
	samplesPerChan := len(pcm) / 2 / int(channels)
	result := make([][]int16, channels)
	for ch := range result {
		block := planarized[ch*samplesPerChan*2:]
		samples := make([]int16, samplesPerChan)
		for idx := range samples {
			samples[idx] = int16(binary.LittleEndian.Uint16(block[2*idx:]))
		}
		result[ch] = samples
	}
	return result, nil
}
