package resampler

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/types"
)

func s16le(values ...int16) []byte {
	out := make([]byte, 2*len(values))
	for idx, v := range values {
		binary.LittleEndian.PutUint16(out[2*idx:], uint16(v))
	}
	return out
}

func TestResampler(t *testing.T) {
	t.Run("Identity_S16LE_Mono_44100", func(t *testing.T) {
		inFmt := Format{
			Channels:   1,
			SampleRate: 44100,
			PCMFormat:  types.PCMFormatS16LE,
		}
		data := make([]byte, 200)
		for i := 0; i < 100; i++ {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(i*100))
		}
		r, err := NewResampler(inFmt, bytes.NewReader(data), inFmt)
		require.NoError(t, err)

		out := make([]byte, 200)
		n, err := r.Read(out)
		assert.NoError(t, err)
		assert.Equal(t, 200, n)
		assert.Equal(t, data, out)
	})

	t.Run("Conversion_U8_to_Float32LE_Mono", func(t *testing.T) {
		inFmt := Format{
			Channels:   1,
			SampleRate: 44100,
			PCMFormat:  types.PCMFormatU8,
		}
		outFmt := Format{
			Channels:   1,
			SampleRate: 44100,
			PCMFormat:  types.PCMFormatFloat32LE,
		}
		r, err := NewResampler(inFmt, bytes.NewReader([]byte{0, 128, 255}), outFmt)
		require.NoError(t, err)

		out := make([]byte, 3*4)
		n, err := r.Read(out)
		assert.NoError(t, err)
		assert.Equal(t, 12, n)

		v0 := math.Float32frombits(binary.LittleEndian.Uint32(out[0:4]))
		v1 := math.Float32frombits(binary.LittleEndian.Uint32(out[4:8]))
		v2 := math.Float32frombits(binary.LittleEndian.Uint32(out[8:12]))

		assert.InDelta(t, -1.0, v0, 0.01)
		assert.InDelta(t, 0.0, v1, 0.01)
		assert.InDelta(t, 1.0, v2, 0.01)
	})

	t.Run("Downsampling_averages", func(t *testing.T) {
		inFmt := Format{
			Channels:   1,
			SampleRate: 44100,
			PCMFormat:  types.PCMFormatU8,
		}
		outFmt := Format{
			Channels:   1,
			SampleRate: 22050,
			PCMFormat:  types.PCMFormatU8,
		}
		data := make([]byte, 100)
		expected := make([]byte, 50)
		for i := range data {
			data[i] = byte(10 * ((i + 1) / 2))
		}
		for i := range expected {
			expected[i] = byte(10 * i)
		}
		r, err := NewResampler(inFmt, bytes.NewReader(data), outFmt)
		require.NoError(t, err)

		out := make([]byte, 50)
		n, err := r.Read(out)
		assert.NoError(t, err)
		assert.Equal(t, 50, n)
		assert.Equal(t, expected, out)
	})

	t.Run("Channels_Mono_to_Stereo", func(t *testing.T) {
		inFmt := Format{
			Channels:   1,
			SampleRate: 44100,
			PCMFormat:  types.PCMFormatU8,
		}
		outFmt := Format{
			Channels:   2,
			SampleRate: 44100,
			PCMFormat:  types.PCMFormatU8,
		}
		r, err := NewResampler(inFmt, bytes.NewReader([]byte{10, 20, 30}), outFmt)
		require.NoError(t, err)

		out := make([]byte, 6)
		n, err := r.Read(out)
		assert.NoError(t, err)
		assert.Equal(t, 6, n)
		assert.Equal(t, []byte{10, 10, 20, 20, 30, 30}, out)
	})

	t.Run("Channels_Stereo_to_Mono", func(t *testing.T) {
		inFmt := Format{
			Channels:   2,
			SampleRate: 44100,
			PCMFormat:  types.PCMFormatU8,
		}
		outFmt := Format{
			Channels:   1,
			SampleRate: 44100,
			PCMFormat:  types.PCMFormatU8,
		}
		r, err := NewResampler(inFmt, bytes.NewReader([]byte{100, 200, 50, 150}), outFmt)
		require.NoError(t, err)

		out := make([]byte, 2)
		n, err := r.Read(out)
		assert.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, byte(150), out[0])
		assert.Equal(t, byte(100), out[1])
	})

	t.Run("Unsupported_channels", func(t *testing.T) {
		_, err := NewResampler(
			Format{Channels: 2, SampleRate: 8000, PCMFormat: types.PCMFormatU8},
			bytes.NewReader(nil),
			Format{Channels: 3, SampleRate: 8000, PCMFormat: types.PCMFormatU8},
		)
		require.Error(t, err)

		_, err = NewResampler(
			Format{Channels: 1, SampleRate: 8000},
			bytes.NewReader(nil),
			DetectorFormat(8000),
		)
		require.Error(t, err)

		_, err = NewResampler(
			Format{Channels: 2, SampleRate: 48000, PCMFormat: types.PCMFormatS16LE},
			bytes.NewReader(nil),
			Format{Channels: 2, SampleRate: 16000, PCMFormat: types.PCMFormatS16LE},
		)
		require.Error(t, err)
	})
}

func TestToDetectorSaturates(t *testing.T) {
	in := make([]byte, 3*4)
	binary.LittleEndian.PutUint32(in[0:], math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(in[4:], math.Float32bits(-1.5))
	binary.LittleEndian.PutUint32(in[8:], math.Float32bits(float32(math.NaN())))

	r, err := NewToDetector(Format{Channels: 1, SampleRate: 16000, PCMFormat: types.PCMFormatFloat32LE}, bytes.NewReader(in), 16000)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, s16le(math.MaxInt16, math.MinInt16, 0), out)
}

func TestToDetectorShortReads(t *testing.T) {
	var stereo []byte
	var expected []int16
	for i := int16(0); i < 100; i++ {
		stereo = append(stereo, s16le(i*100, i*100+20)...)
		expected = append(expected, i*100+10)
	}

	r, err := NewToDetector(
		Format{Channels: 2, SampleRate: 16000, PCMFormat: types.PCMFormatS16LE},
		iotest.OneByteReader(bytes.NewReader(stereo)),
		16000,
	)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, s16le(expected...), out)
}

func TestToDetectorRates(t *testing.T) {
	r, err := NewToDetector(
		Format{Channels: 1, SampleRate: 48000, PCMFormat: types.PCMFormatS16LE},
		bytes.NewReader(make([]byte, 2*4800)),
		16000,
	)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Len(t, out, 2*1600)

	r, err = NewToDetector(
		Format{Channels: 1, SampleRate: 8000, PCMFormat: types.PCMFormatS16LE},
		bytes.NewReader(make([]byte, 2*100)),
		16000,
	)
	require.NoError(t, err)
	out, err = io.ReadAll(r)
	require.NoError(t, err)
	require.InDelta(t, 2*200, len(out), 2)
}

func TestToDetectorNoDrift(t *testing.T) {
	for _, tc := range []struct {
		inRate  types.SampleRate
		outRate types.SampleRate
	}{
		{44100, 16000},
		{22050, 8000},
		{48000, 32000},
	} {
		seconds := 10
		r, err := NewToDetector(
			Format{Channels: 1, SampleRate: tc.inRate, PCMFormat: types.PCMFormatS16LE},
			bytes.NewReader(make([]byte, 2*int(tc.inRate)*seconds)),
			tc.outRate,
		)
		require.NoError(t, err)
		out, err := io.ReadAll(r)
		require.NoError(t, err)
		require.Len(t, out, 2*int(tc.outRate)*seconds, "%d -> %d", tc.inRate, tc.outRate)
	}
}
