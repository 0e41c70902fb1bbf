package resampler

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/xaionaro-go/voiceactivity/pkg/audio/types"
)

// getFloat64 decodes a sample into [-1, 1).
func getFloat64(f types.PCMFormat, p []byte) float64 {
	switch f {
	case types.PCMFormatU8:
		return (float64(p[0]) - 128) / 128
	case types.PCMFormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(p))) / (1 << 15)
	case types.PCMFormatS16BE:
		return float64(int16(binary.BigEndian.Uint16(p))) / (1 << 15)
	case types.PCMFormatS24LE:
		return float64(signExtend24(uint32(p[0])|uint32(p[1])<<8|uint32(p[2])<<16)) / (1 << 23)
	case types.PCMFormatS24BE:
		return float64(signExtend24(uint32(p[2])|uint32(p[1])<<8|uint32(p[0])<<16)) / (1 << 23)
	case types.PCMFormatS32LE:
		return float64(int32(binary.LittleEndian.Uint32(p))) / (1 << 31)
	case types.PCMFormatS32BE:
		return float64(int32(binary.BigEndian.Uint32(p))) / (1 << 31)
	case types.PCMFormatS64LE:
		return float64(int64(binary.LittleEndian.Uint64(p))) / (1 << 63)
	case types.PCMFormatS64BE:
		return float64(int64(binary.BigEndian.Uint64(p))) / (1 << 63)
	case types.PCMFormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case types.PCMFormatFloat32BE:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(p)))
	case types.PCMFormatFloat64LE:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	case types.PCMFormatFloat64BE:
		return math.Float64frombits(binary.BigEndian.Uint64(p))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

func signExtend24(v uint32) int32 {
	if v&0x800000 != 0 {
		v |= 0xff000000
	}
	return int32(v)
}

// quantize scales v to a signed integer of the given width with
// saturation; NaN becomes zero.
func quantize(v float64, bits uint) int64 {
	if math.IsNaN(v) {
		return 0
	}
	maxValue := float64(int64(1)<<(bits-1)) - 1
	scaled := math.Round(v * float64(int64(1)<<(bits-1)))
	switch {
	case scaled > maxValue:
		return int64(maxValue)
	case scaled < -maxValue-1:
		return int64(-maxValue - 1)
	}
	return int64(scaled)
}

func setFloat64(f types.PCMFormat, p []byte, v float64) {
	switch f {
	case types.PCMFormatU8:
		p[0] = byte(quantize(v, 8) + 128)
	case types.PCMFormatS16LE:
		binary.LittleEndian.PutUint16(p, uint16(quantize(v, 16)))
	case types.PCMFormatS16BE:
		binary.BigEndian.PutUint16(p, uint16(quantize(v, 16)))
	case types.PCMFormatS24LE:
		val := quantize(v, 24)
		p[0], p[1], p[2] = byte(val), byte(val>>8), byte(val>>16)
	case types.PCMFormatS24BE:
		val := quantize(v, 24)
		p[0], p[1], p[2] = byte(val>>16), byte(val>>8), byte(val)
	case types.PCMFormatS32LE:
		binary.LittleEndian.PutUint32(p, uint32(quantize(v, 32)))
	case types.PCMFormatS32BE:
		binary.BigEndian.PutUint32(p, uint32(quantize(v, 32)))
	case types.PCMFormatS64LE:
		binary.LittleEndian.PutUint64(p, uint64(quantize64(v)))
	case types.PCMFormatS64BE:
		binary.BigEndian.PutUint64(p, uint64(quantize64(v)))
	case types.PCMFormatFloat32LE:
		binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v)))
	case types.PCMFormatFloat32BE:
		binary.BigEndian.PutUint32(p, math.Float32bits(float32(v)))
	case types.PCMFormatFloat64LE:
		binary.LittleEndian.PutUint64(p, math.Float64bits(v))
	case types.PCMFormatFloat64BE:
		binary.BigEndian.PutUint64(p, math.Float64bits(v))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

// quantize64 is quantize for 64 bits, where float64 cannot represent the
// maximal value exactly.
func quantize64(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= 1:
		return math.MaxInt64
	case v <= -1:
		return math.MinInt64
	}
	return int64(v * (1 << 63))
}
