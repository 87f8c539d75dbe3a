package iq

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"strings"
)

// Format identifies the wire layout of interleaved I/Q samples.
type Format int

const (
	// CU8 is unsigned 8-bit centered on 128. The default.
	CU8 Format = iota
	// CS8 is signed 8-bit.
	CS8
	// CS16 is signed little-endian 16-bit.
	CS16
	// CF32 is little-endian float32.
	CF32
)

func (f Format) String() string {
	switch f {
	case CU8:
		return "CU8"
	case CS8:
		return "CS8"
	case CS16:
		return "CS16"
	case CF32:
		return "CF32"
	default:
		return "unknown"
	}
}

// DetectFormat picks a sample format from the destination file name.
// Unknown extensions and "-" (stdout) fall back to CU8.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cu8", ".data", ".complex16u":
		return CU8
	case ".cs8", ".complex16s":
		return CS8
	case ".cs16":
		return CS16
	case ".cf32", ".cfile", ".complex":
		return CF32
	default:
		return CU8
	}
}

// BytesPerSample returns the byte count of one interleaved I/Q pair.
func (f Format) BytesPerSample() int {
	switch f {
	case CS16:
		return 4
	case CF32:
		return 8
	default:
		return 2
	}
}

// fullScale returns the default full-scale output value for the format.
func (f Format) fullScale() float64 {
	switch f {
	case CS16:
		return 32767
	case CF32:
		return 1
	default:
		return 127
	}
}

// appendSample encodes one I/Q pair at the given full scale. Values
// outside [-1, 1] clip at the format limits.
func (f Format) appendSample(dst []byte, i, q, fullScale float64) []byte {
	switch f {
	case CU8:
		return append(dst,
			uint8(clamp(i*fullScale, -128, 127)+128),
			uint8(clamp(q*fullScale, -128, 127)+128))
	case CS8:
		return append(dst,
			uint8(int8(clamp(i*fullScale, -128, 127))),
			uint8(int8(clamp(q*fullScale, -128, 127))))
	case CS16:
		dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(clamp(i*fullScale, -32768, 32767))))
		return binary.LittleEndian.AppendUint16(dst, uint16(int16(clamp(q*fullScale, -32768, 32767))))
	case CF32:
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(i*fullScale)))
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(q*fullScale)))
	default:
		return dst
	}
}

// Samples decodes interleaved I/Q pairs back into complex values
// normalized by the full scale. A zero fullScale uses the format default.
// Trailing bytes short of a full pair are ignored.
func (f Format) Samples(data []byte, fullScale float64) []complex128 {
	if fullScale == 0 {
		fullScale = f.fullScale()
	}
	bps := f.BytesPerSample()
	out := make([]complex128, len(data)/bps)
	for k := range out {
		base := k * bps
		var i, q float64
		switch f {
		case CU8:
			i = float64(data[base]) - 128
			q = float64(data[base+1]) - 128
		case CS8:
			i = float64(int8(data[base]))
			q = float64(int8(data[base+1]))
		case CS16:
			i = float64(int16(binary.LittleEndian.Uint16(data[base:])))
			q = float64(int16(binary.LittleEndian.Uint16(data[base+2:])))
		case CF32:
			i = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[base:])))
			q = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[base+4:])))
		}
		out[k] = complex(i/fullScale, q/fullScale)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
