package fsys

import (
	"encoding/binary"
	"math/bits"
)

// swapBytes reverses the byte order of v.
func swapBytes[T uint8 | uint16 | uint32 | uint64](v T) T {
	switch x := any(v).(type) {
	case uint16:
		return T(bits.ReverseBytes16(x))
	case uint32:
		return T(bits.ReverseBytes32(x))
	case uint64:
		return T(bits.ReverseBytes64(x))
	}
	return v
}

func maybeSwap[T uint8 | uint16 | uint32 | uint64](v T, invert bool) T {
	if invert {
		return swapBytes(v)
	}
	return v
}

// widthOf maps a bit count to a byte width.
func widthOf(nbits int) (int, error) {
	switch nbits {
	case 8, 16, 32, 64:
		return nbits / 8, nil
	}
	return 0, ErrUnsupportedBits
}

// decode reads a host-order unsigned value of len(buf) bytes.
func decode(buf []byte, invert bool) uint64 {
	switch len(buf) {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(maybeSwap(binary.NativeEndian.Uint16(buf), invert))
	case 4:
		return uint64(maybeSwap(binary.NativeEndian.Uint32(buf), invert))
	case 8:
		return maybeSwap(binary.NativeEndian.Uint64(buf), invert)
	}
	return 0
}

// encode writes the low len(buf) bytes of v in host order.
func encode(buf []byte, v uint64, invert bool) {
	switch len(buf) {
	case 1:
		buf[0] = uint8(v)
	case 2:
		binary.NativeEndian.PutUint16(buf, maybeSwap(uint16(v), invert))
	case 4:
		binary.NativeEndian.PutUint32(buf, maybeSwap(uint32(v), invert))
	case 8:
		binary.NativeEndian.PutUint64(buf, maybeSwap(v, invert))
	}
}

// signExtend interprets the low width bytes of v as a two's complement value.
func signExtend(v uint64, width int) int64 {
	switch width {
	case 1:
		return int64(int8(v))
	case 2:
		return int64(int16(v))
	case 4:
		return int64(int32(v))
	}
	return int64(v)
}
