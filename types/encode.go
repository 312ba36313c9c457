package types

import (
	"encoding/binary"
	"math"
)

func decodeU16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func decodeU32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func decodeU64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }
func decodeF32(b []byte) float32 { return math.Float32frombits(decodeU32(b)) }
func decodeF64(b []byte) float64 { return math.Float64frombits(decodeU64(b)) }

func encodeU16(dst []byte, v uint16) { binary.LittleEndian.PutUint16(dst, v) }
func encodeU32(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func encodeU64(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }

// EncodeU32 / DecodeU32 etc. are the exported forms used by pager, btree,
// and the VM to read and write fixed-width register values into page
// and register storage.

func EncodeU32(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func DecodeU32(b []byte) uint32      { return binary.LittleEndian.Uint32(b) }

func EncodeU64(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }
func DecodeU64(b []byte) uint64      { return binary.LittleEndian.Uint64(b) }

func EncodeI64(dst []byte, v int64) { binary.LittleEndian.PutUint64(dst, uint64(v)) }
func DecodeI64(b []byte) int64      { return int64(binary.LittleEndian.Uint64(b)) }

func EncodeF64(dst []byte, v float64) { binary.LittleEndian.PutUint64(dst, math.Float64bits(v)) }
func DecodeF64(b []byte) float64      { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }

// EncodeChar writes s into a fixed-width N-byte field, null padded or
// truncated to fit. No length prefix is stored — width is implicit in the
// column type.
func EncodeChar(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// DecodeChar trims the null padding from a fixed-width CHAR-N field.
func DecodeChar(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}

// AsInt64 reinterprets a raw numeric encoding as a signed 64-bit value,
// used by the ARITHMETIC opcode and by semantic literal coercion to operate
// generically across the integer tags.
func AsInt64(t DataType, raw []byte) int64 {
	switch t {
	case TypeU8:
		return int64(raw[0])
	case TypeI8:
		return int64(int8(raw[0]))
	case TypeU16:
		return int64(decodeU16(raw))
	case TypeI16:
		return int64(int16(decodeU16(raw)))
	case TypeU32:
		return int64(decodeU32(raw))
	case TypeI32:
		return int64(int32(decodeU32(raw)))
	case TypeU64, TypeI64:
		return int64(decodeU64(raw))
	default:
		panic("types: AsInt64 on non-integer type " + t.String())
	}
}

// AsFloat64 reinterprets a raw numeric encoding (integer or float) as a
// float64, used by ARITHMETIC on floating point operands and by semantic
// literal coercion into a float column.
func AsFloat64(t DataType, raw []byte) float64 {
	if t == TypeF32 {
		return float64(decodeF32(raw))
	}
	if t == TypeF64 {
		return decodeF64(raw)
	}
	return float64(AsInt64(t, raw))
}

// PutInt64 writes v into dst using the fixed width of t, saturating to the
// type's range if v overflows it.
func PutInt64(t DataType, dst []byte, v int64) {
	switch t {
	case TypeU8:
		dst[0] = byte(clampU(v, 0xFF))
	case TypeI8:
		dst[0] = byte(int8(clampI(v, -128, 127)))
	case TypeU16:
		encodeU16(dst, uint16(clampU(v, 0xFFFF)))
	case TypeI16:
		encodeU16(dst, uint16(int16(clampI(v, -32768, 32767))))
	case TypeU32:
		encodeU32(dst, uint32(clampU(v, 0xFFFFFFFF)))
	case TypeI32:
		encodeU32(dst, uint32(int32(clampI(v, -(1<<31), 1<<31-1))))
	case TypeU64:
		encodeU64(dst, uint64(v))
	case TypeI64:
		encodeU64(dst, uint64(v))
	default:
		panic("types: PutInt64 on non-integer type " + t.String())
	}
}

// PutFloat64 writes v into dst using the fixed width of t.
func PutFloat64(t DataType, dst []byte, v float64) {
	switch t {
	case TypeF32:
		encodeU32(dst, math.Float32bits(float32(v)))
	case TypeF64:
		encodeU64(dst, math.Float64bits(v))
	default:
		panic("types: PutFloat64 on non-float type " + t.String())
	}
}

func clampU(v int64, max uint64) uint64 {
	if v < 0 {
		return 0
	}
	if uint64(v) > max {
		return max
	}
	return uint64(v)
}

func clampI(v, min, max int64) int64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
