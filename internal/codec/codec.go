// internal/codec/codec.go

// Package codec converts typed values to and from 16-bit register words.
//
// All functions are pure and safe for concurrent use. Multi-word values
// support four byte-order conventions, modeled as two independent toggles
// on the natural big-endian representation: word order (most-significant
// word first, or reversed) and intra-word byte order (big or little).
package codec

import (
	"math"
)

// Datatype identifies the wire representation of a register value.
type Datatype string

const (
	Bool    Datatype = "bool"
	Uint16  Datatype = "uint16"
	Int16   Datatype = "int16"
	Uint32  Datatype = "uint32"
	Int32   Datatype = "int32"
	Float32 Datatype = "float32"
	Uint64  Datatype = "uint64"
	Int64   Datatype = "int64"
	Float64 Datatype = "float64"
)

// ByteOrder selects how a multi-word value is laid out on the wire.
type ByteOrder string

const (
	BigEndian    ByteOrder = "big"         // word normal, byte big
	BigSwap      ByteOrder = "big_swap"    // word reversed, byte big
	LittleSwap   ByteOrder = "little_swap" // word normal, byte little
	LittleEndian ByteOrder = "little"      // word reversed, byte little
)

// WordCount returns the number of 16-bit registers a datatype occupies.
func WordCount(dt Datatype) (int, error) {
	switch dt {
	case Bool, Uint16, Int16:
		return 1, nil
	case Uint32, Int32, Float32:
		return 2, nil
	case Uint64, Int64, Float64:
		return 4, nil
	default:
		return 0, ErrUnsupportedDatatype
	}
}

// ValidDatatype reports whether dt is a member of the supported set.
func ValidDatatype(dt Datatype) bool {
	_, err := WordCount(dt)
	return err == nil
}

// ValidByteOrder reports whether bo is a member of the supported set.
func ValidByteOrder(bo ByteOrder) bool {
	switch bo {
	case BigEndian, BigSwap, LittleSwap, LittleEndian:
		return true
	default:
		return false
	}
}

func wordReversed(bo ByteOrder) bool {
	return bo == BigSwap || bo == LittleEndian
}

func byteLittle(bo ByteOrder) bool {
	return bo == LittleSwap || bo == LittleEndian
}

// assemble reconstructs the natural big-endian integer from words as
// transmitted under bo. Single words are order-independent on the wire.
func assemble(words []uint16, bo ByteOrder) uint64 {
	if len(words) == 1 {
		return uint64(words[0])
	}

	ws := words
	if wordReversed(bo) {
		ws = make([]uint16, len(words))
		for i, w := range words {
			ws[len(words)-1-i] = w
		}
	}

	var u uint64
	for _, w := range ws {
		if byteLittle(bo) {
			w = w>>8 | w<<8
		}
		u = u<<16 | uint64(w)
	}
	return u
}

// split is the inverse of assemble: it lays out the low n words of the
// natural big-endian integer as they would be transmitted under bo.
func split(u uint64, n int, bo ByteOrder) []uint16 {
	if n == 1 {
		return []uint16{uint16(u)}
	}

	words := make([]uint16, n)
	for i := n - 1; i >= 0; i-- {
		w := uint16(u)
		u >>= 16
		if byteLittle(bo) {
			w = w>>8 | w<<8
		}
		words[i] = w
	}

	if wordReversed(bo) {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			words[i], words[j] = words[j], words[i]
		}
	}
	return words
}

// Decode converts register words as read from the device into a typed value.
//
// Integer types decode to int64/uint64 when scale is 1 and to float64
// otherwise. Floats decode to float64, bit-for-bit from the assembled
// pattern. Bool decodes from a single word, ignoring scale and byte order.
func Decode(words []uint16, dt Datatype, bo ByteOrder, scale float64) (any, error) {
	n, err := WordCount(dt)
	if err != nil {
		return nil, err
	}
	if len(words) != n {
		return nil, &WordCountError{Datatype: dt, Want: n, Got: len(words)}
	}

	if dt == Bool {
		return words[0] != 0, nil
	}

	if !ValidByteOrder(bo) {
		return nil, ErrUnsupportedByteOrder
	}

	u := assemble(words, bo)

	switch dt {
	case Float32:
		return float64(math.Float32frombits(uint32(u))) * scale, nil
	case Float64:
		return math.Float64frombits(u) * scale, nil
	case Int16, Int32, Int64:
		var i int64
		switch dt {
		case Int16:
			i = int64(int16(u))
		case Int32:
			i = int64(int32(u))
		default:
			i = int64(u)
		}
		if scale != 1 {
			return float64(i) * scale, nil
		}
		return i, nil
	default: // Uint16, Uint32, Uint64
		if scale != 1 {
			return float64(u) * scale, nil
		}
		return u, nil
	}
}

// Encode converts a typed value into register words ready to write.
//
// The value is divided by scale first (except for bool), rounded to the
// nearest integer for integer datatypes, and rejected with a RangeError
// when it does not fit the target width and signedness.
func Encode(v any, dt Datatype, bo ByteOrder, scale float64) ([]uint16, error) {
	n, err := WordCount(dt)
	if err != nil {
		return nil, err
	}

	if dt == Bool {
		on, err := Truthy(v)
		if err != nil {
			return nil, err
		}
		if on {
			return []uint16{1}, nil
		}
		return []uint16{0}, nil
	}

	if !ValidByteOrder(bo) {
		return nil, ErrUnsupportedByteOrder
	}

	var u uint64
	switch dt {
	case Float32:
		f, ok := asFloat64(v)
		if !ok {
			return nil, &RangeError{Datatype: dt, Value: v}
		}
		u = uint64(math.Float32bits(float32(f / scale)))
	case Float64:
		f, ok := asFloat64(v)
		if !ok {
			return nil, &RangeError{Datatype: dt, Value: v}
		}
		u = math.Float64bits(f / scale)
	case Int16, Int32, Int64:
		i, err := scaledInt(v, dt, scale)
		if err != nil {
			return nil, err
		}
		u = uint64(i) & mask(n)
	default: // Uint16, Uint32, Uint64
		u, err = scaledUint(v, dt, scale)
		if err != nil {
			return nil, err
		}
	}

	return split(u, n, bo), nil
}

// Truthy interprets a value as a boolean for coil writes.
func Truthy(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	if f, ok := asFloat64(v); ok {
		return f != 0, nil
	}
	return false, &RangeError{Datatype: Bool, Value: v}
}

func mask(n int) uint64 {
	if n >= 4 {
		return math.MaxUint64
	}
	return 1<<(16*n) - 1
}

// scaledInt produces the scaled, rounded signed integer for dt, rejecting
// values outside the representable range.
func scaledInt(v any, dt Datatype, scale float64) (int64, error) {
	var min, max int64
	switch dt {
	case Int16:
		min, max = math.MinInt16, math.MaxInt16
	case Int32:
		min, max = math.MinInt32, math.MaxInt32
	default:
		min, max = math.MinInt64, math.MaxInt64
	}

	// Exact integer inputs bypass float math when unscaled, so 64-bit
	// extremes survive the trip.
	if scale == 1 {
		if i, ok := asInt64(v); ok {
			if i < min || i > max {
				return 0, &RangeError{Datatype: dt, Value: v}
			}
			return i, nil
		}
	}

	f, ok := asFloat64(v)
	if !ok {
		return 0, &RangeError{Datatype: dt, Value: v}
	}
	f = math.Round(f / scale)
	if f < float64(min) || f > float64(max) || math.IsNaN(f) {
		return 0, &RangeError{Datatype: dt, Value: v}
	}
	return int64(f), nil
}

// scaledUint is the unsigned counterpart of scaledInt.
func scaledUint(v any, dt Datatype, scale float64) (uint64, error) {
	var max uint64
	switch dt {
	case Uint16:
		max = math.MaxUint16
	case Uint32:
		max = math.MaxUint32
	default:
		max = math.MaxUint64
	}

	if scale == 1 {
		if u, ok := asUint64(v); ok {
			if u > max {
				return 0, &RangeError{Datatype: dt, Value: v}
			}
			return u, nil
		}
	}

	f, ok := asFloat64(v)
	if !ok {
		return 0, &RangeError{Datatype: dt, Value: v}
	}
	f = math.Round(f / scale)
	if f < 0 || f >= math.Ldexp(1, 64) || math.IsNaN(f) {
		return 0, &RangeError{Datatype: dt, Value: v}
	}
	if max != math.MaxUint64 && f > float64(max) {
		return 0, &RangeError{Datatype: dt, Value: v}
	}
	return uint64(f), nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		f := float64(n)
		if f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.Ldexp(1, 63) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func asUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	default:
		i, ok := asInt64(v)
		if !ok || i < 0 {
			return 0, false
		}
		return uint64(i), true
	}
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
