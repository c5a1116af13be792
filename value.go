// Primitive value types stored under a (record, key).
//
// Every Value carries a type tag and is orderable by type-then-natural-value;
// equality is type-sensitive (an Integer 1 never equals a Long 1). Range
// queries and the RangeLockService's blocking rules both depend on Compare
// producing a single total order within a type.
package vellum

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ValueType tags the concrete kind carried by a Value.
type ValueType byte

const (
	TypeBoolean ValueType = iota + 1
	TypeInteger
	TypeLong
	TypeFloat
	TypeDouble
	TypeString
	TypeLink
)

func (t ValueType) String() string {
	switch t {
	case TypeBoolean:
		return "BOOLEAN"
	case TypeInteger:
		return "INTEGER"
	case TypeLong:
		return "LONG"
	case TypeFloat:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeString:
		return "STRING"
	case TypeLink:
		return "LINK"
	default:
		return "UNKNOWN"
	}
}

// RecordID addresses a logical document. It is a 64-bit identifier,
// encoded big-endian wherever it appears on disk.
type RecordID uint64

// Value is a typed scalar. The zero Value is not valid; always construct
// via one of the New* functions.
type Value struct {
	typ ValueType
	i   int64   // Integer, Long, Link, and Boolean (0/1)
	f   float64 // Float, Double
	s   string  // String
}

func NewBoolean(v bool) Value {
	i := int64(0)
	if v {
		i = 1
	}
	return Value{typ: TypeBoolean, i: i}
}

func NewInteger(v int32) Value { return Value{typ: TypeInteger, i: int64(v)} }
func NewLong(v int64) Value    { return Value{typ: TypeLong, i: v} }
func NewFloat(v float32) Value { return Value{typ: TypeFloat, f: float64(v)} }
func NewDouble(v float64) Value { return Value{typ: TypeDouble, f: v} }
func NewString(v string) Value { return Value{typ: TypeString, s: v} }
func NewLink(v RecordID) Value { return Value{typ: TypeLink, i: int64(v)} }

func (v Value) Type() ValueType { return v.typ }
func (v Value) Bool() bool      { return v.i != 0 }
func (v Value) Integer() int32  { return int32(v.i) }
func (v Value) Long() int64     { return v.i }
func (v Value) Float() float32  { return float32(v.f) }
func (v Value) Double() float64 { return v.f }
func (v Value) Str() string     { return v.s }
func (v Value) Link() RecordID  { return RecordID(v.i) }

// Equal reports type-sensitive equality: values of different types are
// never equal, even when their natural representations coincide.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeString:
		return v.s == o.s
	case TypeFloat, TypeDouble:
		return v.f == o.f
	default:
		return v.i == o.i
	}
}

// Compare orders values type-then-natural-value. Values of differing
// types are ordered by their ValueType tag, which gives range queries and
// the RangeLockService a single total order to reason about without ever
// comparing across incompatible types inside one query.
func (v Value) Compare(o Value) int {
	if v.typ != o.typ {
		if v.typ < o.typ {
			return -1
		}
		return 1
	}
	switch v.typ {
	case TypeString:
		switch {
		case v.s < o.s:
			return -1
		case v.s > o.s:
			return 1
		default:
			return 0
		}
	case TypeFloat, TypeDouble:
		switch {
		case v.f < o.f:
			return -1
		case v.f > o.f:
			return 1
		default:
			return 0
		}
	default: // Boolean, Integer, Long, Link
		switch {
		case v.i < o.i:
			return -1
		case v.i > o.i:
			return 1
		default:
			return 0
		}
	}
}

// Bytes returns the deterministic binary encoding used inside Write and
// on-disk chunk revisions: a one-byte type tag followed by a type-specific
// fixed or length-prefixed payload.
func (v Value) Bytes() []byte {
	switch v.typ {
	case TypeBoolean:
		return []byte{byte(v.typ), byte(v.i)}
	case TypeInteger:
		buf := make([]byte, 5)
		buf[0] = byte(v.typ)
		binary.BigEndian.PutUint32(buf[1:], uint32(int32(v.i)))
		return buf
	case TypeLong, TypeLink:
		buf := make([]byte, 9)
		buf[0] = byte(v.typ)
		binary.BigEndian.PutUint64(buf[1:], uint64(v.i))
		return buf
	case TypeFloat:
		buf := make([]byte, 5)
		buf[0] = byte(v.typ)
		binary.BigEndian.PutUint32(buf[1:], math.Float32bits(float32(v.f)))
		return buf
	case TypeDouble:
		buf := make([]byte, 9)
		buf[0] = byte(v.typ)
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(v.f))
		return buf
	case TypeString:
		sb := []byte(v.s)
		buf := make([]byte, 5+len(sb))
		buf[0] = byte(v.typ)
		binary.BigEndian.PutUint32(buf[1:5], uint32(len(sb)))
		copy(buf[5:], sb)
		return buf
	default:
		return []byte{byte(v.typ)}
	}
}

// DecodeValue parses a Value from its Bytes() encoding, returning the
// number of bytes consumed.
func DecodeValue(b []byte) (Value, int, error) {
	if len(b) < 1 {
		return Value{}, 0, fmt.Errorf("%w: empty value", ErrCorruptWrite)
	}
	typ := ValueType(b[0])
	switch typ {
	case TypeBoolean:
		if len(b) < 2 {
			return Value{}, 0, fmt.Errorf("%w: truncated boolean", ErrCorruptWrite)
		}
		return Value{typ: typ, i: int64(b[1])}, 2, nil
	case TypeInteger:
		if len(b) < 5 {
			return Value{}, 0, fmt.Errorf("%w: truncated integer", ErrCorruptWrite)
		}
		return Value{typ: typ, i: int64(int32(binary.BigEndian.Uint32(b[1:5])))}, 5, nil
	case TypeLong, TypeLink:
		if len(b) < 9 {
			return Value{}, 0, fmt.Errorf("%w: truncated long/link", ErrCorruptWrite)
		}
		return Value{typ: typ, i: int64(binary.BigEndian.Uint64(b[1:9]))}, 9, nil
	case TypeFloat:
		if len(b) < 5 {
			return Value{}, 0, fmt.Errorf("%w: truncated float", ErrCorruptWrite)
		}
		return Value{typ: typ, f: float64(math.Float32frombits(binary.BigEndian.Uint32(b[1:5])))}, 5, nil
	case TypeDouble:
		if len(b) < 9 {
			return Value{}, 0, fmt.Errorf("%w: truncated double", ErrCorruptWrite)
		}
		return Value{typ: typ, f: math.Float64frombits(binary.BigEndian.Uint64(b[1:9]))}, 9, nil
	case TypeString:
		if len(b) < 5 {
			return Value{}, 0, fmt.Errorf("%w: truncated string header", ErrCorruptWrite)
		}
		n := int(binary.BigEndian.Uint32(b[1:5]))
		if len(b) < 5+n {
			return Value{}, 0, fmt.Errorf("%w: truncated string body", ErrCorruptWrite)
		}
		return Value{typ: typ, s: string(b[5 : 5+n])}, 5 + n, nil
	default:
		return Value{}, 0, fmt.Errorf("%w: unknown value type %d", ErrCorruptWrite, typ)
	}
}
