package record

import (
	"encoding/binary"
	"math"

	"github.com/malzahar-project/dbstorage/dberr"
)

// Value is one attribute value, decoded from or destined for the external
// record wire form. Data holds the raw 4 bytes for Int/Real, or the raw
// (unprefixed) bytes for VarChar. Data is ignored when Null is true.
type Value struct {
	Null bool
	Data []byte
}

func NullValue() Value { return Value{Null: true} }

func IntValue(v int32) Value {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return Value{Data: b}
}

func RealValue(v float32) Value {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return Value{Data: b}
}

func VarCharValue(s string) Value {
	return Value{Data: []byte(s)}
}

func (v Value) AsInt() int32 {
	return int32(binary.LittleEndian.Uint32(v.Data))
}

func (v Value) AsReal() float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(v.Data))
}

func (v Value) AsString() string {
	return string(v.Data)
}

// EncodeRecord builds the external wire form of a record: a null-indicator
// bitmap (⌈n/8⌉ bytes, MSB first within each byte) followed by the
// concatenated non-null attribute values in schema order. Null attributes
// contribute no bytes beyond their bit.
func EncodeRecord(s Schema, values []Value) ([]byte, error) {
	if len(values) != len(s.Attrs) {
		return nil, dberr.New(dberr.BadArgument, "value count does not match schema arity")
	}
	bitmap := make([]byte, NullBitmapSize(len(s.Attrs)))
	for i, v := range values {
		if v.Null {
			bitmap[i/8] |= 1 << uint(7-i%8)
		}
	}
	payload := append([]byte{}, bitmap...)
	for i, a := range s.Attrs {
		v := values[i]
		if v.Null {
			continue
		}
		switch a.Type {
		case Int, Real:
			if len(v.Data) != 4 {
				return nil, dberr.New(dberr.BadArgument, "int/real value must be 4 bytes")
			}
			payload = append(payload, v.Data...)
		case VarChar:
			lenBuf := make([]byte, 4)
			binary.LittleEndian.PutUint32(lenBuf, uint32(len(v.Data)))
			payload = append(payload, lenBuf...)
			payload = append(payload, v.Data...)
		default:
			return nil, dberr.New(dberr.BadArgument, "unknown attribute type")
		}
	}
	return payload, nil
}

// DecodeRecord parses the external wire form back into per-attribute values.
func DecodeRecord(s Schema, payload []byte) ([]Value, error) {
	bmSize := NullBitmapSize(len(s.Attrs))
	if len(payload) < bmSize {
		return nil, dberr.New(dberr.Corrupt, "record payload shorter than null bitmap")
	}
	bitmap := payload[:bmSize]
	off := bmSize
	values := make([]Value, len(s.Attrs))
	for i, a := range s.Attrs {
		if bitmap[i/8]&(1<<uint(7-i%8)) != 0 {
			values[i] = Value{Null: true}
			continue
		}
		switch a.Type {
		case Int, Real:
			if off+4 > len(payload) {
				return nil, dberr.New(dberr.Corrupt, "record payload truncated reading fixed value")
			}
			values[i] = Value{Data: payload[off : off+4]}
			off += 4
		case VarChar:
			if off+4 > len(payload) {
				return nil, dberr.New(dberr.Corrupt, "record payload truncated reading varchar length")
			}
			n := int(binary.LittleEndian.Uint32(payload[off:]))
			off += 4
			if off+n > len(payload) {
				return nil, dberr.New(dberr.Corrupt, "record payload truncated reading varchar bytes")
			}
			values[i] = Value{Data: payload[off : off+n]}
			off += n
		default:
			return nil, dberr.New(dberr.Corrupt, "unknown attribute type in schema")
		}
	}
	return values, nil
}

// Op is a scan comparison operator.
type Op int

const (
	NoOp Op = iota
	Eq
	Lt
	Le
	Gt
	Ge
	Ne
)

// realTolerance is the absolute tolerance used to compare Real attributes,
// since IEEE-754 round-trip through the wire form is not bit-exact across
// arithmetic. |a-b| < 1e-3 counts as equal.
const realTolerance = 1e-3

// Compare orders two non-null values of the same attribute type. Returns
// <0, 0, >0 like bytes.Compare, except Real uses tolerance-based equality
// rather than bit equality. Shared by record scan predicates and the btree
// index, which key on the same attribute types.
func Compare(t AttrType, a, b Value) int {
	return compareValues(t, a, b)
}

func compareValues(t AttrType, a, b Value) int {
	switch t {
	case Int:
		x, y := a.AsInt(), b.AsInt()
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case Real:
		x, y := a.AsReal(), b.AsReal()
		d := x - y
		if d < 0 {
			d = -d
		}
		if float64(d) < realTolerance {
			return 0
		}
		if x < y {
			return -1
		}
		return 1
	case VarChar:
		xs, ys := a.Data, b.Data
		n := len(xs)
		if len(ys) < n {
			n = len(ys)
		}
		for i := 0; i < n; i++ {
			if xs[i] != ys[i] {
				if xs[i] < ys[i] {
					return -1
				}
				return 1
			}
		}
		switch {
		case len(xs) < len(ys):
			return -1
		case len(xs) > len(ys):
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// satisfies reports whether cmp (the result of comparing a record's
// attribute value against the scan value) satisfies op. A nil attribute
// value never satisfies any operator except NoOp.
func satisfies(op Op, cmp int, attrIsNull bool) bool {
	if op == NoOp {
		return true
	}
	if attrIsNull {
		return false
	}
	switch op {
	case Eq:
		return cmp == 0
	case Ne:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Le:
		return cmp <= 0
	case Gt:
		return cmp > 0
	case Ge:
		return cmp >= 0
	default:
		return false
	}
}
