// Package dtype describes the element types of storage-unit samples.
//
// The engine moves all sample values through float64 buffers; Kind records
// what the storage side actually holds so that nodata sentinels, byte sizes
// and Go types can be derived without re-reading file metadata.
package dtype

import (
	"math"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies one element type.
type Kind uint8

const (
	Invalid Kind = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	// Datetime is a timestamp stored as Unix seconds.
	Datetime
)

var kindNames = map[Kind]string{
	Int8:     "int8",
	Int16:    "int16",
	Int32:    "int32",
	Int64:    "int64",
	Uint8:    "uint8",
	Uint16:   "uint16",
	Uint32:   "uint32",
	Uint64:   "uint64",
	Float32:  "float32",
	Float64:  "float64",
	Datetime: "datetime64",
}

// typestrs maps NumPy-style typestrings (byte order stripped) to kinds.
// The format follows the array protocol typestr convention used by zarr
// and NetCDF tooling: one type-class character plus a byte count.
var typestrs = map[string]Kind{
	"i1": Int8,
	"i2": Int16,
	"i4": Int32,
	"i8": Int64,
	"u1": Uint8,
	"u2": Uint16,
	"u4": Uint32,
	"u8": Uint64,
	"f4": Float32,
	"f8": Float64,
	"M8": Datetime,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// Parse interprets either a plain type name ("float32", "uint16") or a
// NumPy typestring ("<f4", ">i2", "|u1").
func Parse(s string) (Kind, error) {
	for k, name := range kindNames {
		if s == name {
			return k, nil
		}
	}
	t := s
	if len(t) > 0 && (t[0] == '<' || t[0] == '>' || t[0] == '|') {
		t = t[1:]
	}
	// Datetime typestrings carry a unit suffix, e.g. "M8[ns]".
	if i := strings.IndexByte(t, '['); i >= 0 {
		t = t[:i]
	}
	if k, ok := typestrs[t]; ok {
		return k, nil
	}
	return Invalid, errors.Errorf("unsupported dtype %q", s)
}

// Size returns the element size in bytes.
func (k Kind) Size() int {
	switch k {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64, Datetime:
		return 8
	}
	return 0
}

// GoType returns the Go type that holds one element of this kind.
func (k Kind) GoType() reflect.Type {
	switch k {
	case Int8:
		return reflect.TypeOf(int8(0))
	case Int16:
		return reflect.TypeOf(int16(0))
	case Int32:
		return reflect.TypeOf(int32(0))
	case Int64, Datetime:
		return reflect.TypeOf(int64(0))
	case Uint8:
		return reflect.TypeOf(uint8(0))
	case Uint16:
		return reflect.TypeOf(uint16(0))
	case Uint32:
		return reflect.TypeOf(uint32(0))
	case Uint64:
		return reflect.TypeOf(uint64(0))
	case Float32:
		return reflect.TypeOf(float32(0))
	case Float64:
		return reflect.TypeOf(float64(0))
	}
	return nil
}

// IsFloat reports whether the kind is a floating-point type.
func (k Kind) IsFloat() bool {
	return k == Float32 || k == Float64
}

// DefaultNodata returns the sentinel used to mark missing samples when a
// variable declares no fill value: NaN for floats, the minimum value for
// signed integers, the maximum value for unsigned integers.
func (k Kind) DefaultNodata() float64 {
	switch k {
	case Float32, Float64:
		return math.NaN()
	case Int8:
		return math.MinInt8
	case Int16:
		return math.MinInt16
	case Int32:
		return math.MinInt32
	case Int64, Datetime:
		return math.MinInt64
	case Uint8:
		return math.MaxUint8
	case Uint16:
		return math.MaxUint16
	case Uint32:
		return math.MaxUint32
	case Uint64:
		return math.MaxUint64
	}
	return math.NaN()
}
