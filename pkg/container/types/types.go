// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package types holds the closed enumeration of element types a vector may
// carry, and the runtime Type descriptor used by the dispatch switches.
// Adding a type means extending T and the dispatch functions that
// instantiate generic kernels; call sites stay unchanged.
package types

import (
	"fmt"
)

// T is the element type tag.
type T uint8

const (
	T_any T = iota

	T_bool

	T_int8
	T_int16
	T_int32
	T_int64
	T_uint8
	T_uint16
	T_uint32
	T_uint64
	T_float32
	T_float64

	T_date
	T_datetime
	T_timestamp

	T_decimal64
	T_decimal128

	// variable length; stored as int32 offsets child + byte child
	T_varchar
)

// Type is the runtime descriptor: the tag plus parameters (decimal scale,
// timestamp unit encoded in Scale, declared width for char types).
type Type struct {
	Oid   T
	Width int32
	Scale int32
}

// Fixed width date/time types, days resp. microseconds.
type Date int32
type Datetime int64
type Timestamp int64

// TimeUnit values carried in Type.Scale for T_timestamp.
const (
	TimeUnitSeconds int32 = iota
	TimeUnitMillis
	TimeUnitMicros
	TimeUnitNanos
)

type Decimal64 int64

type Decimal128 struct {
	Lo uint64
	Hi int64
}

// FixedSizeT constrains the element types a fixed-width vector can hold.
type FixedSizeT interface {
	bool | int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64 |
		Date | Datetime | Timestamp | Decimal64 | Decimal128
}

// Ints covers the integral kernel instantiations.
type Ints interface {
	int8 | int16 | int32 | int64
}

type UInts interface {
	uint8 | uint16 | uint32 | uint64
}

type Floats interface {
	float32 | float64
}

// Number is the constraint for arithmetic kernels (sum, min, max, ...).
type Number interface {
	Ints | UInts | Floats
}

// OrderedT is everything the comparison kernels accept.
type OrderedT interface {
	Number | Date | Datetime | Timestamp | Decimal64
}

func New(oid T, width, scale int32) Type {
	return Type{Oid: oid, Width: width, Scale: scale}
}

func (t T) ToType() Type {
	return Type{Oid: t}
}

// TypeSize returns the fixed element width in bytes; varlen types report the
// width of the offsets entries addressing their byte child.
func (t Type) TypeSize() int {
	return t.Oid.FixedLength()
}

func (t T) FixedLength() int {
	switch t {
	case T_bool, T_int8, T_uint8:
		return 1
	case T_int16, T_uint16:
		return 2
	case T_int32, T_uint32, T_float32, T_date:
		return 4
	case T_int64, T_uint64, T_float64, T_datetime, T_timestamp, T_decimal64:
		return 8
	case T_decimal128:
		return 16
	case T_varchar:
		return 4 // offsets entry
	}
	panic(fmt.Sprintf("unknown type %d", t))
}

func (t Type) IsFixedLen() bool {
	return t.Oid != T_varchar
}

func (t Type) IsVarlen() bool {
	return t.Oid == T_varchar
}

func (t T) IsArithmetic() bool {
	switch t {
	case T_int8, T_int16, T_int32, T_int64,
		T_uint8, T_uint16, T_uint32, T_uint64,
		T_float32, T_float64:
		return true
	}
	return false
}

func (t T) IsBoolean() bool {
	return t == T_bool
}

// ConvertibleTo is the reduction output rule: identical types, both
// arithmetic, or bool paired with arithmetic. Anything else fails before a
// kernel is launched.
func (t T) ConvertibleTo(out T) bool {
	if t == out {
		return true
	}
	if t.IsArithmetic() && out.IsArithmetic() {
		return true
	}
	if t.IsBoolean() && out.IsArithmetic() {
		return true
	}
	if t.IsArithmetic() && out.IsBoolean() {
		return true
	}
	return false
}

func (t T) String() string {
	switch t {
	case T_any:
		return "ANY"
	case T_bool:
		return "BOOL"
	case T_int8:
		return "INT8"
	case T_int16:
		return "INT16"
	case T_int32:
		return "INT32"
	case T_int64:
		return "INT64"
	case T_uint8:
		return "UINT8"
	case T_uint16:
		return "UINT16"
	case T_uint32:
		return "UINT32"
	case T_uint64:
		return "UINT64"
	case T_float32:
		return "FLOAT"
	case T_float64:
		return "DOUBLE"
	case T_date:
		return "DATE"
	case T_datetime:
		return "DATETIME"
	case T_timestamp:
		return "TIMESTAMP"
	case T_decimal64:
		return "DECIMAL64"
	case T_decimal128:
		return "DECIMAL128"
	case T_varchar:
		return "VARCHAR"
	}
	return fmt.Sprintf("unexpected type tag %d", t)
}

func (t Type) String() string {
	if t.Oid == T_decimal64 || t.Oid == T_decimal128 {
		return fmt.Sprintf("%s(%d,%d)", t.Oid, t.Width, t.Scale)
	}
	return t.Oid.String()
}

func (t Type) Eq(b Type) bool {
	return t.Oid == b.Oid && t.Width == b.Width && t.Scale == b.Scale
}
