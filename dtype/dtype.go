// Package dtype implements the engine's element-type registry: the
// six on-disk datatypes (u8, i16, i32, i64, f32, f64) and the
// widen-to-float64-then-narrow conversion routine the repositioner and
// typed read/write API both use.
//
// Each type dispatches through a small Coder interface, one
// struct-with-methods implementation per on-disk encoding. The six
// structs carry numeric Widen/Narrow rather than an interface{}-typed
// Encode, collapsing what would otherwise be a repeated 6x6
// conversion matrix into a single widen-to-f64-then-narrow routine.
package dtype

import (
	"fmt"
	"math"

	"github.com/pghmri/mri/binio"
)

// Type is the on-disk element type of a chunk.
type Type int

const (
	U8 Type = iota
	I16
	I32
	I64
	F32
	F64
)

func (t Type) String() string {
	switch t {
	case U8:
		return "uint8"
	case I16:
		return "int16"
	case I32:
		return "int32"
	case I64:
		return "int64"
	case F32:
		return "float32"
	case F64:
		return "float64"
	default:
		return "invalid"
	}
}

// Parse maps the header token (e.g. "int16") to a Type.
func Parse(token string) (Type, error) {
	switch token {
	case "uint8":
		return U8, nil
	case "int16":
		return I16, nil
	case "int32":
		return I32, nil
	case "int64":
		return I64, nil
	case "float32":
		return F32, nil
	case "float64":
		return F64, nil
	default:
		return 0, fmt.Errorf("unknown datatype token %q", token)
	}
}

// Size returns the on-disk element size in bytes.
func (t Type) Size() int {
	switch t {
	case U8:
		return 1
	case I16:
		return 2
	case I32:
		return 4
	case I64:
		return 8
	case F32:
		return 4
	case F64:
		return 8
	default:
		return 0
	}
}

// Coder widens a raw on-disk element to float64 and narrows a float64
// back to the on-disk representation, saturating at the type's range.
type Coder interface {
	Type() Type
	Size() int
	Widen(raw []byte, o binio.Order) float64
	// Narrow writes clamp(v) into out (which must be Size() bytes) and
	// reports whether the value was out of range and got clamped.
	Narrow(v float64, out []byte, o binio.Order) (clamped bool)
}

func CoderFor(t Type) Coder {
	switch t {
	case U8:
		return u8Coder{}
	case I16:
		return i16Coder{}
	case I32:
		return i32Coder{}
	case I64:
		return i64Coder{}
	case F32:
		return f32Coder{}
	case F64:
		return f64Coder{}
	default:
		panic(fmt.Sprintf("dtype: invalid type %d", t))
	}
}

func clampInt(v, min, max float64) (float64, bool) {
	if math.IsNaN(v) {
		return 0, true
	}
	r := math.Round(v)
	if r < min {
		return min, true
	}
	if r > max {
		return max, true
	}
	return r, false
}

type u8Coder struct{}

func (u8Coder) Type() Type { return U8 }
func (u8Coder) Size() int  { return 1 }
func (u8Coder) Widen(raw []byte, _ binio.Order) float64 {
	return float64(raw[0])
}
func (u8Coder) Narrow(v float64, out []byte, _ binio.Order) bool {
	c, clamped := clampInt(v, 0, 255)
	out[0] = byte(c)
	return clamped
}

type i16Coder struct{}

func (i16Coder) Type() Type { return I16 }
func (i16Coder) Size() int  { return 2 }
func (i16Coder) Widen(raw []byte, o binio.Order) float64 {
	return float64(o.Int16(raw))
}
func (i16Coder) Narrow(v float64, out []byte, o binio.Order) bool {
	c, clamped := clampInt(v, -32768, 32767)
	o.PutInt16(out, int16(c))
	return clamped
}

type i32Coder struct{}

func (i32Coder) Type() Type { return I32 }
func (i32Coder) Size() int  { return 4 }
func (i32Coder) Widen(raw []byte, o binio.Order) float64 {
	return float64(o.Int32(raw))
}
func (i32Coder) Narrow(v float64, out []byte, o binio.Order) bool {
	c, clamped := clampInt(v, -2147483648, 2147483647)
	o.PutInt32(out, int32(c))
	return clamped
}

type i64Coder struct{}

func (i64Coder) Type() Type { return I64 }
func (i64Coder) Size() int  { return 8 }
func (i64Coder) Widen(raw []byte, o binio.Order) float64 {
	return float64(o.Int64(raw))
}
func (i64Coder) Narrow(v float64, out []byte, o binio.Order) bool {
	// float64 cannot exactly represent the full int64 range; clamp in
	// float space against the nearest representable bounds.
	c, clamped := clampInt(v, -9223372036854775808, 9223372036854774784)
	o.PutInt64(out, int64(c))
	return clamped
}

type f32Coder struct{}

func (f32Coder) Type() Type { return F32 }
func (f32Coder) Size() int  { return 4 }
func (f32Coder) Widen(raw []byte, o binio.Order) float64 {
	return float64(o.Float32(raw))
}
func (f32Coder) Narrow(v float64, out []byte, o binio.Order) bool {
	var clamped bool
	nv := v
	if !math.IsNaN(v) && !math.IsInf(v, 0) {
		if v > math.MaxFloat32 {
			nv = math.MaxFloat32
			clamped = true
		} else if v < -math.MaxFloat32 {
			nv = -math.MaxFloat32
			clamped = true
		}
	}
	// Non-finite values (NaN, +-Inf) pass through unclamped.
	o.PutFloat32(out, float32(nv))
	return clamped
}

type f64Coder struct{}

func (f64Coder) Type() Type { return F64 }
func (f64Coder) Size() int  { return 8 }
func (f64Coder) Widen(raw []byte, o binio.Order) float64 {
	return o.Float64(raw)
}
func (f64Coder) Narrow(v float64, out []byte, o binio.Order) bool {
	o.PutFloat64(out, v)
	return false
}
