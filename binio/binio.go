// Package binio implements the endian-aware binary I/O primitives used
// throughout the dataset engine: scalar and slice read/write against
// in-memory buffers, plus stream-oriented helpers for host files.
//
// Every operation takes an explicit Order rather than consulting a
// package-level global, so callers (in particular the chunk model,
// where endianness is a per-chunk attribute) never share mutable
// state through this package. DefaultEndianness exists only as a
// compatibility shim for callers that want the historical sticky
// process-wide toggle.
package binio

import (
	"encoding/binary"
	"io"
	"math"
	"math/bits"
)

// Order picks little- or big-endian encoding for one operation.
type Order struct {
	Little bool
}

// LE and BE are the two fixed orders; Machine matches the host CPU.
var (
	LE      = Order{Little: true}
	BE      = Order{Little: false}
	Machine = Order{Little: nativeLittleEndian}
)

// nativeLittleEndian is true for every platform the Go toolchain
// currently targets as a practical default (amd64, arm64, riscv64,
// ...). Big-endian hosts (s390x, mips) are rare enough in this
// engine's deployment that callers needing exact detection should
// still prefer explicit Order values over Machine.
const nativeLittleEndian = true

// Endianness is the explicit replacement for the C library's pair of
// global "mri_input_little_endian" / "mri_output_little_endian"
// booleans: an object threaded by callers that want that idiom,
// instead of ambient process state baked into this package.
type Endianness struct {
	InputLittle  bool
	OutputLittle bool
}

// DefaultEndianness re-exposes the sticky process-wide behavior the
// original library relied on, for callers that do not want to thread
// an Endianness value themselves.
var DefaultEndianness = Endianness{InputLittle: nativeLittleEndian, OutputLittle: nativeLittleEndian}

func (o Order) order() binary.ByteOrder {
	if o.Little {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Uint16/Uint32/Uint64 read an unsigned scalar from the front of b.
func (o Order) Uint16(b []byte) uint16 { return o.order().Uint16(b) }
func (o Order) Uint32(b []byte) uint32 { return o.order().Uint32(b) }
func (o Order) Uint64(b []byte) uint64 { return o.order().Uint64(b) }

func (o Order) PutUint16(b []byte, v uint16) { o.order().PutUint16(b, v) }
func (o Order) PutUint32(b []byte, v uint32) { o.order().PutUint32(b, v) }
func (o Order) PutUint64(b []byte, v uint64) { o.order().PutUint64(b, v) }

func (o Order) Int16(b []byte) int16 { return int16(o.Uint16(b)) }
func (o Order) Int32(b []byte) int32 { return int32(o.Uint32(b)) }
func (o Order) Int64(b []byte) int64 { return int64(o.Uint64(b)) }

func (o Order) PutInt16(b []byte, v int16) { o.PutUint16(b, uint16(v)) }
func (o Order) PutInt32(b []byte, v int32) { o.PutUint32(b, uint32(v)) }
func (o Order) PutInt64(b []byte, v int64) { o.PutUint64(b, uint64(v)) }

// Float32/Float64 byte-swap via math.Float*bits, the idiomatic Go
// substitute for the C library's union-of-bytes trick.
func (o Order) Float32(b []byte) float32 { return math.Float32frombits(o.Uint32(b)) }
func (o Order) Float64(b []byte) float64 { return math.Float64frombits(o.Uint64(b)) }

func (o Order) PutFloat32(b []byte, v float32) { o.PutUint32(b, math.Float32bits(v)) }
func (o Order) PutFloat64(b []byte, v float64) { o.PutUint64(b, math.Float64bits(v)) }

// SwapU16/U32/U64 return v with its byte order reversed.
func SwapU16(v uint16) uint16 { return bits.ReverseBytes16(v) }
func SwapU32(v uint32) uint32 { return bits.ReverseBytes32(v) }
func SwapU64(v uint64) uint64 { return bits.ReverseBytes64(v) }

// The array forms below operate on whole slices of 16-, 32- and 64-bit
// elements, decoding or encoding one element at a time through the
// given Order. There is no byte-slice variant and no bulk-copy fast
// path: even when the order matches the host, each element is re-encoded.

// ReadU16Array decodes n little/big-endian uint16 values from b into out.
func ReadU16Array(o Order, b []byte, out []uint16) {
	for i := range out {
		out[i] = o.Uint16(b[i*2:])
	}
}

// WriteU16Array encodes values into b using the given order.
func WriteU16Array(o Order, values []uint16, b []byte) {
	for i, v := range values {
		o.PutUint16(b[i*2:], v)
	}
}

func ReadU32Array(o Order, b []byte, out []uint32) {
	for i := range out {
		out[i] = o.Uint32(b[i*4:])
	}
}

func WriteU32Array(o Order, values []uint32, b []byte) {
	for i, v := range values {
		o.PutUint32(b[i*4:], v)
	}
}

func ReadU64Array(o Order, b []byte, out []uint64) {
	for i := range out {
		out[i] = o.Uint64(b[i*8:])
	}
}

func WriteU64Array(o Order, values []uint64, b []byte) {
	for i, v := range values {
		o.PutUint64(b[i*8:], v)
	}
}

func ReadI16Array(o Order, b []byte, out []int16) {
	for i := range out {
		out[i] = o.Int16(b[i*2:])
	}
}

func WriteI16Array(o Order, values []int16, b []byte) {
	for i, v := range values {
		o.PutInt16(b[i*2:], v)
	}
}

func ReadI32Array(o Order, b []byte, out []int32) {
	for i := range out {
		out[i] = o.Int32(b[i*4:])
	}
}

func WriteI32Array(o Order, values []int32, b []byte) {
	for i, v := range values {
		o.PutInt32(b[i*4:], v)
	}
}

func ReadI64Array(o Order, b []byte, out []int64) {
	for i := range out {
		out[i] = o.Int64(b[i*8:])
	}
}

func WriteI64Array(o Order, values []int64, b []byte) {
	for i, v := range values {
		o.PutInt64(b[i*8:], v)
	}
}

func ReadF32Array(o Order, b []byte, out []float32) {
	for i := range out {
		out[i] = o.Float32(b[i*4:])
	}
}

func WriteF32Array(o Order, values []float32, b []byte) {
	for i, v := range values {
		o.PutFloat32(b[i*4:], v)
	}
}

func ReadF64Array(o Order, b []byte, out []float64) {
	for i := range out {
		out[i] = o.Float64(b[i*8:])
	}
}

func WriteF64Array(o Order, values []float64, b []byte) {
	for i, v := range values {
		o.PutFloat64(b[i*8:], v)
	}
}

// ReadFull reads exactly len(buf) bytes from r, returning an error
// (including io.ErrUnexpectedEOF) on any short read. Stream-oriented
// counterpart to the slice readers above.
func ReadFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

// WriteFull writes all of buf to w, returning an error on any short write.
func WriteFull(w io.Writer, buf []byte) error {
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}
