package mri

import (
	"github.com/pghmri/mri/binio"
	"github.com/pghmri/mri/dtype"
	"github.com/pghmri/mri/errs"
)

// prepareToRead flushes any pending layout changes (and, as a side
// effect of flushLayout/readAt, opens the host file for reading)
// before the first byte is read.
func (ds *Dataset) prepareToRead(ch *Chunk) error {
	return ds.flushLayout()
}

// prepareToWrite gates writes: rejected outright in read-only mode,
// rejected for external chunks, and rejected in modify-data-only mode
// while layout or this chunk is still dirty.
func (ds *Dataset) prepareToWrite(ch *Chunk) error {
	if ds.mode == ModeRead {
		return errs.New(errs.KindState, "dataset is read-only")
	}
	if ch.order == orderExternal {
		return errs.New(errs.KindState, "write to external chunk %q", ch.name)
	}
	if ds.mode == ModeModifyData && (ds.recomputeLayout || ch.modified) {
		return errs.New(errs.KindState, "layout must be reconciled before writing in modify-data-only mode")
	}
	return ds.flushLayout()
}

func (ds *Dataset) lookupChunk(name string) (*Chunk, error) {
	ch, ok := ds.chunkByName[name]
	if !ok {
		return nil, errs.New(errs.KindValidation, "no such chunk %q", name)
	}
	return ch, nil
}

func boundsCheck(ch *Chunk, count, offsetElems, elemSize int64) error {
	if count < 0 || offsetElems < 0 {
		return errs.New(errs.KindValidation, "negative count or offset")
	}
	if (offsetElems+count)*elemSize > ch.size {
		return errs.New(errs.KindValidation, "out-of-bounds access on chunk %q", ch.name)
	}
	return nil
}

// reencodeSameType re-emits count elements of type t from src order to
// dst order without a float64 detour, so identity conversions (same
// on-disk type, different endianness) stay exact even for int64/float64
// values outside float64's 53-bit mantissa.
func reencodeSameType(t dtype.Type, src, dst binio.Order, in, out []byte, count int64) {
	size := int64(t.Size())
	switch t {
	case dtype.U8:
		copy(out[:count], in[:count])
	case dtype.I16:
		for i := int64(0); i < count; i++ {
			dst.PutInt16(out[i*size:], src.Int16(in[i*size:]))
		}
	case dtype.I32:
		for i := int64(0); i < count; i++ {
			dst.PutInt32(out[i*size:], src.Int32(in[i*size:]))
		}
	case dtype.I64:
		for i := int64(0); i < count; i++ {
			dst.PutInt64(out[i*size:], src.Int64(in[i*size:]))
		}
	case dtype.F32:
		for i := int64(0); i < count; i++ {
			dst.PutFloat32(out[i*size:], src.Float32(in[i*size:]))
		}
	case dtype.F64:
		for i := int64(0); i < count; i++ {
			dst.PutFloat64(out[i*size:], src.Float64(in[i*size:]))
		}
	}
}

// GetChunkRaw returns count raw bytes starting at byte offsetElems of
// name's on-disk data, bypassing any type conversion.
func (ds *Dataset) GetChunkRaw(name string, count, offsetElems int64) ([]byte, error) {
	ch, err := ds.lookupChunk(name)
	if err != nil {
		return nil, ds.policy.Resolve(err)
	}
	if err := boundsCheck(ch, count, offsetElems, 1); err != nil {
		return nil, ds.policy.Resolve(err)
	}
	if err := ds.prepareToRead(ch); err != nil {
		return nil, ds.policy.Resolve(err)
	}
	buf := ds.pool.Get(count)
	if err := ds.readAt(ch.file, ch.offset+offsetElems, buf); err != nil {
		return nil, ds.policy.Resolve(err)
	}
	return buf, nil
}

// SetChunkRaw writes data verbatim at byte offsetElems of name's
// on-disk data, bypassing any type conversion.
func (ds *Dataset) SetChunkRaw(name string, offsetElems int64, data []byte) error {
	ch, err := ds.lookupChunk(name)
	if err != nil {
		return ds.policy.Resolve(err)
	}
	count := int64(len(data))
	if err := boundsCheck(ch, count, offsetElems, 1); err != nil {
		return ds.policy.Resolve(err)
	}
	if err := ds.prepareToWrite(ch); err != nil {
		return ds.policy.Resolve(err)
	}
	return ds.policy.Resolve(ds.writeAt(ch.file, ch.offset+offsetElems, data))
}

// readTyped implements the read-side conversion matrix of spec
// section 4.7: direct copy when want matches the on-disk type (with a
// byte-order fixup if needed), otherwise an element-wise
// widen-then-narrow pass with saturation.
func (ds *Dataset) readTyped(name string, count, offsetElems int64, want dtype.Type) ([]byte, error) {
	ch, err := ds.lookupChunk(name)
	if err != nil {
		return nil, ds.policy.Resolve(err)
	}
	onDiskSize := int64(ch.datatype.Size())
	if err := boundsCheck(ch, count, offsetElems, onDiskSize); err != nil {
		return nil, ds.policy.Resolve(err)
	}
	if err := ds.prepareToRead(ch); err != nil {
		return nil, ds.policy.Resolve(err)
	}

	onDiskBuf := ds.pool.Get(count * onDiskSize)
	if err := ds.readAt(ch.file, ch.offset+offsetElems*onDiskSize, onDiskBuf); err != nil {
		return nil, ds.policy.Resolve(err)
	}

	outBuf := ds.pool.Get(count * int64(want.Size()))
	chOrder := binio.Order{Little: ch.littleEndian}

	if want == ch.datatype {
		reencodeSameType(want, chOrder, binio.Machine, onDiskBuf, outBuf, count)
		return outBuf, nil
	}

	onDiskCoder := dtype.CoderFor(ch.datatype)
	wantCoder := dtype.CoderFor(want)
	clampedAny := false
	for i := int64(0); i < count; i++ {
		v := onDiskCoder.Widen(onDiskBuf[i*onDiskSize:], chOrder)
		if wantCoder.Narrow(v, outBuf[i*int64(want.Size()):], binio.Machine) {
			clampedAny = true
		}
	}
	if clampedAny {
		ds.policy.Warn("get_chunk %q: values clamped to range of %s", name, want)
	}
	return outBuf, nil
}

// writeTyped implements the write-side conversion matrix: convert
// from srcType (in Go-native byte order) to the chunk's on-disk type,
// then emit.
func (ds *Dataset) writeTyped(name string, offsetElems int64, srcType dtype.Type, data []byte) error {
	ch, err := ds.lookupChunk(name)
	if err != nil {
		return ds.policy.Resolve(err)
	}
	count := int64(len(data)) / int64(srcType.Size())
	onDiskSize := int64(ch.datatype.Size())
	if err := boundsCheck(ch, count, offsetElems, onDiskSize); err != nil {
		return ds.policy.Resolve(err)
	}
	if err := ds.prepareToWrite(ch); err != nil {
		return ds.policy.Resolve(err)
	}

	chOrder := binio.Order{Little: ch.littleEndian}
	outBuf := make([]byte, count*onDiskSize)

	if srcType == ch.datatype {
		reencodeSameType(srcType, binio.Machine, chOrder, data, outBuf, count)
		return ds.policy.Resolve(ds.writeAt(ch.file, ch.offset+offsetElems*onDiskSize, outBuf))
	}

	srcCoder := dtype.CoderFor(srcType)
	dstCoder := dtype.CoderFor(ch.datatype)
	clampedAny := false
	for i := int64(0); i < count; i++ {
		v := srcCoder.Widen(data[i*int64(srcType.Size()):], binio.Machine)
		if dstCoder.Narrow(v, outBuf[i*onDiskSize:], chOrder) {
			clampedAny = true
		}
	}
	if clampedAny {
		ds.policy.Warn("set_chunk %q: values clamped to range of %s", name, ch.datatype)
	}
	return ds.policy.Resolve(ds.writeAt(ch.file, ch.offset+offsetElems*onDiskSize, outBuf))
}

// GetChunkU8 reads count uint8-converted elements starting at element
// offsetElems of name.
func (ds *Dataset) GetChunkU8(name string, count, offsetElems int64) ([]uint8, error) {
	raw, err := ds.readTyped(name, count, offsetElems, dtype.U8)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (ds *Dataset) GetChunkI16(name string, count, offsetElems int64) ([]int16, error) {
	raw, err := ds.readTyped(name, count, offsetElems, dtype.I16)
	if err != nil {
		return nil, err
	}
	out := make([]int16, count)
	binio.ReadI16Array(binio.Machine, raw, out)
	return out, nil
}

func (ds *Dataset) GetChunkI32(name string, count, offsetElems int64) ([]int32, error) {
	raw, err := ds.readTyped(name, count, offsetElems, dtype.I32)
	if err != nil {
		return nil, err
	}
	out := make([]int32, count)
	binio.ReadI32Array(binio.Machine, raw, out)
	return out, nil
}

func (ds *Dataset) GetChunkI64(name string, count, offsetElems int64) ([]int64, error) {
	raw, err := ds.readTyped(name, count, offsetElems, dtype.I64)
	if err != nil {
		return nil, err
	}
	out := make([]int64, count)
	binio.ReadI64Array(binio.Machine, raw, out)
	return out, nil
}

func (ds *Dataset) GetChunkF32(name string, count, offsetElems int64) ([]float32, error) {
	raw, err := ds.readTyped(name, count, offsetElems, dtype.F32)
	if err != nil {
		return nil, err
	}
	out := make([]float32, count)
	binio.ReadF32Array(binio.Machine, raw, out)
	return out, nil
}

func (ds *Dataset) GetChunkF64(name string, count, offsetElems int64) ([]float64, error) {
	raw, err := ds.readTyped(name, count, offsetElems, dtype.F64)
	if err != nil {
		return nil, err
	}
	out := make([]float64, count)
	binio.ReadF64Array(binio.Machine, raw, out)
	return out, nil
}

func (ds *Dataset) SetChunkU8(name string, offsetElems int64, values []uint8) error {
	return ds.writeTyped(name, offsetElems, dtype.U8, values)
}

func (ds *Dataset) SetChunkI16(name string, offsetElems int64, values []int16) error {
	buf := make([]byte, len(values)*2)
	binio.WriteI16Array(binio.Machine, values, buf)
	return ds.writeTyped(name, offsetElems, dtype.I16, buf)
}

func (ds *Dataset) SetChunkI32(name string, offsetElems int64, values []int32) error {
	buf := make([]byte, len(values)*4)
	binio.WriteI32Array(binio.Machine, values, buf)
	return ds.writeTyped(name, offsetElems, dtype.I32, buf)
}

func (ds *Dataset) SetChunkI64(name string, offsetElems int64, values []int64) error {
	buf := make([]byte, len(values)*8)
	binio.WriteI64Array(binio.Machine, values, buf)
	return ds.writeTyped(name, offsetElems, dtype.I64, buf)
}

func (ds *Dataset) SetChunkF32(name string, offsetElems int64, values []float32) error {
	buf := make([]byte, len(values)*4)
	binio.WriteF32Array(binio.Machine, values, buf)
	return ds.writeTyped(name, offsetElems, dtype.F32, buf)
}

func (ds *Dataset) SetChunkF64(name string, offsetElems int64, values []float64) error {
	buf := make([]byte, len(values)*8)
	binio.WriteF64Array(binio.Machine, values, buf)
	return ds.writeTyped(name, offsetElems, dtype.F64, buf)
}
