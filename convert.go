package mri

import (
	"github.com/pghmri/mri/binio"
	"github.com/pghmri/mri/dtype"
	"github.com/pghmri/mri/errs"
)

// blockCopyBufSize bounds raw copy and zero-fill chunk sizes, and,
// divided by 8 (sizeof(f64)), bounds how many elements a streaming
// conversion pass handles per round trip to the host files: blocks of
// approximately BUFFER_SIZE/sizeof(f64) elements, after the reference
// library's own streaming granularity.
const blockCopyBufSize = 1 << 16
const streamElemsPerPass = blockCopyBufSize / 8

func (ds *Dataset) readAt(id fileID, offset int64, buf []byte) error {
	f, err := ds.files.Open(id, false, ds.maxOpenFiles)
	if err != nil {
		return err
	}
	n, err := f.ReadAt(buf, offset)
	if err != nil && n != len(buf) {
		return errs.Wrap(errs.KindIO, err, "short read at offset %d of %q", offset, ds.files.entry(id).name)
	}
	return nil
}

func (ds *Dataset) writeAt(id fileID, offset int64, buf []byte) error {
	f, err := ds.files.Open(id, true, ds.maxOpenFiles)
	if err != nil {
		return err
	}
	n, err := f.WriteAt(buf, offset)
	if err != nil || n != len(buf) {
		return errs.Wrap(errs.KindIO, err, "short write at offset %d of %q", offset, ds.files.entry(id).name)
	}
	return nil
}

// blockCopy raw-copies n bytes from (srcFile,srcOff) to (dstFile,dstOff).
func (ds *Dataset) blockCopy(srcFile fileID, srcOff int64, dstFile fileID, dstOff int64, n int64) error {
	buf := make([]byte, blockCopyBufSize)
	for n > 0 {
		chunkLen := int64(len(buf))
		if chunkLen > n {
			chunkLen = n
		}
		if err := ds.readAt(srcFile, srcOff, buf[:chunkLen]); err != nil {
			return err
		}
		if err := ds.writeAt(dstFile, dstOff, buf[:chunkLen]); err != nil {
			return err
		}
		srcOff += chunkLen
		dstOff += chunkLen
		n -= chunkLen
	}
	return nil
}

// zeroFill writes n zero bytes starting at (dstFile,dstOff).
func (ds *Dataset) zeroFill(dstFile fileID, dstOff int64, n int64) error {
	buf := make([]byte, blockCopyBufSize)
	for n > 0 {
		chunkLen := int64(len(buf))
		if chunkLen > n {
			chunkLen = n
		}
		if err := ds.writeAt(dstFile, dstOff, buf[:chunkLen]); err != nil {
			return err
		}
		dstOff += chunkLen
		n -= chunkLen
	}
	return nil
}

// convertChunk moves ch's bytes from (srcFile,srcOff,srcType,srcLE) to
// (dstFile,dstOff) in ch's desired type/endianness: a raw block copy
// when the type and endianness are unchanged, otherwise an
// element-wise widen-to-f64-then-narrow pass.
func (ds *Dataset) convertChunk(ch *Chunk, srcFile fileID, srcOff int64, srcType dtype.Type, srcLE bool, srcSize int64, dstFile fileID, dstOff int64) error {
	if srcType == ch.datatype && srcLE == ch.littleEndian {
		n := srcSize
		if ch.size < n {
			n = ch.size
		}
		if err := ds.blockCopy(srcFile, srcOff, dstFile, dstOff, n); err != nil {
			return err
		}
		if ch.size > n {
			if err := ds.zeroFill(dstFile, dstOff+n, ch.size-n); err != nil {
				return err
			}
		}
		return nil
	}
	return ds.streamConvert(ch, srcFile, srcOff, srcType, srcLE, srcSize, dstFile, dstOff)
}

func (ds *Dataset) streamConvert(ch *Chunk, srcFile fileID, srcOff int64, srcType dtype.Type, srcLE bool, srcSize int64, dstFile fileID, dstOff int64) error {
	srcCoder := dtype.CoderFor(srcType)
	dstCoder := dtype.CoderFor(ch.datatype)
	srcOrder := binio.Order{Little: srcLE}
	dstOrder := binio.Order{Little: ch.littleEndian}

	srcElems := srcSize / int64(srcType.Size())
	dstElems := ch.size / int64(ch.datatype.Size())
	n := srcElems
	if dstElems < n {
		n = dstElems
	}

	srcBuf := make([]byte, streamElemsPerPass*srcType.Size())
	dstBuf := make([]byte, streamElemsPerPass*ch.datatype.Size())
	clampedAny := false

	var i int64
	for i < n {
		batch := int64(streamElemsPerPass)
		if batch > n-i {
			batch = n - i
		}
		sb := srcBuf[:batch*int64(srcType.Size())]
		db := dstBuf[:batch*int64(ch.datatype.Size())]
		if err := ds.readAt(srcFile, srcOff+i*int64(srcType.Size()), sb); err != nil {
			return err
		}
		for e := int64(0); e < batch; e++ {
			v := srcCoder.Widen(sb[e*int64(srcType.Size()):], srcOrder)
			if dstCoder.Narrow(v, db[e*int64(ch.datatype.Size()):], dstOrder) {
				clampedAny = true
			}
		}
		if err := ds.writeAt(dstFile, dstOff+i*int64(ch.datatype.Size()), db); err != nil {
			return err
		}
		i += batch
	}
	if dstElems > n {
		if err := ds.zeroFill(dstFile, dstOff+n*int64(ch.datatype.Size()), (dstElems-n)*int64(ch.datatype.Size())); err != nil {
			return err
		}
	}
	if clampedAny {
		ds.policy.Warn("converting chunk %q: values clamped to range of %s", ch.name, ch.datatype)
	}
	return nil
}
