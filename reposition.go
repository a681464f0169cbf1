package mri

// queuedCopy is a deferred temp-file-to-destination bulk copy,
// drained after the whole repositioning tree has been walked.
type queuedCopy struct {
	tempFile fileID
	toFile   fileID
	toOffset int64
	size     int64
}

// flushLayout runs the allocator (if the layout-dirty flag is set)
// and then the repositioner over every modified chunk. Called before
// any chunk I/O and from Close.
func (ds *Dataset) flushLayout() error {
	if ds.recomputeLayout {
		if err := ds.recomputeLayoutNow(); err != nil {
			return err
		}
	}

	for _, ch := range ds.chunks {
		ch.checked = false
	}
	inProgress := map[chunkID]bool{}
	for _, ch := range ds.chunks {
		if ch.removed || ch.checked {
			continue
		}
		if err := ds.repositionChunk(ch, inProgress); err != nil {
			return err
		}
	}

	if err := ds.drainQueuedCopies(); err != nil {
		return err
	}
	ds.sweepUnreferencedFiles()
	return nil
}

func rangesOverlap(aStart, aSize, bStart, bSize int64) bool {
	return aStart < bStart+bSize && bStart < aStart+aSize
}

// overlappingActual finds other non-external chunks whose actual
// on-disk placement, in the same file as ch's desired destination,
// overlaps ch's desired byte range.
func (ds *Dataset) overlappingActual(ch *Chunk) []*Chunk {
	var out []*Chunk
	for _, other := range ds.chunks {
		if other == ch || other.removed || other.order == orderExternal || !other.actualValid {
			continue
		}
		if other.actualFile != ch.file {
			continue
		}
		if rangesOverlap(ch.offset, ch.size, other.actualOffset, other.actualSize) {
			out = append(out, other)
		}
	}
	return out
}

// repositionChunk recursively repositions any other chunk whose
// actual bytes sit where ch wants to go, then
// convert ch itself, routing through a temp file when recursion finds
// a cycle or ch would overwrite its own unread source bytes.
func (ds *Dataset) repositionChunk(ch *Chunk, inProgress map[chunkID]bool) error {
	if ch.checked || ch.removed {
		return nil
	}
	if !ch.modified {
		ch.checked = true
		return nil
	}
	if inProgress[ch.id] {
		return nil
	}
	inProgress[ch.id] = true
	defer delete(inProgress, ch.id)

	needsTemp := false
	for _, other := range ds.overlappingActual(ch) {
		if inProgress[other.id] {
			needsTemp = true
			continue
		}
		if !other.checked {
			if err := ds.repositionChunk(other, inProgress); err != nil {
				return err
			}
		}
	}

	if ch.actualValid {
		selfOverlap := ch.file == ch.actualFile &&
			rangesOverlap(ch.offset, ch.size, ch.actualOffset, ch.actualSize)
		offsetMoves := ch.offset != ch.actualOffset || ch.file != ch.actualFile
		sizeGrows := ch.datatype.Size() > ch.actualDatatype.Size()
		if selfOverlap && (offsetMoves || sizeGrows) {
			needsTemp = true
		}
	}

	if !ch.actualValid {
		// Brand new chunk: nothing to convert from, just zero-fill the
		// reserved region so uninitialized bytes never leak.
		if err := ds.zeroFill(ch.file, ch.offset, ch.size); err != nil {
			return err
		}
	} else if needsTemp {
		tmp, err := ds.newTempFile()
		if err != nil {
			return err
		}
		if err := ds.convertChunk(ch, ch.actualFile, ch.actualOffset, ch.actualDatatype, ch.actualLittleEndian, ch.actualSize, tmp, 0); err != nil {
			return err
		}
		ds.queuedCopies = append(ds.queuedCopies, queuedCopy{tempFile: tmp, toFile: ch.file, toOffset: ch.offset, size: ch.size})
	} else {
		if err := ds.convertChunk(ch, ch.actualFile, ch.actualOffset, ch.actualDatatype, ch.actualLittleEndian, ch.actualSize, ch.file, ch.offset); err != nil {
			return err
		}
	}

	ch.actualFile = ch.file
	ch.actualDatatype = ch.datatype
	ch.actualDims = ch.dims
	ch.actualExtent = cloneExtent(ch.extent)
	ch.actualLittleEndian = ch.littleEndian
	ch.actualOffset = ch.offset
	ch.actualSize = ch.size
	ch.actualValid = true
	ch.modified = false
	ch.checked = true
	return nil
}

func (ds *Dataset) drainQueuedCopies() error {
	for _, qc := range ds.queuedCopies {
		if err := ds.blockCopy(qc.tempFile, 0, qc.toFile, qc.toOffset, qc.size); err != nil {
			return err
		}
	}
	ds.queuedCopies = ds.queuedCopies[:0]
	return nil
}

// sweepUnreferencedFiles destroys any host file (other than the
// header) no chunk's actual placement references anymore -- this is
// how temp files created during repositioning get cleaned up.
func (ds *Dataset) sweepUnreferencedFiles() {
	referenced := map[fileID]bool{ds.headerFile: true}
	for _, ch := range ds.chunks {
		if ch.removed {
			continue
		}
		referenced[ch.actualFile] = true
	}
	for id, e := range ds.files.entries {
		fid := fileID(id)
		if e.removed || referenced[fid] {
			continue
		}
		_ = ds.files.Destroy(fid)
	}
}
