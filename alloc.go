package mri

import (
	"strconv"

	"github.com/pghmri/mri/errs"
)

// Alignment thresholds, grounded on the reference library's
// MRI_ALIGNMENT_THRESHOLD / MRI_ALIGNMENT_BOUNDARY.
const (
	alignThreshold = 65536
	alignBoundary  = 16384
)

// unbounded stands in for the reference library's 4-billion-byte
// sentinel marking the open end of a file's final empty block.
const unbounded = int64(1) << 62

// emptyBlock is a half-open [start, start+size) region of free space
// within one host file.
type emptyBlock struct {
	start int64
	size  int64
}

func (b emptyBlock) end() int64 { return b.start + b.size }

// recomputeLayoutNow runs the space allocator over every host file
// that has a non-external chunk destined for it,
// assigning each chunk's desired offset. Grounded on the reference
// library's ComputeChunkPositions/ReserveBlock, generalized from a
// fixed-size C array of empty blocks to a grown slice.
func (ds *Dataset) recomputeLayoutNow() error {
	byFile := map[fileID][]*Chunk{}
	for _, ch := range ds.chunks {
		if ch.removed || ch.order == orderExternal {
			continue
		}
		byFile[ch.file] = append(byFile[ch.file], ch)
	}

	for fid, chunks := range byFile {
		if err := ds.packFile(fid, chunks); err != nil {
			return err
		}
	}
	ds.recomputeLayout = false
	return nil
}

func (ds *Dataset) packFile(fid fileID, chunks []*Chunk) error {
	var blocks []emptyBlock
	if fid == ds.headerFile {
		blocks = []emptyBlock{{start: ds.headerSize, size: unbounded - ds.headerSize}}
	} else {
		blocks = []emptyBlock{{start: 0, size: unbounded}}
	}

	pending := make([]*Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if ch.order == orderFixedOffset {
			var err error
			blocks, err = reserveBlock(blocks, ch.offset, ch.size)
			if err != nil {
				return errs.Wrap(errs.KindAllocation, err, "fixed-offset chunk %q", ch.name)
			}
			continue
		}
		pending = append(pending, ch)
	}

	// Selection sort by (order ascending, current offset ascending):
	// the offset secondary key introduces hysteresis so repacking does
	// not reshuffle chunks whose order is already satisfied.
	for i := 0; i < len(pending); i++ {
		min := i
		for j := i + 1; j < len(pending); j++ {
			if less := (pending[j].order < pending[min].order) ||
				(pending[j].order == pending[min].order && pending[j].offset < pending[min].offset); less {
				min = j
			}
		}
		pending[i], pending[min] = pending[min], pending[i]
	}

	for _, ch := range pending {
		needAlign := ch.size >= alignThreshold
		idx, start, ok := firstFit(blocks, ch.size, needAlign)
		if !ok {
			return errs.New(errs.KindAllocation, "cannot place chunk %q (size %d)", ch.name, ch.size)
		}
		blocks = splitBlock(blocks, idx, start, ch.size)
		if ch.offset != start {
			ch.offset = start
			ch.modified = true
		}
		ds.kv.set(ch.name+".offset", strconv.FormatInt(ch.offset, 10))
	}
	return nil
}

// firstFit returns the index of the first block able to hold size
// bytes (aligned to alignBoundary if align is set) and the chosen
// start offset within it.
func firstFit(blocks []emptyBlock, size int64, align bool) (int, int64, bool) {
	for i, b := range blocks {
		start := b.start
		if align {
			start = roundUp(start, alignBoundary)
		}
		if start+size <= b.end() {
			return i, start, true
		}
	}
	return 0, 0, false
}

func roundUp(v, boundary int64) int64 {
	if v%boundary == 0 {
		return v
	}
	return ((v / boundary) + 1) * boundary
}

// splitBlock removes [start, start+size) from the block at idx,
// leaving any alignment gap before it and any remainder after it as
// new free blocks.
func splitBlock(blocks []emptyBlock, idx int, start, size int64) []emptyBlock {
	b := blocks[idx]
	var replacement []emptyBlock
	if start > b.start {
		replacement = append(replacement, emptyBlock{start: b.start, size: start - b.start})
	}
	if end := start + size; end < b.end() {
		replacement = append(replacement, emptyBlock{start: end, size: b.end() - end})
	}
	out := make([]emptyBlock, 0, len(blocks)-1+len(replacement))
	out = append(out, blocks[:idx]...)
	out = append(out, replacement...)
	out = append(out, blocks[idx+1:]...)
	return out
}

// reserveBlock removes the exact [start, start+size) region from
// blocks, splitting whichever block contains it. Returns an error if
// the region collides with an already-reserved area (no containing
// block found).
func reserveBlock(blocks []emptyBlock, start, size int64) ([]emptyBlock, error) {
	for i, b := range blocks {
		if b.start <= start && start+size <= b.end() {
			return splitBlock(blocks, i, start, size), nil
		}
	}
	return nil, errs.New(errs.KindAllocation, "fixed offset %d..%d overlaps existing reservation", start, start+size)
}
