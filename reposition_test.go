package mri

import (
	"path/filepath"
	"strconv"
	"testing"
)

func declareI32Chunk(t *testing.T, ds *Dataset, name string, n int64) {
	t.Helper()
	if err := ds.SetString(name, chunkSentinel); err != nil {
		t.Fatalf("declare %s: %v", name, err)
	}
	if err := ds.SetString(name+".dimensions", "x"); err != nil {
		t.Fatalf("set dimensions: %v", err)
	}
	if err := ds.SetString(name+".extent.x", strconv.FormatInt(n, 10)); err != nil {
		t.Fatalf("set extent.x: %v", err)
	}
	if err := ds.SetString(name+".datatype", "int32"); err != nil {
		t.Fatalf("set datatype: %v", err)
	}
}

// TestRepositionSwapsOverlappingChunks forces a two-chunk placement
// cycle -- each chunk's desired offset is the other's current actual
// offset -- and checks that once the repositioner has resolved the
// cycle, each chunk's own data reads back unchanged at its new offset.
func TestRepositionSwapsOverlappingChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swap.mri")

	ds := openTestDataset(t, path)
	declareI32Chunk(t, ds, "a", 4)
	declareI32Chunk(t, ds, "b", 4)
	if err := ds.SetChunkI32("a", 0, []int32{1, 2, 3, 4}); err != nil {
		t.Fatalf("SetChunkI32 a: %v", err)
	}
	if err := ds.SetChunkI32("b", 0, []int32{5, 6, 7, 8}); err != nil {
		t.Fatalf("SetChunkI32 b: %v", err)
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ds2, err := Open(path, ModeModify)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	a, ok := ds2.Chunk("a")
	if !ok {
		t.Fatal("missing chunk a")
	}
	b, ok := ds2.Chunk("b")
	if !ok {
		t.Fatal("missing chunk b")
	}
	aOffset, bOffset := a.actualOffset, b.actualOffset
	if aOffset == bOffset {
		t.Fatal("test setup invalid: a and b already share an offset")
	}

	if err := ds2.SetString("a.order", "fixed_offset"); err != nil {
		t.Fatalf("set a.order: %v", err)
	}
	if err := ds2.SetString("a.offset", strconv.FormatInt(bOffset, 10)); err != nil {
		t.Fatalf("set a.offset: %v", err)
	}
	if err := ds2.SetString("b.order", "fixed_offset"); err != nil {
		t.Fatalf("set b.order: %v", err)
	}
	if err := ds2.SetString("b.offset", strconv.FormatInt(aOffset, 10)); err != nil {
		t.Fatalf("set b.offset: %v", err)
	}
	if err := ds2.Close(); err != nil {
		t.Fatalf("Close after swap: %v", err)
	}

	reopened, err := Open(path, ModeRead)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	gotA, err := reopened.GetChunkI32("a", 4, 0)
	if err != nil {
		t.Fatalf("GetChunkI32 a: %v", err)
	}
	gotB, err := reopened.GetChunkI32("b", 4, 0)
	if err != nil {
		t.Fatalf("GetChunkI32 b: %v", err)
	}
	// Repositioning only relocates bytes on disk to satisfy the new
	// fixed offsets; each chunk's own data must read back unchanged
	// despite the cycle forcing one side through a temp file.
	wantA := []int32{1, 2, 3, 4}
	wantB := []int32{5, 6, 7, 8}
	for i := range wantA {
		if gotA[i] != wantA[i] {
			t.Fatalf("a[%d] = %d, want %d (data corrupted by cyclic reposition)", i, gotA[i], wantA[i])
		}
		if gotB[i] != wantB[i] {
			t.Fatalf("b[%d] = %d, want %d (data corrupted by cyclic reposition)", i, gotB[i], wantB[i])
		}
	}
}

// TestConvertChunkWidensAndNarrows exercises streamConvert's
// widen-then-narrow path (as opposed to convertChunk's raw blockCopy
// fast path, taken when datatype and endianness are unchanged).
func TestConvertChunkWidensAndNarrows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "convert.mri")
	ds := openTestDataset(t, path)
	declareI32Chunk(t, ds, "a", 3)
	if err := ds.SetChunkI32("a", 0, []int32{100, 200, 300}); err != nil {
		t.Fatalf("SetChunkI32: %v", err)
	}
	if err := ds.SetString("a.datatype", "float32"); err != nil {
		t.Fatalf("change datatype: %v", err)
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, ModeRead)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetChunkF32("a", 3, 0)
	if err != nil {
		t.Fatalf("GetChunkF32: %v", err)
	}
	want := []float32{100, 200, 300}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
