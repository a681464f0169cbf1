package mri

import (
	"path/filepath"
	"testing"

	"github.com/pghmri/mri/errs"
	"github.com/pghmri/mri/internal/envconfig"
)

func testSettings(t *testing.T) envconfig.Settings {
	t.Helper()
	return envconfig.Settings{TmpDir: t.TempDir(), MaxOpenFiles: 8, ErrorMode: errs.Report}
}

func openTestDataset(t *testing.T, path string) *Dataset {
	t.Helper()
	settings := testSettings(t)
	ds := newDataset(path, ModeModify, settings)
	id, err := ds.files.GetOrCreate(ds, "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	ds.headerFile = id
	if _, err := ds.files.Open(id, true, ds.maxOpenFiles); err != nil {
		t.Fatalf("Open: %v", err)
	}
	ds.kv.set("!format", "pgh")
	ds.kv.set("!version", "1.0")
	ds.headerSize = initialHeaderSize
	ds.recomputeLayout = true
	return ds
}

func TestCreateCloseOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.mri")

	ds := openTestDataset(t, path)
	if err := ds.SetString("images", chunkSentinel); err != nil {
		t.Fatalf("declare chunk: %v", err)
	}
	if err := ds.SetString("images.dimensions", "xyz"); err != nil {
		t.Fatalf("set dimensions: %v", err)
	}
	if err := ds.SetString("images.extent.x", "2"); err != nil {
		t.Fatalf("set extent.x: %v", err)
	}
	if err := ds.SetString("images.extent.y", "2"); err != nil {
		t.Fatalf("set extent.y: %v", err)
	}
	if err := ds.SetString("images.extent.z", "2"); err != nil {
		t.Fatalf("set extent.z: %v", err)
	}
	if err := ds.SetString("images.datatype", "float32"); err != nil {
		t.Fatalf("set datatype: %v", err)
	}

	want := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	if err := ds.SetChunkF32("images", 0, want); err != nil {
		t.Fatalf("SetChunkF32: %v", err)
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, ModeRead)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	ch, ok := reopened.Chunk("images")
	if !ok {
		t.Fatal("reopened dataset missing the images chunk")
	}
	if ch.Dimensions() != "xyz" {
		t.Fatalf("dimensions = %q, want xyz", ch.Dimensions())
	}
	if ch.Size() != int64(len(want))*4 {
		t.Fatalf("size = %d, want %d", ch.Size(), len(want)*4)
	}

	got, err := reopened.GetChunkF32("images", int64(len(want)), 0)
	if err != nil {
		t.Fatalf("GetChunkF32: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGetChunkRejectsOutOfBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bounds.mri")
	ds := openTestDataset(t, path)

	if err := ds.SetString("images", chunkSentinel); err != nil {
		t.Fatalf("declare chunk: %v", err)
	}
	if err := ds.SetString("images.dimensions", "x"); err != nil {
		t.Fatalf("set dimensions: %v", err)
	}
	if err := ds.SetString("images.extent.x", "4"); err != nil {
		t.Fatalf("set extent.x: %v", err)
	}
	if err := ds.SetString("images.datatype", "int16"); err != nil {
		t.Fatalf("set datatype: %v", err)
	}

	if _, err := ds.GetChunkI16("images", 5, 0); err == nil {
		t.Fatal("expected an out-of-bounds error reading past the chunk's extent")
	}
	if _, err := ds.GetChunkI16("images", 2, 3); err == nil {
		t.Fatal("expected an out-of-bounds error for offset+count past the chunk's extent")
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestReadOnlyModeRejectsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readonly.mri")
	ds := openTestDataset(t, path)
	if err := ds.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, ModeRead)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	if err := reopened.SetString("newkey", "value"); err == nil {
		t.Fatal("expected read-only dataset to reject SetString")
	}
}

func TestCopyDatasetPreservesData(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.mri")
	dstPath := filepath.Join(dir, "dst.mri")

	ds := openTestDataset(t, srcPath)
	if err := ds.SetString("images", chunkSentinel); err != nil {
		t.Fatalf("declare chunk: %v", err)
	}
	if err := ds.SetString("images.dimensions", "x"); err != nil {
		t.Fatalf("set dimensions: %v", err)
	}
	if err := ds.SetString("images.extent.x", "3"); err != nil {
		t.Fatalf("set extent.x: %v", err)
	}
	if err := ds.SetString("images.datatype", "int32"); err != nil {
		t.Fatalf("set datatype: %v", err)
	}
	if err := ds.SetChunkI32("images", 0, []int32{10, 20, 30}); err != nil {
		t.Fatalf("SetChunkI32: %v", err)
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	src, err := Open(srcPath, ModeRead)
	if err != nil {
		t.Fatalf("Open src: %v", err)
	}
	defer src.Close()

	dst, err := CopyDataset(src, dstPath)
	if err != nil {
		t.Fatalf("CopyDataset: %v", err)
	}
	if err := dst.Close(); err != nil {
		t.Fatalf("Close dst: %v", err)
	}

	reopened, err := Open(dstPath, ModeRead)
	if err != nil {
		t.Fatalf("Open dst: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetChunkI32("images", 3, 0)
	if err != nil {
		t.Fatalf("GetChunkI32: %v", err)
	}
	want := []int32{10, 20, 30}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}
