package mri

import (
	"path/filepath"
	"strconv"
	"testing"
)

// TestAttrHookIdempotence verifies that setting a chunk attribute to its
// already-current value is a no-op: no modified flag, no layout
// recompute. Each case first performs a genuine change (to clear the
// dirty flags via flushLayout), then re-applies the same value and
// checks nothing gets marked dirty again.
func TestAttrHookIdempotence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idempotence.mri")
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
	if err := ds.SetString("images.order", "3"); err != nil {
		t.Fatalf("set order: %v", err)
	}
	if err := ds.SetString("images.offset", "131072"); err != nil {
		t.Fatalf("set offset: %v", err)
	}
	if err := ds.SetString("images.little_endian", "1"); err != nil {
		t.Fatalf("set little_endian: %v", err)
	}
	if err := ds.flushLayout(); err != nil {
		t.Fatalf("flushLayout: %v", err)
	}

	ch, ok := ds.Chunk("images")
	if !ok {
		t.Fatal("missing images chunk")
	}
	if ch.modified {
		t.Fatal("chunk still modified after flushLayout")
	}

	// The allocator places an integer-ranked chunk first-fit, so the
	// offset to re-apply is the one it assigned, not the 131072 hint.
	cases := []struct {
		key   string
		value string
	}{
		{"images.datatype", "int16"},
		{"images.order", "3"},
		{"images.offset", strconv.FormatInt(ch.offset, 10)},
		{"images.little_endian", "1"},
	}
	for _, c := range cases {
		ds.recomputeLayout = false
		if err := ds.SetString(c.key, c.value); err != nil {
			t.Fatalf("re-set %s=%s: %v", c.key, c.value, err)
		}
		if ch.modified {
			t.Fatalf("%s=%s (unchanged value) marked chunk modified", c.key, c.value)
		}
		if ds.recomputeLayout {
			t.Fatalf("%s=%s (unchanged value) triggered a layout recompute", c.key, c.value)
		}
	}
}

// TestAttrHookMarksModifiedOnRealChange is the mirror of
// TestAttrHookIdempotence: an actual change to offset/order must still
// mark the chunk modified and dirty the layout.
func TestAttrHookMarksModifiedOnRealChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "realchange.mri")
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
	if err := ds.SetString("images.order", "3"); err != nil {
		t.Fatalf("set order: %v", err)
	}
	if err := ds.flushLayout(); err != nil {
		t.Fatalf("flushLayout: %v", err)
	}

	ch, ok := ds.Chunk("images")
	if !ok {
		t.Fatal("missing images chunk")
	}

	if err := ds.SetString("images.order", "4"); err != nil {
		t.Fatalf("set order: %v", err)
	}
	if !ch.modified {
		t.Fatal("changing order to a new value did not mark chunk modified")
	}
	if !ds.recomputeLayout {
		t.Fatal("changing order to a new value did not dirty the layout")
	}
}
