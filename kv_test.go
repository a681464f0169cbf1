package mri

import (
	"strconv"
	"testing"
)

func TestHashTableGrowth(t *testing.T) {
	h := newHashTable()
	const n = 1000
	for i := 0; i < n; i++ {
		h.set(keyFor(i), valueFor(i))
	}
	if h.count != n {
		t.Fatalf("count = %d, want %d", h.count, n)
	}
	for i := 0; i < n; i++ {
		p := h.find(keyFor(i))
		if p == nil || p.value != valueFor(i) {
			t.Fatalf("key %q: missing or wrong value after growth", keyFor(i))
		}
	}
	if h.size <= initialHashSize {
		t.Fatalf("table never grew past its initial size %d", initialHashSize)
	}
}

func keyFor(i int) string   { return "key" + strconv.Itoa(i) }
func valueFor(i int) string { return "value" + strconv.Itoa(i) }

func TestHashTableRemove(t *testing.T) {
	h := newHashTable()
	h.set("a", "1")
	h.set("b", "2")
	if !h.remove("a") {
		t.Fatal("expected remove to report the key existed")
	}
	if h.find("a") != nil {
		t.Fatal("key still present after remove")
	}
	if h.remove("a") {
		t.Fatal("second remove of the same key should report false")
	}
	if h.find("b") == nil {
		t.Fatal("unrelated key lost during remove")
	}
}

func TestValidateKeyRejectsEquals(t *testing.T) {
	if err := validateKey("a=b"); err == nil {
		t.Fatal("expected an error for a key containing '='")
	}
	if err := validateKey(""); err == nil {
		t.Fatal("expected an error for an empty key")
	}
	if err := validateKey("plain.key"); err != nil {
		t.Fatalf("unexpected error for a plain key: %v", err)
	}
}

func TestSetStringCreatesAndRemovesChunk(t *testing.T) {
	settings := testSettings(t)
	ds := newDataset("mem", ModeModify, settings)
	ds.headerFile = 0

	if err := ds.SetString("images", chunkSentinel); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	ch, ok := ds.Chunk("images")
	if !ok {
		t.Fatal("expected a chunk named images to exist")
	}
	if ch.Datatype().String() != "int16" {
		t.Fatalf("default datatype = %s, want int16", ch.Datatype())
	}

	if err := ds.SetString("images.datatype", "float32"); err != nil {
		t.Fatalf("SetString attribute: %v", err)
	}
	if ch.Datatype().String() != "float32" {
		t.Fatalf("datatype after attribute set = %s, want float32", ch.Datatype())
	}

	if err := ds.Remove("images"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := ds.Chunk("images"); ok {
		t.Fatal("chunk should be gone after removing its declaring key")
	}
}
