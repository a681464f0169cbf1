package mri

import "testing"

func TestResolveChunkFileNameRules(t *testing.T) {
	cases := []struct {
		base, spec, want string
	}{
		{"/data/scan.mri", "", "/data/scan.mri"},
		{"/data/scan.mri", ".raw", "/data/scan.raw"},
		{"/data/scan.mri", "sibling.dat", "/data/sibling.dat"},
		{"/data/scan.mri", "/abs/path.dat", "/abs/path.dat"},
	}
	for _, c := range cases {
		if got := resolveChunkFileName(c.base, c.spec); got != c.want {
			t.Fatalf("resolveChunkFileName(%q, %q) = %q, want %q", c.base, c.spec, got, c.want)
		}
	}
}

func TestFileRegistryGetOrCreateDeduplicates(t *testing.T) {
	r := newFileRegistry()
	settings := testSettings(t)
	ds := newDataset("/tmp/irrelevant.mri", ModeModify, settings)
	ds.files = r

	id1, err := r.GetOrCreate(ds, "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	id2, err := r.GetOrCreate(ds, "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("GetOrCreate returned different ids for the same spec: %d != %d", id1, id2)
	}
	id3, err := r.GetOrCreate(ds, ".raw")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if id3 == id1 {
		t.Fatal("distinct specs should resolve to distinct file ids")
	}
}

func TestFileRegistryEvictsLRUWhenFull(t *testing.T) {
	dir := t.TempDir()
	r := newFileRegistry()
	settings := testSettings(t)
	ds := newDataset(dir+"/base.mri", ModeModify, settings)
	ds.files = r

	const maxOpen = 2
	var ids []fileID
	for i := 0; i < 3; i++ {
		id, err := r.GetOrCreate(ds, dir+"/f"+string(rune('a'+i))+".dat")
		if err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
		ids = append(ids, id)
		if _, err := r.Open(id, true, maxOpen); err != nil {
			t.Fatalf("Open: %v", err)
		}
	}
	if r.openCount > maxOpen {
		t.Fatalf("openCount = %d, want <= %d", r.openCount, maxOpen)
	}
	if r.entry(ids[0]).stream != nil {
		t.Fatal("expected the least-recently-used file to be evicted")
	}
	r.CloseAll()
	for _, id := range ids {
		_ = r.Destroy(id)
	}
}
