package mri

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pghmri/mri/errs"
)

type fileID int

// fileEntry is one host file owned by a dataset, grounded on
// kluzzebass-gastrolog's Manager (open-file bookkeeping keyed by an
// owning struct) and on yazgazan-kvstore's Pool (offset-addressed
// chunks backed by a single stream); adapted to multiple host files
// per dataset with an LRU-bounded open count.
type fileEntry struct {
	name     string
	stream   *os.File
	writable bool
	lastUse  uint64
	external bool
	removed  bool
}

// fileRegistry is the set of host files owned by one dataset.
type fileRegistry struct {
	entries    []*fileEntry
	byName     map[string]fileID
	openCount  int
	useCounter uint64
}

func newFileRegistry() *fileRegistry {
	return &fileRegistry{byName: make(map[string]fileID)}
}

// resolveChunkFileName resolves a chunk-file redirection rule against
// dataset base path base and chunk-file spec s.
func resolveChunkFileName(base, s string) string {
	if s == "" {
		return base
	}
	if strings.HasPrefix(s, ".") {
		ext := filepath.Ext(base)
		trimmed := strings.TrimSuffix(base, ext)
		return trimmed + s
	}
	if !strings.Contains(s, "/") && strings.Contains(base, "/") {
		return filepath.Join(filepath.Dir(base), s)
	}
	return s
}

// GetOrCreate resolves spec against the dataset's base name and
// returns a stable reference to that host file, creating a registry
// entry on first use.
func (r *fileRegistry) GetOrCreate(ds *Dataset, spec string) (fileID, error) {
	resolved := resolveChunkFileName(ds.name, spec)
	if id, ok := r.byName[resolved]; ok {
		return id, nil
	}
	id := fileID(len(r.entries))
	r.entries = append(r.entries, &fileEntry{name: resolved})
	r.byName[resolved] = id
	return id, nil
}

func (r *fileRegistry) entry(id fileID) *fileEntry {
	return r.entries[id]
}

// Open ensures id's stream is open, promoting to read-write if
// forWrite is requested and the existing handle is read-only. It may
// evict the least-recently-used open stream to stay within
// maxOpenFiles.
func (r *fileRegistry) Open(id fileID, forWrite bool, maxOpenFiles int) (*os.File, error) {
	e := r.entry(id)
	if e.removed {
		return nil, errs.New(errs.KindIO, "file %q was already destroyed", e.name)
	}
	if e.stream != nil && (!forWrite || e.writable) {
		r.useCounter++
		e.lastUse = r.useCounter
		return e.stream, nil
	}
	if e.stream != nil {
		// Promote read-only handle to read-write.
		r.closeEntry(e)
	}
	if r.openCount >= maxOpenFiles {
		if err := r.evictLRU(id); err != nil {
			return nil, err
		}
	}
	flags := os.O_RDONLY
	if forWrite {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(e.name, flags, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "opening file %q", e.name)
	}
	e.stream = f
	e.writable = forWrite
	r.useCounter++
	e.lastUse = r.useCounter
	r.openCount++
	return f, nil
}

// evictLRU closes the open stream with the smallest last-use counter,
// other than keep.
func (r *fileRegistry) evictLRU(keep fileID) error {
	var victim *fileEntry
	for _, e := range r.entries {
		if e.stream == nil || e == r.entry(keep) {
			continue
		}
		if victim == nil || e.lastUse < victim.lastUse {
			victim = e
		}
	}
	if victim == nil {
		return errs.New(errs.KindIO, "no open file available to evict")
	}
	r.closeEntry(victim)
	return nil
}

func (r *fileRegistry) closeEntry(e *fileEntry) {
	if e.stream != nil {
		_ = e.stream.Close()
		e.stream = nil
		r.openCount--
	}
}

// Close releases id's open handle, if any.
func (r *fileRegistry) Close(id fileID) {
	r.closeEntry(r.entry(id))
}

// Destroy closes and unlinks id, marking it unusable.
func (r *fileRegistry) Destroy(id fileID) error {
	e := r.entry(id)
	if e.removed {
		return nil
	}
	r.closeEntry(e)
	if err := os.Remove(e.name); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.KindIO, err, "removing file %q", e.name)
	}
	e.removed = true
	delete(r.byName, e.name)
	return nil
}

// CloseAll releases every open handle, used by Dataset.Close.
func (r *fileRegistry) CloseAll() {
	for _, e := range r.entries {
		r.closeEntry(e)
	}
}
