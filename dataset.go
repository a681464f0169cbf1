package mri

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pghmri/mri/binio"
	"github.com/pghmri/mri/dtype"
	"github.com/pghmri/mri/errs"
	"github.com/pghmri/mri/internal/envconfig"
)

// datasetExtension is the canonical file extension appended to a
// caller-supplied base name that doesn't already carry one.
const datasetExtension = ".mri"

// canonicalDatasetName appends datasetExtension to name if it isn't
// already present, so "scan" and "scan.mri" name the same file.
func canonicalDatasetName(name string) string {
	if filepath.Ext(name) == datasetExtension {
		return name
	}
	return name + datasetExtension
}

// nativeLittleEndian is the byte order new chunks default to.
var nativeLittleEndian = binio.Machine.Little

// OpenMode controls what mutations a Dataset will permit.
type OpenMode int

const (
	// ModeRead permits no mutation at all.
	ModeRead OpenMode = iota
	// ModeModify permits both data and layout (chunk declaration,
	// attribute, key) mutation.
	ModeModify
	// ModeModifyData permits data mutation only; no key may be set or
	// removed, so chunk declarations and attributes are frozen.
	ModeModifyData
)

func (m OpenMode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeModify:
		return "modify"
	case ModeModifyData:
		return "modify-data"
	default:
		return "unknown"
	}
}

// Dataset is one open .mri dataset: its key/value header, its chunk
// descriptors, and the set of host files backing them.
type Dataset struct {
	name string
	mode OpenMode

	kv          *hashTable
	chunks      []*Chunk
	chunkByName map[string]*Chunk

	files      *fileRegistry
	headerFile fileID
	headerSize int64

	pool            *bufferPool
	recomputeLayout bool
	policy          *errs.Policy

	tmpDir       string
	tmpCounter   int
	maxOpenFiles int

	queuedCopies []queuedCopy
}

func newDataset(name string, mode OpenMode, settings envconfig.Settings) *Dataset {
	ds := &Dataset{
		name:         name,
		mode:         mode,
		kv:           newHashTable(),
		chunkByName:  map[string]*Chunk{},
		files:        newFileRegistry(),
		pool:         newBufferPool(),
		policy:       errs.NewPolicy(),
		tmpDir:       settings.TmpDir,
		maxOpenFiles: settings.MaxOpenFiles,
	}
	ds.policy.Mode = settings.ErrorMode
	return ds
}

// Open opens an existing dataset at name for read (ModeRead) or
// read-write (ModeModify/ModeModifyData) access, parsing its header
// and reconstructing the chunk model from the keys it declares.
func Open(name string, mode OpenMode) (*Dataset, error) {
	name = canonicalDatasetName(name)
	settings, err := envconfig.FromEnv()
	if err != nil {
		return nil, err
	}
	ds := newDataset(name, mode, settings)

	id, err := ds.files.GetOrCreate(ds, "")
	if err != nil {
		return nil, ds.policy.Resolve(err)
	}
	ds.headerFile = id

	f, err := ds.files.Open(id, false, ds.maxOpenFiles)
	if err != nil {
		return nil, ds.policy.Resolve(err)
	}
	sizeField := make([]byte, sizeFieldWidth+1)
	if _, err := io.ReadFull(f, sizeField); err != nil {
		return nil, ds.policy.Resolve(errs.Wrap(errs.KindParse, err, "reading header size field of %q", name))
	}
	declaredSize, err := strconv.ParseInt(strings.TrimSpace(string(sizeField[:sizeFieldWidth])), 10, 64)
	if err != nil || declaredSize <= 0 {
		return nil, ds.policy.Resolve(errs.Wrap(errs.KindParse, err, "malformed header size field in %q", name))
	}
	block := make([]byte, declaredSize)
	if _, err := f.ReadAt(block, 0); err != nil {
		return nil, ds.policy.Resolve(errs.Wrap(errs.KindIO, err, "reading header block of %q", name))
	}

	pairs, headerSize, err := parseHeader(block)
	if err != nil {
		return nil, ds.policy.Resolve(err)
	}
	ds.headerSize = headerSize

	if err := ds.loadFromPairs(pairs); err != nil {
		return nil, ds.policy.Resolve(err)
	}
	if err := ds.checkRequiredKeys(); err != nil {
		return nil, ds.policy.Resolve(err)
	}
	return ds, nil
}

// Create creates a brand new, empty dataset at name (truncating any
// existing file) opened in ModeModify.
func Create(name string) (*Dataset, error) {
	name = canonicalDatasetName(name)
	settings, err := envconfig.FromEnv()
	if err != nil {
		return nil, err
	}
	ds := newDataset(name, ModeModify, settings)

	id, err := ds.files.GetOrCreate(ds, "")
	if err != nil {
		return nil, ds.policy.Resolve(err)
	}
	ds.headerFile = id
	if _, err := ds.files.Open(id, true, ds.maxOpenFiles); err != nil {
		return nil, ds.policy.Resolve(err)
	}
	if f := ds.files.entry(id).stream; f != nil {
		if err := f.Truncate(0); err != nil {
			return nil, ds.policy.Resolve(errs.Wrap(errs.KindIO, err, "truncating %q", name))
		}
	}

	ds.kv.set("!format", "pgh")
	ds.kv.set("!version", "1.0")
	ds.headerSize = initialHeaderSize
	ds.recomputeLayout = true
	return ds, nil
}

func (ds *Dataset) checkRequiredKeys() error {
	format, err := ds.GetString("!format")
	if err != nil || format != "pgh" {
		return errs.New(errs.KindValidation, "%q is not a pgh dataset (missing or wrong !format key)", ds.name)
	}
	if _, err := ds.GetString("!version"); err != nil {
		return errs.New(errs.KindValidation, "%q is missing the required !version key", ds.name)
	}
	return nil
}

// loadFromPairs reconstructs the kv table and chunk model from an
// ordered list of header pairs, the way Open replays a parsed header.
// Unlike SetString, it never flags layout as dirty and never marks
// chunks modified -- the pairs describe what is already true on disk.
func (ds *Dataset) loadFromPairs(pairs []kvPair) error {
	for _, p := range pairs {
		ds.kv.set(p.key, p.value)
	}
	for _, p := range pairs {
		if p.value == chunkSentinel {
			id := chunkID(len(ds.chunks))
			ch := newChunk(id, p.key, ds.headerFile)
			ds.chunks = append(ds.chunks, ch)
			ds.chunkByName[p.key] = ch
		}
	}
	for _, p := range pairs {
		name, attr, ok := splitHookKey(p.key)
		if !ok {
			continue
		}
		ch, exists := ds.chunkByName[name]
		if !exists {
			continue
		}
		if err := ds.applyAttrLoad(ch, attr, p.value); err != nil {
			return err
		}
	}
	for _, ch := range ds.chunks {
		ch.recomputeSize()
		if ch.hasDeclaredSize && ch.declaredSize != ch.size {
			return errs.New(errs.KindValidation, "chunk %q declares size %d but its datatype/dimensions/extent imply %d", ch.name, ch.declaredSize, ch.size)
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
		ch.checked = false
	}
	return nil
}

// applyAttrLoad is applyAttrHook's read path: same attribute grammar,
// but it mutates ch directly instead of going through the
// writable/layout-mutation gates a live SetString call requires.
func (ds *Dataset) applyAttrLoad(ch *Chunk, attr, value string) error {
	switch {
	case attr == "datatype":
		t, err := dtype.Parse(value)
		if err != nil {
			return errs.Wrap(errs.KindValidation, err, "invalid datatype token %q", value)
		}
		ch.datatype = t
	case attr == "dimensions":
		newExtent := make(map[byte]int64, len(value))
		for i := 0; i < len(value); i++ {
			axis := value[i]
			if v, ok := ch.extent[axis]; ok {
				newExtent[axis] = v
			} else {
				newExtent[axis] = 1
			}
		}
		ch.dims = value
		ch.extent = newExtent
	case len(attr) > len("extent.") && attr[:len("extent.")] == "extent.":
		axisStr := attr[len("extent."):]
		if len(axisStr) == 1 {
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 1 {
				return errs.New(errs.KindValidation, "invalid extent value %q", value)
			}
			ch.extent[axisStr[0]] = n
		}
	case attr == "offset":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return errs.New(errs.KindValidation, "invalid offset value %q", value)
		}
		ch.offset = n
	case attr == "file":
		id, err := ds.files.GetOrCreate(ds, value)
		if err != nil {
			return err
		}
		ch.file = id
	case attr == "order":
		n, err := parseOrderToken(value)
		if err != nil {
			return err
		}
		ch.order = n
	case attr == "little_endian":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || (n != 0 && n != 1) {
			return errs.New(errs.KindValidation, "little_endian must be 0 or 1")
		}
		ch.littleEndian = n == 1
	case attr == "size":
		// Derived; the declared value is cross-checked against the
		// recomputed size once the whole header has loaded, per the
		// Open Question decision in DESIGN.md (mismatches are rejected,
		// not silently corrected).
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return errs.New(errs.KindValidation, "invalid size value %q", value)
		}
		ch.declaredSize = n
		ch.hasDeclaredSize = true
	}
	return nil
}

// Close reconciles layout and data (unless read-only), writes the
// header back out, and releases every open host file.
func (ds *Dataset) Close() error {
	if ds.mode != ModeRead {
		if err := ds.flushLayout(); err != nil {
			ds.files.CloseAll()
			return ds.policy.Resolve(err)
		}
		if err := ds.writeHeader(); err != nil {
			ds.files.CloseAll()
			return ds.policy.Resolve(err)
		}
	}
	ds.files.CloseAll()
	return nil
}

// Destroy closes the dataset and unlinks every host file it owns,
// including the header file and any chunk files still referenced.
func (ds *Dataset) Destroy() error {
	ds.files.CloseAll()
	var firstErr error
	for id := range ds.files.entries {
		if err := ds.files.Destroy(fileID(id)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return ds.policy.Resolve(firstErr)
}
