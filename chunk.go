package mri

import (
	"strconv"
	"strings"

	"github.com/pghmri/mri/dtype"
	"github.com/pghmri/mri/errs"
)

type chunkID int

// order class sentinels, grounded on the reference library's
// MRI_Order constants.
const (
	orderExternal    = -2
	orderFixedOffset = -1
)

// Chunk is the descriptor for one named N-dimensional array. desired*
// fields (embedded directly, unprefixed) are the configuration pending
// reconciliation; actual* fields mirror what is currently on disk.
type Chunk struct {
	id   chunkID
	name string

	file         fileID
	datatype     dtype.Type
	dims         string
	extent       map[byte]int64
	littleEndian bool
	order        int
	offset       int64
	size         int64

	actualFile         fileID
	actualDatatype     dtype.Type
	actualDims         string
	actualExtent       map[byte]int64
	actualLittleEndian bool
	actualOffset       int64
	actualSize         int64
	actualValid        bool // false until this chunk has ever been placed on disk

	modified      bool
	checked       bool
	repositioning bool
	removed       bool

	declaredSize    int64
	hasDeclaredSize bool
}

func defaultExtent(dims string) map[byte]int64 {
	m := make(map[byte]int64, len(dims))
	for i := 0; i < len(dims); i++ {
		m[dims[i]] = 1
	}
	return m
}

func cloneExtent(m map[byte]int64) map[byte]int64 {
	out := make(map[byte]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func newChunk(id chunkID, name string, headerFile fileID) *Chunk {
	ch := &Chunk{
		id:           id,
		name:         name,
		file:         headerFile,
		datatype:     dtype.I16,
		dims:         "xyzt",
		littleEndian: nativeLittleEndian,
		order:        0,
		offset:       0,
	}
	ch.extent = defaultExtent(ch.dims)
	ch.recomputeSize()
	return ch
}

func (ch *Chunk) extentFor(axis byte) int64 {
	if v, ok := ch.extent[axis]; ok {
		return v
	}
	return 1
}

func (ch *Chunk) recomputeSize() {
	n := int64(1)
	for i := 0; i < len(ch.dims); i++ {
		n *= ch.extentFor(ch.dims[i])
	}
	ch.size = int64(ch.datatype.Size()) * n
}

// isPlacementField reports whether the attribute affects layout, so
// the caller can flag the dataset's recompute-layout bit.
func isPlacementField(attr string) bool {
	switch attr {
	case "datatype", "dimensions", "file", "order", "offset":
		return true
	}
	return strings.HasPrefix(attr, "extent.")
}

// hookCreateChunk creates a chunk when its declaring key is set to
// "[chunk]". Idempotent if the chunk already exists.
func (ds *Dataset) hookCreateChunk(name string) (bool, error) {
	if _, ok := ds.chunkByName[name]; ok {
		return true, nil
	}
	if err := ds.checkLayoutMutationAllowed(); err != nil {
		return false, err
	}
	id := chunkID(len(ds.chunks))
	ch := newChunk(id, name, ds.headerFile)
	ds.chunks = append(ds.chunks, ch)
	ds.chunkByName[name] = ch
	ds.recomputeLayout = true
	return true, nil
}

// hookDestroyChunk implements chunk deallocation when its declaring
// key is removed.
func (ds *Dataset) hookDestroyChunk(ch *Chunk) error {
	if err := ds.checkLayoutMutationAllowed(); err != nil {
		return err
	}
	delete(ds.chunkByName, ch.name)
	ch.removed = true
	ds.recomputeLayout = true
	return nil
}

// runSetHook dispatches a key/value set to the chunk model.
// ok=false rejects the whole SetString.
func (ds *Dataset) runSetHook(key, value, prevValue string, hadPrev bool) (bool, error) {
	if value == chunkSentinel {
		return ds.hookCreateChunk(key)
	}
	name, attr, ok := splitHookKey(key)
	if !ok {
		return true, nil
	}
	ch, exists := ds.chunkByName[name]
	if !exists {
		return true, nil
	}
	return ds.applyAttrHook(ch, attr, value)
}

// runRemoveHook dispatches a key removal to the chunk model.
func (ds *Dataset) runRemoveHook(key, value string) error {
	if value == chunkSentinel {
		if ch, ok := ds.chunkByName[key]; ok {
			return ds.hookDestroyChunk(ch)
		}
		return nil
	}
	name, attr, ok := splitHookKey(key)
	if !ok {
		return nil
	}
	ch, exists := ds.chunkByName[name]
	if !exists {
		return nil
	}
	return ds.resetAttrToDefault(ch, attr)
}

func splitHookKey(key string) (name, attr string, ok bool) {
	i := strings.IndexByte(key, '.')
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

func (ds *Dataset) checkLayoutMutationAllowed() error {
	if ds.mode == ModeRead {
		return errs.New(errs.KindState, "dataset is read-only")
	}
	if ds.mode == ModeModifyData {
		return errs.New(errs.KindState, "layout mutation not permitted in modify-data-only mode")
	}
	return nil
}

// applyAttrHook mutates ch's desired state for one "<chunk>.<attr>" key.
func (ds *Dataset) applyAttrHook(ch *Chunk, attr, value string) (bool, error) {
	if isPlacementField(attr) {
		if err := ds.checkLayoutMutationAllowed(); err != nil {
			return false, err
		}
	}
	switch {
	case attr == "datatype":
		t, err := dtype.Parse(value)
		if err != nil {
			return false, errs.Wrap(errs.KindValidation, err, "invalid datatype token %q", value)
		}
		if t != ch.datatype {
			ch.datatype = t
			ch.recomputeSize()
			ch.modified = true
			ds.recomputeLayout = true
		}
		return true, nil

	case attr == "dimensions":
		if len(value) > 16 {
			return false, errs.New(errs.KindValidation, "dimension string %q exceeds 16 characters", value)
		}
		if value == ch.dims {
			return true, nil
		}
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
		ch.recomputeSize()
		ch.modified = true
		ds.recomputeLayout = true
		return true, nil

	case strings.HasPrefix(attr, "extent."):
		axisStr := strings.TrimPrefix(attr, "extent.")
		if len(axisStr) != 1 {
			return false, errs.New(errs.KindValidation, "malformed extent key %q", attr)
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 1 {
			return false, errs.New(errs.KindValidation, "invalid extent value %q", value)
		}
		if cur, ok := ch.extent[axisStr[0]]; ok && cur == n {
			return true, nil
		}
		ch.extent[axisStr[0]] = n
		ch.recomputeSize()
		ch.modified = true
		ds.recomputeLayout = true
		return true, nil

	case attr == "offset":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return false, errs.New(errs.KindValidation, "invalid offset value %q", value)
		}
		if n != ch.offset {
			ch.offset = n
			ch.modified = true
			ds.recomputeLayout = true
		}
		return true, nil

	case attr == "size":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return false, errs.New(errs.KindValidation, "invalid size value %q", value)
		}
		if n != ch.size {
			return false, errs.New(errs.KindValidation, "size is derived and may not be set directly")
		}
		return true, nil

	case attr == "file":
		id, err := ds.files.GetOrCreate(ds, value)
		if err != nil {
			return false, err
		}
		if id == ch.file {
			return true, nil
		}
		ch.file = id
		ch.modified = true
		ds.recomputeLayout = true
		return true, nil

	case attr == "order":
		n, err := parseOrderToken(value)
		if err != nil {
			return false, err
		}
		if n != ch.order {
			ch.order = n
			ch.modified = true
			ds.recomputeLayout = true
		}
		return true, nil

	case attr == "little_endian":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || (n != 0 && n != 1) {
			return false, errs.New(errs.KindValidation, "little_endian must be 0 or 1")
		}
		if (n == 1) != ch.littleEndian {
			ch.littleEndian = n == 1
			ch.modified = true
		}
		return true, nil

	default:
		// Unknown "<name>.<suffix>" key where name happens to be a
		// chunk: not a recognized attribute, treat as an ordinary key.
		return true, nil
	}
}

func parseOrderToken(value string) (int, error) {
	switch value {
	case "fixed_offset":
		return orderFixedOffset, nil
	case "external":
		return orderExternal, nil
	default:
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, errs.New(errs.KindValidation, "invalid order token %q", value)
		}
		return n, nil
	}
}

// resetAttrToDefault resets an attribute to its default when its key
// is removed, marking the chunk modified.
func (ds *Dataset) resetAttrToDefault(ch *Chunk, attr string) error {
	def := newChunk(-1, "", ds.headerFile)
	switch {
	case attr == "datatype":
		ch.datatype = def.datatype
	case attr == "dimensions":
		ch.dims = def.dims
		ch.extent = defaultExtent(def.dims)
	case strings.HasPrefix(attr, "extent."):
		axisStr := strings.TrimPrefix(attr, "extent.")
		if len(axisStr) == 1 {
			ch.extent[axisStr[0]] = 1
		}
	case attr == "offset":
		ch.offset = def.offset
	case attr == "file":
		ch.file = ds.headerFile
	case attr == "order":
		ch.order = def.order
	case attr == "little_endian":
		ch.littleEndian = def.littleEndian
	default:
		return nil
	}
	ch.recomputeSize()
	ch.modified = true
	ds.recomputeLayout = true
	return nil
}

// Chunk returns the descriptor for name, or (nil, false) if no such
// chunk is declared.
func (ds *Dataset) Chunk(name string) (*Chunk, bool) {
	ch, ok := ds.chunkByName[name]
	return ch, ok
}

// Size is the chunk's current byte size (element size times the
// product of its extents).
func (ch *Chunk) Size() int64 { return ch.size }

// Datatype is the chunk's on-disk element type.
func (ch *Chunk) Datatype() dtype.Type { return ch.datatype }

// Dimensions is the chunk's dimension label string.
func (ch *Chunk) Dimensions() string { return ch.dims }

// Extent returns the extent of one axis (1 if the axis is absent).
func (ch *Chunk) Extent(axis byte) int64 { return ch.extentFor(axis) }
