package mri

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pghmri/mri/errs"
)

// Size limits, grounded on the reference library's
// MRI_MAX_KEY_LENGTH / MRI_MAX_VALUE_LENGTH.
const (
	maxKeyLength   = 255
	maxValueLength = 4095
)

const chunkSentinel = "[chunk]"

// kvPair is one hash-table entry.
type kvPair struct {
	key, value string
}

// hashTable is a closed-addressing hash table with power-of-two
// bucket counts, grounded on the reference library's HashFunction and
// SetInHashTable (splus_libmri.c): rolling hash 237*h+c mod 2^23,
// growth by 4x once load factor exceeds 0.5.
type hashTable struct {
	buckets [][]*kvPair
	size    int
	count   int
}

const initialHashSize = 64

func newHashTable() *hashTable {
	return &hashTable{buckets: make([][]*kvPair, initialHashSize), size: initialHashSize}
}

func rollingHash(s string) int {
	hv := 0
	for i := 0; i < len(s); i++ {
		hv = ((237 * hv) + int(s[i])) & 0x7fffff
	}
	return hv
}

func (h *hashTable) bucketIndex(key string) int {
	return rollingHash(key) & (h.size - 1)
}

func (h *hashTable) find(key string) *kvPair {
	for _, p := range h.buckets[h.bucketIndex(key)] {
		if p.key == key {
			return p
		}
	}
	return nil
}

func (h *hashTable) set(key, value string) {
	if p := h.find(key); p != nil {
		p.value = value
		return
	}
	if 2*(h.count+1) > h.size {
		h.grow()
	}
	idx := h.bucketIndex(key)
	h.buckets[idx] = append(h.buckets[idx], &kvPair{key: key, value: value})
	h.count++
}

func (h *hashTable) grow() {
	newSize := h.size * 4
	newBuckets := make([][]*kvPair, newSize)
	for _, bucket := range h.buckets {
		for _, p := range bucket {
			idx := rollingHash(p.key) & (newSize - 1)
			newBuckets[idx] = append(newBuckets[idx], p)
		}
	}
	h.buckets = newBuckets
	h.size = newSize
}

func (h *hashTable) remove(key string) bool {
	idx := h.bucketIndex(key)
	bucket := h.buckets[idx]
	for i, p := range bucket {
		if p.key == key {
			h.buckets[idx] = append(bucket[:i], bucket[i+1:]...)
			h.count--
			return true
		}
	}
	return false
}

// keysSorted snapshots the key list into ascending lexicographic order,
// tolerating concurrent mutation of the table by later callers since
// it never aliases the live buckets.
func (h *hashTable) keysSorted() []string {
	keys := make([]string, 0, h.count)
	for _, bucket := range h.buckets {
		for _, p := range bucket {
			keys = append(keys, p.key)
		}
	}
	sort.Strings(keys)
	return keys
}

// validateKey enforces the printable-ASCII-minus-"="-and-whitespace
// rule, tab excepted, and the length cap.
func validateKey(key string) error {
	if len(key) == 0 || len(key) > maxKeyLength {
		return errs.New(errs.KindValidation, "key length %d exceeds limit", len(key))
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c == '\t' {
			continue
		}
		if c <= 0x20 || c > 0x7E || c == '=' {
			return errs.New(errs.KindValidation, "key %q contains an illegal character", key)
		}
	}
	return nil
}

func validateValue(value string) error {
	if len(value) > maxValueLength {
		return errs.New(errs.KindValidation, "value length %d exceeds limit", len(value))
	}
	return nil
}

// Has reports whether key is present.
func (ds *Dataset) Has(key string) bool {
	return ds.kv.find(key) != nil
}

// GetString returns the raw string value of key.
func (ds *Dataset) GetString(key string) (string, error) {
	p := ds.kv.find(key)
	if p == nil {
		return "", ds.policy.Resolve(errs.New(errs.KindValidation, "missing required key %q", key))
	}
	return p.value, nil
}

// GetInt parses key's value as a decimal integer.
func (ds *Dataset) GetInt(key string) (int64, error) {
	s, err := ds.GetString(key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, ds.policy.Resolve(errs.Wrap(errs.KindValidation, err, "malformed integer value for key %q", key))
	}
	return v, nil
}

// GetFloat parses key's value as a floating point number.
func (ds *Dataset) GetFloat(key string) (float64, error) {
	s, err := ds.GetString(key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, ds.policy.Resolve(errs.Wrap(errs.KindValidation, err, "malformed float value for key %q", key))
	}
	return v, nil
}

// SetString sets key to value, running the chunk hook and rejecting
// the change by restoring the prior value (or removing the key) if
// the hook refuses it.
func (ds *Dataset) SetString(key, value string) error {
	if err := ds.checkWritable(); err != nil {
		return ds.policy.Resolve(err)
	}
	if err := validateKey(key); err != nil {
		return ds.policy.Resolve(err)
	}
	if err := validateValue(value); err != nil {
		return ds.policy.Resolve(err)
	}
	prev := ds.kv.find(key)
	var prevValue string
	hadPrev := prev != nil
	if hadPrev {
		prevValue = prev.value
	}

	ok, err := ds.runSetHook(key, value, prevValue, hadPrev)
	if err != nil {
		return ds.policy.Resolve(err)
	}
	if !ok {
		return ds.policy.Resolve(errs.New(errs.KindValidation, "rejected value %q for key %q", value, key))
	}
	ds.kv.set(key, value)
	return nil
}

// SetInt sets key to the decimal string form of value.
func (ds *Dataset) SetInt(key string, value int64) error {
	return ds.SetString(key, strconv.FormatInt(value, 10))
}

// SetFloat sets key to the string form of value.
func (ds *Dataset) SetFloat(key string, value float64) error {
	return ds.SetString(key, strconv.FormatFloat(value, 'g', -1, 64))
}

// Remove deletes key, running the chunk hook (chunk destruction or
// attribute reset) first.
func (ds *Dataset) Remove(key string) error {
	if err := ds.checkWritable(); err != nil {
		return ds.policy.Resolve(err)
	}
	p := ds.kv.find(key)
	if p == nil {
		return nil
	}
	if err := ds.runRemoveHook(key, p.value); err != nil {
		return ds.policy.Resolve(err)
	}
	ds.kv.remove(key)
	return nil
}

// IterateKeys returns a snapshot of all keys in ascending lexicographic order.
func (ds *Dataset) IterateKeys() []string {
	return ds.kv.keysSorted()
}

func (ds *Dataset) checkWritable() error {
	if ds.mode == ModeRead {
		return errs.New(errs.KindState, "dataset is read-only")
	}
	if ds.mode == ModeModifyData {
		return errs.New(errs.KindState, "key mutation not permitted in modify-data-only mode")
	}
	return nil
}
