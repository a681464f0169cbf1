package mri

// Retention thresholds, grounded on the reference library's
// MRI_SAFE_BUFFER_COUNT / MRI_MAX_BUFFER_COUNT.
const (
	safeBufferCount = 4
	maxBufferCount  = 8
)

type pooledBuffer struct {
	buf   []byte
	stamp int
}

// bufferPool is the dataset's retention-aware scratch-buffer pool,
// grounded on yazgazan-kvstore's Pool.Alloc (scan a free list for a
// reusable entry by capacity before allocating fresh).
type bufferPool struct {
	active   []*pooledBuffer
	retained map[*pooledBuffer]bool
	clock    int
}

func newBufferPool() *bufferPool {
	return &bufferPool{retained: map[*pooledBuffer]bool{}}
}

// Get returns a buffer of exactly size bytes, reusing an
// older-than-safeBufferCount entry of the same size if one exists,
// reallocating the oldest entry if the pool is full, or allocating fresh.
func (p *bufferPool) Get(size int64) []byte {
	p.clock++
	for _, b := range p.active {
		if int64(len(b.buf)) == size && p.clock-b.stamp > safeBufferCount {
			b.stamp = p.clock
			return b.buf
		}
	}
	if len(p.active) >= maxBufferCount {
		oldest := p.active[0]
		for _, b := range p.active {
			if b.stamp < oldest.stamp {
				oldest = b
			}
		}
		oldest.buf = make([]byte, size)
		oldest.stamp = p.clock
		return oldest.buf
	}
	b := &pooledBuffer{buf: make([]byte, size), stamp: p.clock}
	p.active = append(p.active, b)
	return b.buf
}

func samePtr(a, b []byte) bool {
	return len(a) > 0 && len(b) > 0 && &a[0] == &b[0]
}

// Retain moves buf from the active list to the retained list, where
// it is pinned until the caller explicitly Discards it.
func (p *bufferPool) Retain(buf []byte) {
	for i, b := range p.active {
		if samePtr(b.buf, buf) {
			p.active = append(p.active[:i], p.active[i+1:]...)
			p.retained[b] = true
			return
		}
	}
}

// Discard frees buf iff it was retained; unretained buffers are
// silently recycled by a later Get.
func (p *bufferPool) Discard(buf []byte) {
	for b := range p.retained {
		if samePtr(b.buf, buf) {
			delete(p.retained, b)
			return
		}
	}
}
