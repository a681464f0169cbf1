package mri

import "testing"

func TestBufferPoolReusesOlderEntry(t *testing.T) {
	p := newBufferPool()
	first := p.Get(16)
	for i := 0; i < safeBufferCount; i++ {
		p.Get(16)
	}
	second := p.Get(16)
	if !samePtr(first, second) {
		t.Fatal("expected a same-size buffer older than safeBufferCount to be reused")
	}
}

func TestBufferPoolCapsActiveCount(t *testing.T) {
	p := newBufferPool()
	for i := int64(1); i <= maxBufferCount+4; i++ {
		p.Get(i)
	}
	if len(p.active) > maxBufferCount {
		t.Fatalf("active count = %d, want <= %d", len(p.active), maxBufferCount)
	}
}

func TestBufferPoolRetainProtectsFromReuse(t *testing.T) {
	p := newBufferPool()
	buf := p.Get(8)
	p.Retain(buf)
	for i := 0; i < safeBufferCount+2; i++ {
		got := p.Get(8)
		if samePtr(got, buf) {
			t.Fatal("retained buffer must not be handed out by Get")
		}
	}
	p.Discard(buf)
}
