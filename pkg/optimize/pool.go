package optimize

import (
	"sync"
)

// BytePool is a pool of byte slices to reduce allocations for frame-sized
// scratch buffers. Slices of any length may be requested; a pooled slice is
// reused when its capacity is large enough.
type BytePool struct {
	pool    sync.Pool
	maxKeep int
}

// NewBytePool creates a new byte pool. Buffers larger than maxKeep bytes are
// not retained; zero means no limit.
func NewBytePool(maxKeep int) *BytePool {
	return &BytePool{maxKeep: maxKeep}
}

// Get returns a slice of exactly n bytes. Its contents are unspecified.
func (p *BytePool) Get(n int) []byte {
	if v := p.pool.Get(); v != nil {
		b := *(v.(*[]byte))
		if cap(b) >= n {
			return b[:n]
		}
	}
	return make([]byte, n)
}

// Put returns a byte slice to the pool
func (p *BytePool) Put(b []byte) {
	if b == nil {
		return
	}
	if p.maxKeep > 0 && cap(b) > p.maxKeep {
		return
	}
	b = b[:0]
	p.pool.Put(&b)
}

// GrowSlice grows a slice efficiently
func GrowSlice[T any](s []T, newLen int) []T {
	if newLen <= cap(s) {
		return s[:newLen]
	}

	newCap := cap(s) * 2
	if newCap < newLen {
		newCap = newLen
	}

	newSlice := make([]T, newLen, newCap)
	copy(newSlice, s)
	return newSlice
}
