package zio

import "sync"

// Region buffers are pooled to keep label scans from hammering the
// allocator: a single uberblock load touches 4 * UberblockCount cells per
// leaf. Size-bucketed pools with power-of-2-ish sizes matching the label
// regions (1KB cells, 8KB boot headers, 112KB phys, 256KB whole labels).
//
// Uses *[]byte pattern to avoid sync.Pool interface allocation overhead.

const (
	size1k   = 1 * 1024
	size8k   = 8 * 1024
	size112k = 112 * 1024
	size256k = 256 * 1024
)

var regionPool = struct {
	pool1k   sync.Pool
	pool8k   sync.Pool
	pool112k sync.Pool
	pool256k sync.Pool
}{
	pool1k:   sync.Pool{New: func() any { b := make([]byte, size1k); return &b }},
	pool8k:   sync.Pool{New: func() any { b := make([]byte, size8k); return &b }},
	pool112k: sync.Pool{New: func() any { b := make([]byte, size112k); return &b }},
	pool256k: sync.Pool{New: func() any { b := make([]byte, size256k); return &b }},
}

// GetBuffer returns a pooled buffer of exactly the requested size.
// Caller must call PutBuffer on every exit path, including error.
func GetBuffer(size int) []byte {
	switch {
	case size <= size1k:
		return (*regionPool.pool1k.Get().(*[]byte))[:size]
	case size <= size8k:
		return (*regionPool.pool8k.Get().(*[]byte))[:size]
	case size <= size112k:
		return (*regionPool.pool112k.Get().(*[]byte))[:size]
	case size <= size256k:
		return (*regionPool.pool256k.Get().(*[]byte))[:size]
	default:
		b := make([]byte, size)
		return b
	}
}

// PutBuffer returns a buffer to its pool. Buffers with non-bucket
// capacities are dropped for the GC.
func PutBuffer(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size1k:
		regionPool.pool1k.Put(&buf)
	case size8k:
		regionPool.pool8k.Put(&buf)
	case size112k:
		regionPool.pool112k.Put(&buf)
	case size256k:
		regionPool.pool256k.Put(&buf)
	}
}
