// Package filament provides shared infrastructure for the HTTP/1.x
// exchange engine: the size-classed buffer pool that owns the client
// header buffers exchanges borrow, and its metrics view.
package filament

import (
	"sync"
	"sync/atomic"
)

// Buffer size classes, powers of two from 2KB to 64KB. The 8-64KB classes
// are the sizing policy for client header buffers; the small classes serve
// scratch I/O.
const (
	BufferSize2KB  = 2 * 1024
	BufferSize4KB  = 4 * 1024
	BufferSize8KB  = 8 * 1024
	BufferSize16KB = 16 * 1024
	BufferSize32KB = 32 * 1024
	BufferSize64KB = 64 * 1024
)

var sizeClasses = []int{
	BufferSize2KB, BufferSize4KB, BufferSize8KB,
	BufferSize16KB, BufferSize32KB, BufferSize64KB,
}

// BufferPool hands out buffers by size class with hit/miss accounting.
//
// A header buffer is borrowed by one exchange for its whole lifetime and
// may be reused across sequential exchanges on the same connection, but
// never across concurrent ones; the pool enforces nothing, it only owns
// the storage between connections.
type BufferPool struct {
	classes []*sizedBufferPool // ascending by size, one per class

	totalGets atomic.Uint64
	totalPuts atomic.Uint64
}

// sizedBufferPool manages one size class.
type sizedBufferPool struct {
	size int
	pool sync.Pool

	gets     atomic.Uint64
	puts     atomic.Uint64
	misses   atomic.Uint64 // New() calls: fresh allocations
	discards atomic.Uint64 // buffers rejected on Put (wrong capacity)
}

func newSizedBufferPool(size int) *sizedBufferPool {
	sbp := &sizedBufferPool{size: size}
	sbp.pool.New = func() interface{} {
		sbp.misses.Add(1)
		buf := make([]byte, size)
		return &buf
	}
	return sbp
}

func (sbp *sizedBufferPool) get() []byte {
	sbp.gets.Add(1)
	bufPtr := sbp.pool.Get().(*[]byte)
	return (*bufPtr)[:sbp.size]
}

func (sbp *sizedBufferPool) put(buf []byte) {
	sbp.puts.Add(1)
	if cap(buf) < sbp.size {
		sbp.discards.Add(1)
		return
	}
	buf = buf[:sbp.size]
	sbp.pool.Put(&buf)
}

// NewBufferPool creates a pool with one sub-pool per size class.
func NewBufferPool() *BufferPool {
	bp := &BufferPool{classes: make([]*sizedBufferPool, len(sizeClasses))}
	for i, size := range sizeClasses {
		bp.classes[i] = newSizedBufferPool(size)
	}
	return bp
}

// Get returns a buffer of at least size bytes, drawn from the smallest
// class that satisfies it. Sizes beyond 64KB are allocated directly and
// never pooled.
//
// Allocation behavior: 0 allocs/op on hit, 2 allocs/op on miss (the buffer
// and the slice header the pool stores)
func (bp *BufferPool) Get(size int) []byte {
	bp.totalGets.Add(1)
	for _, sbp := range bp.classes {
		if size <= sbp.size {
			return sbp.get()
		}
	}
	return make([]byte, size)
}

// Put returns a buffer to the class matching its capacity. Buffers smaller
// than the smallest class or larger than the largest are discarded. The
// buffer must not be used after Put.
//
// Allocation behavior: 1 alloc/op (the slice header the pool stores)
func (bp *BufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	bp.totalPuts.Add(1)
	size := cap(buf)
	if size > bp.classes[len(bp.classes)-1].size {
		return
	}
	for i := len(bp.classes) - 1; i >= 0; i-- {
		if size >= bp.classes[i].size {
			bp.classes[i].put(buf)
			return
		}
	}
}

// ClassStats is a snapshot of one size class's counters.
type ClassStats struct {
	Size     int
	Gets     uint64
	Puts     uint64
	Hits     uint64
	Misses   uint64
	Discards uint64
}

// Stats snapshots every size class. Hits are derived as gets - misses.
func (bp *BufferPool) Stats() []ClassStats {
	stats := make([]ClassStats, len(bp.classes))
	for i, sbp := range bp.classes {
		gets := sbp.gets.Load()
		misses := sbp.misses.Load()
		stats[i] = ClassStats{
			Size:     sbp.size,
			Gets:     gets,
			Puts:     sbp.puts.Load(),
			Hits:     gets - misses,
			Misses:   misses,
			Discards: sbp.discards.Load(),
		}
	}
	return stats
}
