// Package ring implements the wait-free single-producer/single-consumer
// byte ring protocol described by the circular_queue family in
// _examples/original_source: read/write index advancement with prescribed
// memory ordering, operating against a control block and a contiguous data
// region that has already been arranged (by the mapping engine, see
// gosuda.org/shmq/internal/shm) to appear flat across the wrap point.
//
// Ring itself never calls into the operating system. It only ever touches
// the bytes it is handed at construction time, which is what keeps every
// primitive here wait-free and bounded.
package ring

import (
	"sync/atomic"
)

// LEVEL1_DCACHE_LINESIZE mirrors the constant of the same name in
// gdc_circular_queue.c. Each index in ControlBlock gets its own line so the
// producer and the consumer never fight over a cache line.
const LEVEL1_DCACHE_LINESIZE = 64

// ControlBlock is the fixed-layout header living at the start of the mapped
// region: rpos, wpos, and properties (capacity + sync) each own a cache
// line, followed by the opaque metadata region. This is the one canonical
// ABI this module ships (see SPEC_FULL.md §1) — callers on both sides of a
// shared mapping must agree on it.
type ControlBlock struct {
	rpos     atomic.Uint64
	_        [LEVEL1_DCACHE_LINESIZE - 8]byte
	wpos     atomic.Uint64
	_        [LEVEL1_DCACHE_LINESIZE - 8]byte
	capacity atomic.Uint64
	sync     atomic.Bool
	_        [LEVEL1_DCACHE_LINESIZE - 12]byte
}

// Size is the fixed size in bytes of ControlBlock, i.e. 3 cache lines.
const Size = 3 * LEVEL1_DCACHE_LINESIZE

// Init publishes capacity last, with release ordering, so that any opener
// observing a nonzero capacity has also observed every other field this
// function set. sync is stored before the release so it is visible the
// instant capacity becomes visible.
//
// Init does not touch the metadata region — callers run their metadata
// initializer themselves, before calling Init.
func (cb *ControlBlock) Init(capacity uint64, sync bool) {
	cb.rpos.Store(0)
	cb.wpos.Store(0)
	cb.sync.Store(sync)
	cb.capacity.Store(capacity)
}

// Capacity reads the immutable capacity. A capacity of zero means the
// control block has not been published yet.
func (cb *ControlBlock) Capacity() uint64 {
	return cb.capacity.Load()
}

// Sync reports whether the producer publishes wpos with release ordering.
func (cb *ControlBlock) Sync() bool {
	return cb.sync.Load()
}

// Ring is a handle onto a ControlBlock and the double-mapped data region
// that follows it. Ring holds no knowledge of how that region was obtained;
// the mapping engine is solely responsible for arranging that any offset in
// [0, capacity) can be read or written for up to capacity-1 contiguous
// bytes, wrap or no wrap.
//
// At most one goroutine may call the producer methods (Alloc, Commit, Push)
// and at most one goroutine may call the consumer methods (Peek, Pop) at a
// time. Capacity, Empty, Available, and Space are safe for either side.
type Ring struct {
	cb   *ControlBlock
	data []byte
}

// New wraps an already-initialized control block and its data region into a
// Ring. capacity must already have been published via cb.Init (or observed
// as nonzero after an Open); data must be at least capacity bytes long with
// a second safe-to-read copy following the first capacity-1 bytes (the
// double mapping).
func New(cb *ControlBlock, data []byte) *Ring {
	return &Ring{cb: cb, data: data}
}

// Capacity returns the byte length of the data region. Immutable.
func (r *Ring) Capacity() int {
	return int(r.cb.Capacity())
}

// Empty reports whether the queue currently holds no bytes.
func (r *Ring) Empty() bool {
	rp := r.cb.rpos.Load()
	wp := r.cb.wpos.Load()
	return rp == wp
}

// Available returns the number of bytes the consumer may read right now.
// Always < Capacity.
func (r *Ring) Available() int {
	rp := r.cb.rpos.Load()
	wp := r.cb.wpos.Load()
	return available(r.Capacity(), rp, wp)
}

// Space returns the number of bytes the producer may write right now.
// Always < Capacity; one slot is permanently unusable to disambiguate empty
// from full.
func (r *Ring) Space() int {
	rp := r.cb.rpos.Load()
	wp := r.cb.wpos.Load()
	return space(r.Capacity(), rp, wp)
}

func available(capacity int, rp, wp uint64) int {
	if wp >= rp {
		return int(wp - rp)
	}
	return capacity + int(wp) - int(rp)
}

func space(capacity int, rp, wp uint64) int {
	if wp >= rp {
		return capacity - 1 - (int(wp) - int(rp))
	}
	return int(rp) - int(wp) - 1
}

// Peek returns the contiguous span of unread bytes, or ok=false if the
// queue is empty. The returned slice aliases the mapped data region and is
// valid until Pop is called; the caller must not retain it past that.
//
// Go's sync/atomic loads and stores are sequentially consistent, which is
// strictly stronger than the acquire/release pairing a producer/consumer
// handoff needs, so this always observes every byte the producer wrote
// before its matching Commit. cb.Sync() is carried for wire compatibility
// with a peer built against a weaker memory model (it is part of the
// published ABI) and does not change this method's behavior on the Go
// side.
func (r *Ring) Peek() (span []byte, ok bool) {
	rp := r.cb.rpos.Load()
	wp := r.cb.wpos.Load()
	if rp == wp {
		return nil, false
	}
	n := available(r.Capacity(), rp, wp)
	return r.data[rp : rp+uint64(n)], true
}

// Pop advances the read index by n bytes, which must be <= Available(). The
// consumer is the sole writer of rpos so a plain relaxed store suffices;
// the producer only needs eventual visibility to reclaim the freed bytes.
func (r *Ring) Pop(n int) {
	if n <= 0 {
		panic("ring: pop(n) requires n > 0")
	}
	capacity := uint64(r.Capacity())
	rp := r.cb.rpos.Load()
	rp = (rp + uint64(n)) % capacity
	r.cb.rpos.Store(rp)
}

// Alloc reserves n bytes for the producer to write and returns the
// contiguous span, or ok=false if there isn't enough space. n must be in
// (0, capacity). The returned slice aliases the mapped data region and is
// valid until Commit is called with the same n.
func (r *Ring) Alloc(n int) (span []byte, ok bool) {
	capacity := r.Capacity()
	if n <= 0 || n >= capacity {
		panic("ring: alloc(n) requires 0 < n < capacity")
	}
	rp := r.cb.rpos.Load()
	wp := r.cb.wpos.Load()
	if n > space(capacity, rp, wp) {
		return nil, false
	}
	return r.data[wp : wp+uint64(n)], true
}

// Commit publishes n previously Alloc'd bytes by advancing the write
// index. n must be the same length the producer passed to the matching
// Alloc and must be <= Space(). Same ordering note as Peek: this is always
// at least as strong as the release store a consumer needs to see the
// bytes just written.
func (r *Ring) Commit(n int) {
	capacity := r.Capacity()
	if n <= 0 || n >= capacity {
		panic("ring: commit(n) requires 0 < n < capacity")
	}
	wp := r.cb.wpos.Load()
	wp = (wp + uint64(n)) % uint64(capacity)
	r.cb.wpos.Store(wp)
}

// Push is the Alloc-then-copy-then-Commit convenience: it writes all of src
// in one shot and reports whether it fit. On failure, nothing is written.
func (r *Ring) Push(src []byte) bool {
	n := len(src)
	if n == 0 || n >= r.Capacity() {
		return false
	}
	span, ok := r.Alloc(n)
	if !ok {
		return false
	}
	copy(span, src)
	r.Commit(n)
	return true
}
