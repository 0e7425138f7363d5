package shmq

import (
	"unsafe"

	"gosuda.org/shmq/internal/ring"
	"gosuda.org/shmq/internal/shm"
)

// Queue is the public facade over the wait-free ring protocol and its
// backing mapping. A Queue holds no knowledge of how its mapping was
// obtained — Builder is solely responsible for that — it only manipulates
// the control block and the double-mapped data region the mapping engine
// arranged.
//
// At most one goroutine may call the producer methods (Alloc, Commit,
// Push, PushValue) and at most one goroutine may call the consumer
// methods (Peek, Pop) at a time. Capacity, Metadata, Empty, Available, and
// Space are safe for either side to call concurrently with the other.
type Queue struct {
	ring    *ring.Ring
	mapping *shm.Mapping
}

func newQueue(m *shm.Mapping) *Queue {
	return &Queue{
		ring:    ring.New(m.ControlBlock, m.Data),
		mapping: m,
	}
}

// Capacity returns the byte length of the data region. Immutable for the
// life of the queue.
func (q *Queue) Capacity() int {
	return q.ring.Capacity()
}

// Metadata returns the opaque metadata region reserved inside the mapping.
// Written exactly once, by the create intent's MetadataInit, before
// capacity is published; read/write thereafter by caller convention the
// queue itself does not interpret.
func (q *Queue) Metadata() []byte {
	return q.mapping.Metadata
}

// Empty reports whether the queue currently holds no bytes.
func (q *Queue) Empty() bool {
	return q.ring.Empty()
}

// Available returns the number of bytes the consumer may read right now.
func (q *Queue) Available() int {
	return q.ring.Available()
}

// Space returns the number of bytes the producer may write right now.
func (q *Queue) Space() int {
	return q.ring.Space()
}

// Peek returns the contiguous span of unread bytes, or ok=false if the
// queue is empty. The returned slice aliases the mapped data region and is
// valid until Pop is called.
func (q *Queue) Peek() (span []byte, ok bool) {
	return q.ring.Peek()
}

// Pop advances the read index by n bytes, which must be <= Available().
func (q *Queue) Pop(n int) {
	q.ring.Pop(n)
}

// Alloc reserves n bytes for the producer to write and returns the
// contiguous span, or ok=false if there isn't enough space. n must be in
// (0, Capacity()). The returned slice is valid until Commit is called with
// the same n.
func (q *Queue) Alloc(n int) (span []byte, ok bool) {
	return q.ring.Alloc(n)
}

// Commit publishes n previously Alloc'd bytes by advancing the write
// index.
func (q *Queue) Commit(n int) {
	q.ring.Commit(n)
}

// Push is the alloc-then-copy-then-commit convenience: it writes all of
// src in one shot and reports whether it fit. On failure, nothing is
// written.
func (q *Queue) Push(src []byte) bool {
	return q.ring.Push(src)
}

// PushValue pushes the raw bytes of a trivially copyable value v. T must
// not contain pointers, slices, maps, interfaces, or anything else whose
// meaning does not survive a byte-for-byte copy into another address
// space: push copies bytes, not object state.
func PushValue[T any](q *Queue, v T) bool {
	n := int(unsafe.Sizeof(v))
	b := unsafe.Slice((*byte)(unsafe.Pointer(&v)), n)
	return q.Push(b)
}
