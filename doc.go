// Package shmq implements a wait-free, single-producer/single-consumer
// byte-oriented ring buffer backed by shared memory mapped twice
// contiguously in the process's address space, so that any span of bytes
// up to the buffer's capacity appears as a single flat region with no
// wrap-around branch on read or write.
//
// Two flavors are exposed: a named shared queue, whose backing object
// lives in a system-global shared-memory namespace and may be opened by
// cooperating processes, and a private queue, which uses the same
// representation but is anonymous and bound to its creator's lifetime. A
// small opaque metadata region is reserved inside the mapping and
// initialized once, at creation, by a caller-supplied callback.
//
//	b := shmq.NewShared("/orders", 1<<20)
//	q, err := b.Get(context.Background())
//	if err != nil {
//		// ...
//	}
//	defer b.Close()
//
//	q.Push([]byte("hello"))
//	span, ok := q.Peek()
package shmq
