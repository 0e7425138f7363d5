package ring

import (
	"bytes"
	"testing"
)

// doubleMapped allocates a plain Go byte slice of 2*capacity bytes; tests
// call mirror after each write to copy the first half over the second,
// approximating what a real double mmap gives for free. It exists purely so
// ring_test.go can exercise Ring without the mapping engine.
type doubleMapped struct {
	cb   ControlBlock
	data []byte
}

func newDoubleMapped(capacity int, sync bool) *doubleMapped {
	dm := &doubleMapped{data: make([]byte, 2*capacity)}
	dm.cb.Init(uint64(capacity), sync)
	return dm
}

func (dm *doubleMapped) ring() *Ring {
	return New(&dm.cb, dm.data)
}

// mirror copies the first half of the data region over the second, since
// our fake backing store is just one slice without any virtual-memory
// trick. Bytes that a wrap-crossing write put in the second half are
// overwritten, not carried back to the first half.
func (dm *doubleMapped) mirror() {
	capacity := len(dm.data) / 2
	copy(dm.data[capacity:], dm.data[:capacity])
	copy(dm.data[:capacity], dm.data[capacity:2*capacity])
}

func TestCreatePushPeek(t *testing.T) {
	dm := newDoubleMapped(10*4096, true)
	r := dm.ring()

	msg := []byte("Hello World!")
	if !r.Push(msg) {
		t.Fatal("push failed")
	}
	dm.mirror()

	if got := r.Available(); got != len(msg) {
		t.Fatalf("available = %d, want %d", got, len(msg))
	}
	span, ok := r.Peek()
	if !ok {
		t.Fatal("peek returned not ok")
	}
	if !bytes.Equal(span, msg) {
		t.Fatalf("peek = %q, want %q", span, msg)
	}
}

func TestWrapStress(t *testing.T) {
	dm := newDoubleMapped(10*4096, true)
	r := dm.ring()
	msg := []byte("Hello World!")

	for i := 0; i < 100000; i++ {
		if !r.Push(msg) {
			t.Fatalf("push %d failed", i)
		}
		dm.mirror()
		r.Pop(len(msg))
	}

	bye := []byte("Bye!")
	if !r.Push(bye) {
		t.Fatal("final push failed")
	}
	dm.mirror()

	if got := r.Available(); got != len(bye) {
		t.Fatalf("available = %d, want %d", got, len(bye))
	}
	span, ok := r.Peek()
	if !ok || !bytes.Equal(span, bye) {
		t.Fatalf("peek = %q, ok=%v, want %q", span, ok, bye)
	}
}

func TestEmptyIffAvailableZero(t *testing.T) {
	dm := newDoubleMapped(64, true)
	r := dm.ring()

	if !r.Empty() {
		t.Fatal("fresh ring should be empty")
	}
	r.Push([]byte("x"))
	dm.mirror()
	if r.Empty() {
		t.Fatal("ring with one byte should not be empty")
	}
	if r.Available() == 0 {
		t.Fatal("available should be nonzero after push")
	}
}

func TestFullAtCapacityMinusOne(t *testing.T) {
	const capacity = 16
	dm := newDoubleMapped(capacity, true)
	r := dm.ring()

	fill := make([]byte, capacity-1)
	for i := range fill {
		fill[i] = byte(i)
	}
	if !r.Push(fill) {
		t.Fatal("push of capacity-1 bytes should succeed")
	}
	dm.mirror()

	if got := r.Available(); got != capacity-1 {
		t.Fatalf("available = %d, want %d", got, capacity-1)
	}
	if got := r.Space(); got != 0 {
		t.Fatalf("space = %d, want 0 when full", got)
	}
	if r.Push([]byte{0xFF}) {
		t.Fatal("push into a full queue must fail")
	}
}

func TestAllocExactSpaceSucceeds(t *testing.T) {
	const capacity = 32
	dm := newDoubleMapped(capacity, true)
	r := dm.ring()

	span, ok := r.Alloc(r.Space())
	if !ok {
		t.Fatal("alloc(space()) should succeed")
	}
	if len(span) != capacity-1 {
		t.Fatalf("alloc span len = %d, want %d", len(span), capacity-1)
	}
	r.Commit(len(span))
	dm.mirror()

	if _, ok := r.Alloc(1); ok {
		t.Fatal("further alloc on a full queue should fail")
	}
}

func TestAllocCapacityPanics(t *testing.T) {
	dm := newDoubleMapped(16, true)
	r := dm.ring()

	defer func() {
		if recover() == nil {
			t.Fatal("alloc(capacity) should panic")
		}
	}()
	r.Alloc(16)
}

func TestSpaceAvailableInvariant(t *testing.T) {
	const capacity = 8
	dm := newDoubleMapped(capacity, true)
	r := dm.ring()

	for i := 0; i < 1000; i++ {
		if r.Push([]byte{byte(i)}) {
			dm.mirror()
		}
		if got := r.Space() + r.Available(); got != capacity-1 {
			t.Fatalf("space+available = %d, want %d", got, capacity-1)
		}
		if i%3 == 0 && r.Available() > 0 {
			r.Pop(1)
		}
	}
}

func TestDoubleMappingLaw(t *testing.T) {
	const capacity = 64
	dm := newDoubleMapped(capacity, true)
	for i := range dm.data[:capacity] {
		dm.data[i] = byte(i + 1)
	}
	dm.mirror()
	for i := 0; i < capacity; i++ {
		if dm.data[i] != dm.data[i+capacity] {
			t.Fatalf("byte at %d (%d) != byte at %d (%d)", i, dm.data[i], i+capacity, dm.data[i+capacity])
		}
	}
}
