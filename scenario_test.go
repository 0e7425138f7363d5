package shmq

import (
	"bytes"
	"context"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestCreatePushPeekRoundTrip(t *testing.T) {
	b := NewPrivate(10 * 4096)
	q, err := b.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer b.Close()

	msg := []byte("Hello World!")
	if !q.Push(msg) {
		t.Fatal("push failed")
	}
	if q.Available() != len(msg) {
		t.Fatalf("available = %d, want %d", q.Available(), len(msg))
	}
	span, ok := q.Peek()
	if !ok || !bytes.Equal(span, msg) {
		t.Fatalf("peek = %q, ok=%v, want %q", span, ok, msg)
	}
}

func TestWrapAroundPreservesOrder(t *testing.T) {
	b := NewPrivate(10 * 4096)
	q, err := b.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer b.Close()

	msg := []byte("Hello World!")
	for i := 0; i < 100000; i++ {
		if !q.Push(msg) {
			t.Fatalf("push %d failed", i)
		}
		q.Pop(len(msg))
	}

	bye := []byte("Bye!")
	if !q.Push(bye) {
		t.Fatal("final push failed")
	}
	if q.Available() != len(bye) {
		t.Fatalf("available = %d, want %d", q.Available(), len(bye))
	}
	span, ok := q.Peek()
	if !ok || !bytes.Equal(span, bye) {
		t.Fatalf("peek = %q, ok=%v, want %q", span, ok, bye)
	}
}

// TestOpenRetriesUntilCreateCompletes simulates two processes (as
// goroutines) racing over a named queue: the opener starts about 20ms
// before the creator, so its first attempts find no backing object and Get
// keeps polling until the create lands and the open succeeds.
func TestOpenRetriesUntilCreateCompletes(t *testing.T) {
	name := "/shmq-test-open-race"
	t.Cleanup(func() { DeleteShared(name) })

	opener := OpenShared(name, WithPollInterval(time.Millisecond))
	var g errgroup.Group

	g.Go(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		q, err := opener.Get(ctx)
		if err != nil {
			return err
		}
		if q.Capacity() != 10*4096 {
			t.Errorf("opened capacity = %d, want %d", q.Capacity(), 10*4096)
		}
		return nil
	})

	g.Go(func() error {
		time.Sleep(20 * time.Millisecond)
		creator := NewShared(name, 10*4096)
		_, err := creator.Get(context.Background())
		return err
	})

	if err := g.Wait(); err != nil {
		t.Fatalf("race scenario failed: %v", err)
	}
}

// TestSharedQueueVisibleAcrossBuilders checks that two separate builders
// over the same name see each other's writes.
func TestSharedQueueVisibleAcrossBuilders(t *testing.T) {
	name := "/shmq-test-shared-visibility"
	t.Cleanup(func() { DeleteShared(name) })

	producerBuilder := NewShared(name, 4096)
	producer, err := producerBuilder.Get(context.Background())
	if err != nil {
		t.Fatalf("producer Get: %v", err)
	}
	defer producerBuilder.Close()

	consumerBuilder := OpenShared(name)
	consumer, err := consumerBuilder.Get(context.Background())
	if err != nil {
		t.Fatalf("consumer Get: %v", err)
	}
	defer consumerBuilder.Close()

	if !producer.Push([]byte{'a'}) {
		t.Fatal("push failed")
	}
	if consumer.Empty() {
		t.Fatal("consumer should observe the producer's write")
	}
	span, ok := consumer.Peek()
	if !ok || len(span) != 1 || span[0] != 'a' {
		t.Fatalf("peek = %v, ok=%v, want ['a']", span, ok)
	}
}

// TestPingPongRoundTrip runs two private queues and two goroutines passing
// a monotonically increasing byte back and forth.
func TestPingPongRoundTrip(t *testing.T) {
	const rounds = 200000

	pingB := NewPrivate(4096)
	pongB := NewPrivate(4096)
	ping, err := pingB.Get(context.Background())
	if err != nil {
		t.Fatalf("ping Get: %v", err)
	}
	defer pingB.Close()
	pong, err := pongB.Get(context.Background())
	if err != nil {
		t.Fatalf("pong Get: %v", err)
	}
	defer pongB.Close()

	if !ping.Push([]byte{0}) {
		t.Fatal("seed push failed")
	}

	var g errgroup.Group

	// Thread 1: reads ping, writes the successor to pong.
	g.Go(func() error {
		for i := 0; i < rounds; i++ {
			for ping.Empty() {
			}
			span, _ := ping.Peek()
			v := span[0]
			ping.Pop(1)
			for !pong.Push([]byte{v + 1}) {
			}
		}
		return nil
	})

	// Thread 2: reads pong, writes the successor to ping, and records the
	// sequence it observed.
	seen := make([]byte, 0, rounds)
	g.Go(func() error {
		for i := 0; i < rounds; i++ {
			for pong.Empty() {
			}
			span, _ := pong.Peek()
			v := span[0]
			pong.Pop(1)
			seen = append(seen, v)
			if i < rounds-1 {
				for !ping.Push([]byte{v + 1}) {
				}
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		t.Fatalf("ping-pong failed: %v", err)
	}
	if len(seen) != rounds {
		t.Fatalf("saw %d messages, want %d", len(seen), rounds)
	}
	for i, v := range seen {
		want := byte((2*i + 1) % 256)
		if v != want {
			t.Fatalf("message %d = %d, want %d", i, v, want)
		}
	}
}
