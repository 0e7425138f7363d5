package shmq

import (
	"context"
	"errors"
	"sync"
	"time"

	"gosuda.org/shmq/internal/shm"
)

// intent is the resolved construction mode a Builder was given at
// construction time: tagged variants instead of one constructor overloaded
// by argument shape.
type intent int

const (
	intentCreateShared intent = iota
	intentOpenShared
	intentCreatePrivate
)

// Builder is a factory that holds one of three construction intents until
// the first call to Get, then holds the live mapping. Realization may block
// on system calls (create/open/map); every other Builder and Queue method
// never does.
//
// Builder is not safe to copy once Get has materialized it — the live
// mapping and the responsibility to unlink an owned name are singular. Nor
// is it safe for concurrent use: a Builder is meant to be realized once,
// by one caller, before the resulting Queue is handed to its producer and
// consumer goroutines.
type Builder struct {
	intent   intent
	name     string
	capacity uint64
	cfg      config

	mu      sync.Mutex
	mapping *shm.Mapping
	queue   *Queue
}

// NewShared builds a Builder whose first Get creates a new named shared
// queue of the given capacity.
func NewShared(name string, capacity uint64, opts ...Option) *Builder {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Builder{intent: intentCreateShared, name: name, capacity: capacity, cfg: cfg}
}

// OpenShared builds a Builder whose first Get opens an existing named
// shared queue. Options that only apply to create (WithMetadataInit) are
// ignored: opening never creates.
func OpenShared(name string, opts ...Option) *Builder {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Builder{intent: intentOpenShared, name: name, cfg: cfg}
}

// NewPrivate builds a Builder whose first Get creates a new anonymous
// private queue of the given capacity.
func NewPrivate(capacity uint64, opts ...Option) *Builder {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Builder{intent: intentCreatePrivate, capacity: capacity, cfg: cfg}
}

// Realized reports whether Get has already materialized this Builder.
func (b *Builder) Realized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue != nil
}

// CanGet reports whether a realization attempt would succeed, without any
// side effects. Already-realized builders and private intents (which can
// always create under a fresh generated name) report true unconditionally;
// named intents probe for the backing object's existence the same way
// factory.hpp's can_get does — open then immediately close.
func (b *Builder) CanGet() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.queue != nil || b.name == "" {
		return true
	}
	return shm.CanGet(b.name)
}

// Get materializes the queue, performing the system calls the chosen
// intent requires on first call only; subsequent calls return the same
// Queue. For OpenShared, Get polls at cfg.pollInterval while the backing
// object is missing or reports ErrNotYetInitialized, until ctx is done.
func (b *Builder) Get(ctx context.Context) (*Queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.queue != nil {
		return b.queue, nil
	}

	var m *shm.Mapping
	var err error

	switch b.intent {
	case intentCreateShared:
		m, err = shm.Create(b.name, b.capacity, b.cfg.sync, b.cfg.metadataInit)
		if err != nil {
			return nil, wrapf("create", b.name, err)
		}

	case intentOpenShared:
		m, err = b.openWithRetry(ctx)
		if err != nil {
			return nil, wrapf("open", b.name, err)
		}

	case intentCreatePrivate:
		name := shm.NewPrivateName()
		m, err = shm.Create(name, b.capacity, b.cfg.sync, b.cfg.metadataInit)
		if err != nil {
			return nil, wrapf("create", name, err)
		}
		// Unlink immediately after mapping so the mapping is the sole
		// reference; destruction is then by plain unmap.
		if err := shm.Unlink(name); err != nil {
			m.Unmap()
			return nil, wrapf("unlink", name, err)
		}

	default:
		panic("shmq: unknown builder intent")
	}

	b.mapping = m
	b.queue = newQueue(m)
	return b.queue, nil
}

func (b *Builder) openWithRetry(ctx context.Context) (*shm.Mapping, error) {
	for {
		m, err := shm.Open(b.name)
		if err == nil {
			return m, nil
		}
		// Treat a missing backing object the same as one whose creator
		// hasn't published capacity yet — from a poller's point of view
		// they're the same condition: the name isn't ready to open yet.
		if !errors.Is(err, shm.ErrNotYetInitialized) && !errors.Is(err, shm.ErrNotFound) {
			return nil, err
		}

		b.cfg.log("shmq: open retrying, backing object not ready", "name", b.name)

		timer := time.NewTimer(b.cfg.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Close tears down the Builder: the mapping is always unmapped; the name
// is unlinked only if this Builder created a named shared queue. Safe to
// call on an unrealized Builder (a no-op) and safe to call more than once.
func (b *Builder) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mapping == nil {
		return nil
	}
	m := b.mapping
	b.mapping = nil
	b.queue = nil

	err := m.Unmap()
	if b.intent == intentCreateShared {
		if uerr := shm.Unlink(b.name); uerr != nil && err == nil {
			err = wrapf("unlink", b.name, uerr)
		}
	}
	return err
}

// DeleteShared removes a named backing object, idempotently — a missing
// name is not an error. It exists standalone, not only as a Builder
// method, so a supervisor process can clean up a crashed peer's name
// without needing a Builder of its own.
func DeleteShared(name string) error {
	return wrapf("delete", name, shm.Unlink(name))
}
