// Package shm is the mapping engine and named-shared-memory lifecycle
// behind gosuda.org/shmq: it sizes a backing object, performs the double
// contiguous mapping of the data region, and tears it down. It knows
// nothing about ring indices or byte semantics — that is internal/ring's
// job — it only ever hands back a *ring.ControlBlock pointer and a data
// []byte that the caller can trust is double-mapped.
package shm

import (
	"errors"
	"fmt"
	"strings"

	"gosuda.org/shmq/internal/ring"
)

// MetadataSize is the size in bytes of the opaque metadata region carried
// inside the control block's page, following gosuda-HQQ's own convention of
// a fixed 256-byte header region ahead of ring data (internal/mpmc/mpmc.go:
// "_data := h + 256").
const MetadataSize = 256

// Sentinel errors for the conditions a mapping attempt can fail with, one
// errors.New per condition (link.go's ErrMemoryAlign, ErrInvalidSize, ...).
var (
	// ErrNotYetInitialized is returned by Open when the creator has not yet
	// published capacity. Retryable with backoff.
	ErrNotYetInitialized = errors.New("shm: backing object not yet initialized")
	// ErrNotFound is returned by Open when the named backing object does
	// not exist.
	ErrNotFound = errors.New("shm: backing object not found")
	// ErrNameConflict is returned by Create when the exclusive create finds
	// the name already taken again after the stale object was unlinked.
	ErrNameConflict = errors.New("shm: name already in use")
	// ErrPermission is returned when the underlying namespace operation
	// fails with EACCES or EPERM.
	ErrPermission = errors.New("shm: permission denied")
	// ErrInvalidName is returned when name does not follow the convention:
	// a single leading slash, no other slashes.
	ErrInvalidName = errors.New("shm: invalid backing object name")
	// ErrUnsupportedPlatform is returned on platforms without a POSIX-style
	// shared memory mapping engine.
	ErrUnsupportedPlatform = errors.New("shm: unsupported platform")
)

// MappingError wraps an underlying OS error with the operation that
// produced it, carrying a human-readable description that includes the
// underlying system message.
type MappingError struct {
	Op   string
	Name string
	Err  error
}

func (e *MappingError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("shm: %s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("shm: %s %q: %s", e.Op, e.Name, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// ValidateName checks the naming convention: a single leading slash, no
// other slashes.
func ValidateName(name string) error {
	if len(name) < 2 || name[0] != '/' {
		return ErrInvalidName
	}
	if strings.Contains(name[1:], "/") {
		return ErrInvalidName
	}
	return nil
}

// footprintBytes computes the page-aligned prefix reserved ahead of the
// data region, so the data region always starts on a page boundary:
//
//	prefix(C) = P                            if C == 0
//	prefix(C) = max(P, P + ceil((C-1)/P)*P)  otherwise
func footprintBytes(capacity, pageSize uint64) uint64 {
	if capacity == 0 {
		return pageSize
	}
	prefix := pageSize + ceilDiv(capacity-1, pageSize)*pageSize
	if prefix < pageSize {
		return pageSize
	}
	return prefix
}

// ceilDiv returns ceil(a/b) for a >= 0, b > 0, with ceil(0/b) == 0.
func ceilDiv(a, b uint64) uint64 {
	if a == 0 {
		return 0
	}
	return (a-1)/b + 1
}

// Mapping is a live double-mapped region: a control block and a data slice
// of length 2*capacity whose two halves are virtual-memory aliases of the
// same physical pages.
type Mapping struct {
	ControlBlock *ring.ControlBlock
	Metadata     []byte
	Data         []byte

	unmap func() error
}

// Unmap tears down the mapping. Safe to call more than once; the mapping is
// unusable afterward.
func (m *Mapping) Unmap() error {
	if m.unmap == nil {
		return nil
	}
	err := m.unmap()
	m.unmap = nil
	return err
}
