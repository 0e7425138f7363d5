package shmq

import (
	"errors"
	"fmt"

	"gosuda.org/shmq/internal/shm"
)

//go:generate go tool stringer -type=Kind
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindNameConflict
	KindPermissionDenied
	KindNotYetInitialized
	KindMappingFailed
	KindUnsupportedPlatform
	KindInvalidName
)

// Sentinel errors for the conditions a realization attempt can fail with.
// Builder.Get wraps the underlying failure (one of these, a mapping error
// from the engine, or the context's error) with the operation and name, so
// callers can classify with errors.Is or the Kind accessor below.
var (
	ErrNotFound            = shm.ErrNotFound
	ErrNameConflict        = shm.ErrNameConflict
	ErrPermission          = shm.ErrPermission
	ErrNotYetInitialized   = shm.ErrNotYetInitialized
	ErrUnsupportedPlatform = shm.ErrUnsupportedPlatform
	ErrInvalidName         = shm.ErrInvalidName
)

// classify maps an error observed from internal/shm to its Kind. Errors
// not recognized here (e.g. a syscall.Errno wrapped inside a
// *shm.MappingError for a reason other than permission) classify as
// KindMappingFailed when they carry a *shm.MappingError and as KindUnknown
// otherwise.
func classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNameConflict):
		return KindNameConflict
	case errors.Is(err, ErrPermission):
		return KindPermissionDenied
	case errors.Is(err, ErrNotYetInitialized):
		return KindNotYetInitialized
	case errors.Is(err, ErrUnsupportedPlatform):
		return KindUnsupportedPlatform
	case errors.Is(err, ErrInvalidName):
		return KindInvalidName
	default:
		var me *shm.MappingError
		if errors.As(err, &me) {
			return KindMappingFailed
		}
		return KindUnknown
	}
}

// realizationError wraps a lower-level error with the operation and name
// that produced it, carrying the underlying system message along.
type realizationError struct {
	op   string
	name string
	kind Kind
	err  error
}

func (e *realizationError) Error() string {
	if e.name == "" {
		return fmt.Sprintf("shmq: %s: %s", e.op, e.err)
	}
	return fmt.Sprintf("shmq: %s %q: %s", e.op, e.name, e.err)
}

func (e *realizationError) Unwrap() error { return e.err }

func (e *realizationError) Kind() Kind { return e.kind }

// KindOf reports the Kind of err, or KindUnknown if err is nil or was not
// produced by this package.
func KindOf(err error) Kind {
	var ke interface{ Kind() Kind }
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	return classify(err)
}

func wrapf(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return &realizationError{op: op, name: name, kind: classify(err), err: err}
}
