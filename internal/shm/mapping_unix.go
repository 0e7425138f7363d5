//go:build linux || darwin

package shm

import (
	"fmt"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"

	"gosuda.org/shmq/internal/ring"
)

const shmDir = "/dev/shm"

func shmPath(name string) string {
	return filepath.Join(shmDir, name[1:])
}

var pageSize = uint64(unix.Getpagesize())

// Create makes a brand-new named backing object of the given capacity,
// double-maps its data region, runs mdInit against the live metadata
// region, and publishes capacity last via ControlBlock.Init — mirroring
// gdc_circular_queue_create_shared's create-then-init-then-publish order.
func Create(name string, capacity uint64, sync bool, mdInit func([]byte) error) (*Mapping, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if capacity == 0 {
		return nil, fmt.Errorf("shm: capacity must be > 0")
	}

	path := shmPath(name)

	// Unlink any existing backing object with this name before creating,
	// ignoring not-found — a stale object left by a crashed previous
	// creator must not block a fresh create.
	if err := unix.Unlink(path); err != nil && err != unix.ENOENT {
		return nil, &MappingError{Op: "create", Name: name, Err: err}
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0600)
	if err != nil {
		switch err {
		case unix.EEXIST:
			return nil, ErrNameConflict
		case unix.EACCES, unix.EPERM:
			return nil, ErrPermission
		}
		return nil, &MappingError{Op: "create", Name: name, Err: err}
	}
	defer unix.Close(fd)

	prefix := footprintBytes(capacity, pageSize)
	if err := unix.Ftruncate(fd, int64(prefix+capacity)); err != nil {
		unix.Unlink(path)
		return nil, &MappingError{Op: "ftruncate", Name: name, Err: err}
	}

	m, err := doubleMap(fd, prefix, capacity)
	if err != nil {
		unix.Unlink(path)
		return nil, &MappingError{Op: "mmap", Name: name, Err: err}
	}

	if mdInit != nil {
		if err := mdInit(m.Metadata); err != nil {
			m.Unmap()
			unix.Unlink(path)
			return nil, err
		}
	}
	m.ControlBlock.Init(capacity, sync)
	return m, nil
}

// Open attaches to an existing named backing object. If the creator has
// published a file but not yet called ControlBlock.Init, Open returns
// ErrNotYetInitialized; the caller (shmq.Builder) is responsible for
// polling until the race resolves.
func Open(name string) (*Mapping, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	path := shmPath(name)
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		switch err {
		case unix.ENOENT:
			return nil, ErrNotFound
		case unix.EACCES, unix.EPERM:
			return nil, ErrPermission
		}
		return nil, &MappingError{Op: "open", Name: name, Err: err}
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, &MappingError{Op: "fstat", Name: name, Err: err}
	}
	total := uint64(st.Size)
	if total <= pageSize {
		// A file this small cannot yet hold a full prefix + any data; the
		// creator has opened it but not yet run Create's Ftruncate.
		return nil, ErrNotYetInitialized
	}

	// capacity is unknown up front; recover it by reading the published
	// value directly out of the file before committing to a footprint,
	// since footprint depends on capacity.
	capacity, err := peekCapacity(fd)
	if err != nil {
		return nil, err
	}
	if capacity == 0 {
		return nil, ErrNotYetInitialized
	}

	prefix := footprintBytes(capacity, pageSize)
	if total != prefix+capacity {
		return nil, &MappingError{Op: "open", Name: name, Err: fmt.Errorf("backing object size %d does not match footprint(%d)+%d", total, capacity, capacity)}
	}

	m, err := doubleMap(fd, prefix, capacity)
	if err != nil {
		return nil, &MappingError{Op: "mmap", Name: name, Err: err}
	}
	if m.ControlBlock.Capacity() == 0 {
		m.Unmap()
		return nil, ErrNotYetInitialized
	}
	return m, nil
}

// peekCapacity reads the capacity field out of the backing file directly,
// without mapping it, so Open can size the real mapping correctly. The
// capacity word lives at a fixed byte offset inside ControlBlock
// (two cache lines in, see internal/ring.ControlBlock).
func peekCapacity(fd int) (uint64, error) {
	const capacityOffset = 2 * ring.LEVEL1_DCACHE_LINESIZE
	buf := make([]byte, 8)
	n, err := unix.Pread(fd, buf, int64(capacityOffset))
	if err != nil {
		return 0, &MappingError{Op: "pread", Err: err}
	}
	if n != len(buf) {
		return 0, ErrNotYetInitialized
	}
	return leUint64(buf), nil
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// Unlink removes a named backing object. Idempotent: unlinking a name that
// does not exist is not an error, matching delete_shared's behavior in
// gdc_circular_queue_factory.cpp.
func Unlink(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := unix.Unlink(shmPath(name)); err != nil && err != unix.ENOENT {
		return &MappingError{Op: "unlink", Name: name, Err: err}
	}
	return nil
}

// CanGet probes for the existence of a named backing object without
// mapping it — open-then-close, exactly factory.hpp's can_get, since a
// stat call can race a concurrent shm_unlink+shm_open pair the same way
// shm_open itself would.
func CanGet(name string) bool {
	if err := ValidateName(name); err != nil {
		return false
	}
	fd, err := unix.Open(shmPath(name), unix.O_RDONLY, 0)
	if err != nil {
		return false
	}
	unix.Close(fd)
	return true
}

// doubleMap reserves prefix+2*capacity bytes of anonymous address space and
// overlays it with two MAP_FIXED mappings of the backing object: one
// covering [0, prefix+capacity) from file offset 0 (control block plus the
// first copy of the data region) and one covering the following capacity
// bytes from file offset prefix (the second copy). Any read or write of up
// to capacity-1 contiguous bytes starting anywhere in [0, capacity) then
// lands in real, file-backed memory, wrap or no wrap.
func doubleMap(fd int, prefix, capacity uint64) (*Mapping, error) {
	total := prefix + 2*capacity

	reservation, err := unix.Mmap(-1, 0, int(total), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("reserve %d bytes: %w", total, err)
	}
	base := uintptr(unsafe.Pointer(&reservation[0]))

	if err := mmapFixed(base, prefix+capacity, fd, 0); err != nil {
		unix.Munmap(reservation)
		return nil, fmt.Errorf("map primary region: %w", err)
	}
	if err := mmapFixed(base+uintptr(prefix+capacity), capacity, fd, int64(prefix)); err != nil {
		unix.Munmap(reservation)
		return nil, fmt.Errorf("map overlay region: %w", err)
	}

	cb := (*ring.ControlBlock)(unsafe.Pointer(&reservation[0]))
	metadata := reservation[ring.Size : ring.Size+MetadataSize]
	data := reservation[prefix : prefix+2*capacity]

	m := &Mapping{
		ControlBlock: cb,
		Metadata:     metadata,
		Data:         data,
		unmap: func() error {
			if err := unix.Munmap(reservation); err != nil {
				return &MappingError{Op: "munmap", Err: err}
			}
			return nil
		},
	}
	return m, nil
}

// mmapFixed issues mmap(addr, length, PROT_READ|PROT_WRITE, MAP_SHARED|MAP_FIXED, fd, offset)
// at an exact address. golang.org/x/sys/unix's Mmap helper has no way to
// request a fixed address, so this drops one level to the raw syscall the
// helper itself wraps.
func mmapFixed(addr uintptr, length uint64, fd int, offset int64) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(length),
		uintptr(unix.PROT_READ|unix.PROT_WRITE),
		uintptr(unix.MAP_SHARED|unix.MAP_FIXED),
		uintptr(fd),
		uintptr(offset),
	)
	if errno != 0 {
		return errno
	}
	return nil
}
