//go:build !linux && !darwin

package shm

// Create, Open, Unlink, and CanGet have no implementation on platforms
// without a POSIX-style shm_open/mmap pair. Every call fails the same way
// rather than silently degrading to a non-shared fallback.

func Create(name string, capacity uint64, sync bool, mdInit func([]byte) error) (*Mapping, error) {
	return nil, ErrUnsupportedPlatform
}

func Open(name string) (*Mapping, error) {
	return nil, ErrUnsupportedPlatform
}

func Unlink(name string) error {
	return ErrUnsupportedPlatform
}

func CanGet(name string) bool {
	return false
}
