package shm

import (
	"fmt"
	"os"
	"sync/atomic"
)

// privateCounter disambiguates multiple private queues created by the same
// process in the same run, the way link.go's idGenerator disambiguates
// copy IDs within one link.
var privateCounter atomic.Uint64

// NewPrivateName generates a backing-object name guaranteed unique to this
// process, following gdc_circular_queue_factory's pid-plus-counter private
// naming scheme with the prefix renamed ("/.shmq.<pid>.<counter>") so two
// private queues never collide even if their backing object briefly
// touches the filesystem.
func NewPrivateName() string {
	pid := os.Getpid()
	n := privateCounter.Add(1)
	return fmt.Sprintf("/.shmq.%d.%d", pid, n)
}
