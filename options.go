package shmq

import (
	"log/slog"
	"time"
)

// MetadataInit is invoked exactly once, at create time, with the live
// control block's metadata region as its argument, before capacity is
// published. A non-nil return aborts the create and unwinds (unlinks the
// name, if any).
type MetadataInit func(metadata []byte) error

// config holds the options every construction intent shares. Builder
// resolves it into a concrete mapping at Get.
type config struct {
	sync         bool
	metadataInit MetadataInit
	logger       *slog.Logger
	pollInterval time.Duration
}

func defaultConfig() config {
	return config{
		sync:         true,
		pollInterval: time.Millisecond,
	}
}

// Option configures a Builder at construction time.
type Option func(*config)

// WithSync sets the sync flag stored in the control block (default true).
// The Go ring always uses sync/atomic's sequentially consistent loads and
// stores on commit and peek, so false does not relax ordering on this side;
// the flag is carried in the shared layout only.
func WithSync(sync bool) Option {
	return func(c *config) { c.sync = sync }
}

// WithMetadataInit supplies the one-shot metadata initializer for a create
// intent (NewShared or NewPrivate). Ignored by OpenShared — opening never
// creates, so there is nothing to initialize.
func WithMetadataInit(init MetadataInit) Option {
	return func(c *config) { c.metadataInit = init }
}

// WithLogger attaches an optional diagnostics logger. A nil logger (the
// default) makes every log call on Builder a no-op; no example in this
// codebase's dependency set logs anything stronger than stdlib slog, and
// the ring protocol itself never logs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithPollInterval sets the delay between retries of Open when the backing
// object has not yet been initialized. Defaults to 1ms. Only consulted by
// Builder.Get's retry loop in OpenShared.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func (c *config) log(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, args...)
}
