package engine

import "time"

// Config is the engine's own configuration: the
// pieces that shape the sink's behavior rather than the on-disk format
// (those — log_dir, index_max_items, segment_max_bytes — are CommitLog's
// concern, see internal/commitlog.Options).
type Config struct {
	// FlushInterval is the minimum gap between consecutive fsyncs while
	// dirty. Defaults to 1s.
	FlushInterval time.Duration
	// PoolCapacity is the number of reusable batch buffers. Defaults to 30.
	PoolCapacity int
	// PoolBufInitialBytes is each pooled buffer's starting capacity.
	// Defaults to 16384.
	PoolBufInitialBytes int
}

// DefaultConfig returns the engine's documented defaults.
func DefaultConfig() Config {
	return Config{
		FlushInterval:       time.Second,
		PoolCapacity:        30,
		PoolBufInitialBytes: 16384,
	}
}
