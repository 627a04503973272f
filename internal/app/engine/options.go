package engine

import "time"

// Options represents configuration options for the Engine.
type Options struct {
	TickInterval     time.Duration
	SnapshotInterval time.Duration
}

// DefaultEngineOptions returns the default engine options.
func DefaultEngineOptions() *Options {
	return &Options{
		TickInterval:     time.Second,
		SnapshotInterval: 30 * time.Second,
	}
}
