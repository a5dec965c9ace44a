// Package watcher reports file system changes below the sources of a
// content tree as trees.MonitorEvent values.
package watcher

import (
	"log/slog"
	"time"
)

// WatcherConfig holds configuration for the watcher
type WatcherConfig struct {
	// QueueCapacity is the capacity of the event and error channels
	QueueCapacity int

	// DebounceDelay coalesces bursts of modifications of one entry into a
	// single event. Zero disables debouncing.
	DebounceDelay time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns a default watcher configuration
func DefaultConfig() WatcherConfig {
	return WatcherConfig{
		QueueCapacity: 1000,
		DebounceDelay: 100 * time.Millisecond,
	}
}
