package guard

import (
	"context"
	"sync"
	"time"
)

// WindowCounter records timestamped events per key and counts them over a
// trailing window. Implementations must make Record and Count individually
// atomic so concurrent sessions of different users never lose increments.
type WindowCounter interface {
	Record(ctx context.Context, key string, at time.Time) error
	Count(ctx context.Context, key string, since time.Time) (int, error)
}

// MemoryWindowCounter is a sliding-window counter kept in process memory.
// Events older than retention are pruned on write.
type MemoryWindowCounter struct {
	mu        sync.Mutex
	windows   map[string][]time.Time
	retention time.Duration
}

// NewMemoryWindowCounter creates a counter that remembers events for retention.
func NewMemoryWindowCounter(retention time.Duration) *MemoryWindowCounter {
	return &MemoryWindowCounter{
		windows:   make(map[string][]time.Time),
		retention: retention,
	}
}

// Record appends an event at time at.
func (c *MemoryWindowCounter) Record(_ context.Context, key string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := at.Add(-c.retention)
	entries := c.windows[key]
	valid := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	c.windows[key] = append(valid, at)
	return nil
}

// Count returns the number of events strictly after since.
func (c *MemoryWindowCounter) Count(_ context.Context, key string, since time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.windows[key] {
		if t.After(since) {
			n++
		}
	}
	return n, nil
}

// Keys returns the number of tracked keys.
func (c *MemoryWindowCounter) Keys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}
