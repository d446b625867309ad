package scheduler

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// ContentWriterLease bounds how many content-index workers may hold the
// writer concurrently (spec §4.6: "at most 1-2 outstanding"), preventing
// the two-workers-writing-at-once scenario the invariant in spec §4.4
// forbids.
type ContentWriterLease struct {
	sem *semaphore.Weighted
}

// NewContentWriterLease creates a lease allowing up to n concurrent
// content-index workers.
func NewContentWriterLease(n int64) *ContentWriterLease {
	return &ContentWriterLease{sem: semaphore.NewWeighted(n)}
}

// Acquire blocks until a writer slot is free or ctx is done.
func (l *ContentWriterLease) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// TryAcquire attempts to take a writer slot without blocking.
func (l *ContentWriterLease) TryAcquire() bool {
	return l.sem.TryAcquire(1)
}

// Release returns a writer slot.
func (l *ContentWriterLease) Release() {
	l.sem.Release(1)
}
