//go:build !windows

package ntfswatcher

import (
	"time"

	"ultrasearch/internal/scheduler"
)

// NewPlatformWatcher returns the Watcher implementation for the running
// OS. Production NTFS access is Windows-only (spec §2); non-Windows
// builds get the in-memory FakeWatcher with no volumes registered, the
// same fallback used in tests, since there is no real volume to observe.
func NewPlatformWatcher() Watcher {
	return NewFakeWatcher()
}

// NoopIdleSource implements scheduler.IdleSource for non-Windows builds,
// where there is no GetLastInputInfo equivalent wired up; it always
// reports Active.
type NoopIdleSource struct{}

func (NoopIdleSource) IdleDuration() time.Duration { return 0 }

// NewPlatformIdleSource returns the idle-detection source for the
// running OS.
func NewPlatformIdleSource() scheduler.IdleSource {
	return NoopIdleSource{}
}
