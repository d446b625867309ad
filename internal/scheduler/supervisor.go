package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ultrasearch/internal/ids"
)

// WorkerOutcome is what the supervisor learns after one worker process
// exits, sourced from its exit code and result descriptor (internal/jobfile).
type WorkerOutcome struct {
	BatchID      string
	Volume       ids.VolumeId
	Committed    bool
	LastUsn      ids.Usn
	CrashedOrTimedOut bool
	FailedFiles  []ids.DocKey
}

// QuarantineEntry records a file that exceeded MaxRetries.
type QuarantineEntry struct {
	DocKey ids.DocKey
	Reason string
	Ticks  int
}

// Supervisor implements spec §4.6's worker-supervision contract: wait for
// worker exit, consume its result, update per-volume progress, and track
// retry counts up to MaxRetries before quarantining a file. It is scoped
// to the scheduler's process lifetime; the quarantine ledger is not
// persisted across restarts (see DESIGN.md for why no storage engine is
// wired here).
type Supervisor struct {
	MaxRetries int

	mu          sync.Mutex
	retryCounts map[ids.DocKey]int
	quarantine  map[ids.DocKey]QuarantineEntry
	lastUsn     map[ids.VolumeId]ids.Usn
}

// NewSupervisor creates a Supervisor with the given retry ceiling.
func NewSupervisor(maxRetries int) *Supervisor {
	return &Supervisor{
		MaxRetries:  maxRetries,
		retryCounts: make(map[ids.DocKey]int),
		quarantine:  make(map[ids.DocKey]QuarantineEntry),
		lastUsn:     make(map[ids.VolumeId]ids.Usn),
	}
}

// Observe processes one worker's outcome: on a committed batch it advances
// last_content_indexed_usn for the volume; for every file in FailedFiles
// it increments that file's retry count and quarantines any that reached
// MaxRetries. Retry counts are not reset when a file later commits.
func (s *Supervisor) Observe(o WorkerOutcome) []QuarantineEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.Committed {
		if o.LastUsn > s.lastUsn[o.Volume] {
			s.lastUsn[o.Volume] = o.LastUsn
		}
	}

	var newlyQuarantined []QuarantineEntry
	for _, key := range o.FailedFiles {
		s.retryCounts[key]++
		if s.retryCounts[key] >= s.MaxRetries {
			entry := QuarantineEntry{
				DocKey: key,
				Reason: fmt.Sprintf("exceeded %d retries (crashed_or_timed_out=%v)", s.MaxRetries, o.CrashedOrTimedOut),
				Ticks:  s.retryCounts[key],
			}
			s.quarantine[key] = entry
			delete(s.retryCounts, key)
			newlyQuarantined = append(newlyQuarantined, entry)
		}
	}
	return newlyQuarantined
}

// LastContentIndexedUsn returns the latest committed USN for a volume.
func (s *Supervisor) LastContentIndexedUsn(vol ids.VolumeId) ids.Usn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsn[vol]
}

// Quarantined reports whether a DocKey is currently quarantined.
func (s *Supervisor) Quarantined(key ids.DocKey) (QuarantineEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.quarantine[key]
	return e, ok
}

// WorkerLauncher starts a worker process for a job descriptor and returns
// once it has exited, reporting whether it crashed or timed out.
// internal/service supplies the real os/exec-backed implementation; tests
// use a fake.
type WorkerLauncher interface {
	Launch(ctx context.Context, batchID string, timeout time.Duration) (exitedCleanly bool, err error)
}

// RunBatch launches a worker for a batch via launcher, waits for exit
// (honoring timeout), and returns the outcome constructed from the
// worker's result descriptor, read by readResult (normally
// internal/jobfile.ReadResult).
func RunBatch(ctx context.Context, launcher WorkerLauncher, vol ids.VolumeId, batchID string, timeout time.Duration, docKeys []ids.DocKey, readResult func(batchID string) (committed bool, lastUsn ids.Usn, failed []ids.DocKey, err error)) (WorkerOutcome, error) {
	exitedCleanly, err := launcher.Launch(ctx, batchID, timeout)
	if err != nil {
		return WorkerOutcome{BatchID: batchID, Volume: vol, CrashedOrTimedOut: true, FailedFiles: docKeys}, nil
	}
	if !exitedCleanly {
		return WorkerOutcome{BatchID: batchID, Volume: vol, CrashedOrTimedOut: true, FailedFiles: docKeys}, nil
	}

	committed, lastUsn, failed, err := readResult(batchID)
	if err != nil {
		return WorkerOutcome{}, fmt.Errorf("scheduler: reading worker result for batch %s: %w", batchID, err)
	}
	return WorkerOutcome{
		BatchID:   batchID,
		Volume:    vol,
		Committed: committed,
		LastUsn:   lastUsn,
		FailedFiles: failed,
	}, nil
}
