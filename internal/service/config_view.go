package service

import (
	"time"

	"ultrasearch/internal/config"
)

// snapshotConfig pulls out the handful of config.Snapshot fields the tick
// loop needs on every content-batch spawn, avoiding a repeated field-path
// walk through the nested Snapshot struct at each call site.
type snapshotConfig struct {
	contentBatchSize  int
	maxBatchBytes     uint64
	contentIndexDir   string
	jobsDir           string
	maxBytesPerFile   int64
	maxCharsPerFile   int
	ocrEnabled        bool
	ocrMaxPages       int
	extractorsEnabled []string
	workerTimeout     time.Duration
}

// defaultWorkerTimeout bounds how long the scheduler waits for one
// content-batch worker before treating it as crashed; it is not part of
// the recognized configuration surface (spec §6) since no example in the
// retrieval pack exposes a per-worker timeout as a user-facing knob.
const defaultWorkerTimeout = 5 * time.Minute

func newSnapshotConfig(snap *config.Snapshot) *snapshotConfig {
	return &snapshotConfig{
		contentBatchSize:  snap.Scheduler.ContentBatchSize,
		maxBatchBytes:     snap.Scheduler.MaxBatchBytes,
		contentIndexDir:   snap.Paths.ContentIndexDir,
		jobsDir:           snap.Paths.JobsDir,
		maxBytesPerFile:   snap.Indexing.MaxBytesPerFile,
		maxCharsPerFile:   snap.Indexing.MaxCharsPerFile,
		ocrEnabled:        snap.Indexing.OCREnabled,
		ocrMaxPages:       snap.Indexing.OCRMaxPages,
		extractorsEnabled: snap.Indexing.ExtractorsEnabled,
		workerTimeout:     defaultWorkerTimeout,
	}
}
