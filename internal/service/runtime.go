package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"ultrasearch/internal/ids"
	"ultrasearch/internal/jobfile"
	"ultrasearch/internal/ntfswatcher"
	"ultrasearch/internal/scheduler"
	"ultrasearch/pkg/models"
)

// Run drives the scheduler tick loop named in spec §4.6 until ctx is
// canceled: sample idle/load once per tick, run the admission matrix for
// each job kind, and dispatch whatever work each kind admits.
//
// On cancellation the loop stops admitting new work immediately but lets
// in-flight content-batch workers run to completion, up to the
// configured shutdown grace period; if they have not finished by then,
// workCtx is canceled too, which tears down any still-running worker
// subprocess (spec §4.6: "signals workers to finish current files and
// exit, and waits up to a grace period... before escalating").
func (s *Service) Run(ctx context.Context) error {
	snap := s.Config()
	interval := snap.Scheduler.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	grace := snap.Scheduler.ShutdownGracePeriod
	if grace <= 0 {
		grace = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			return s.drainOnShutdown(&wg, cancelWork, grace)
		case <-ticker.C:
			s.tick(workCtx, &wg)
		}
	}
}

// drainOnShutdown waits for outstanding workers, escalating to a forced
// cancellation after grace elapses.
func (s *Service) drainOnShutdown(wg *sync.WaitGroup, cancelWork context.CancelFunc, grace time.Duration) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		s.log.Warn().Dur("grace_period", grace).Msg("shutdown grace period elapsed, escalating")
		cancelWork()
		<-done
		return nil
	}
}

// tick is the service's config reload cycle as well as its admission
// pass: any ConfigSet override recorded since the last tick is folded
// into the Snapshot here, per the config store's "applied... reload
// pending until the next config reload cycle" contract.
func (s *Service) tick(ctx context.Context, wg *sync.WaitGroup) {
	if err := s.Reload(); err != nil {
		s.log.Warn().Err(err).Msg("reloading config")
	}
	snap := s.Config()
	idleState := s.idle.State()

	var load scheduler.SystemLoad
	if s.loadSamp != nil {
		l, err := s.loadSamp.Sample(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("sampling system load")
		} else {
			load = l
		}
	}

	if s.admitter.Tick(models.JobCriticalUpdate, idleState, load) {
		s.drainMetadataQueue(s.queues.CriticalUpdate)
	}
	if s.admitter.Tick(models.JobMetadataRebuild, idleState, load) {
		s.runOneMetadataRebuild(ctx)
	}
	if s.admitter.Tick(models.JobContentBatch, idleState, load) {
		s.spawnContentBatches(ctx, newSnapshotConfig(snap), wg)
	}
}

// drainMetadataQueue applies every currently queued critical-update job
// to the metadata writer. Deletes and upserts both flow through the same
// incremental writer, honoring the "delete-then-add" ordering within one
// batch invariant (spec §4.3) because each Job's Payload is applied in a
// single Upsert/Delete sequence per call.
func (s *Service) drainMetadataQueue(q *scheduler.Queue) {
	for {
		job, ok := q.Pop()
		if !ok {
			return
		}
		for _, key := range job.Payload.DocKeys {
			if err := s.metaWriter.Delete(key); err != nil {
				s.log.Error().Err(err).Str("doc_key", key.String()).Msg("deleting metadata doc")
			}
		}
		for _, doc := range job.Payload.Upserts {
			stale, err := s.metaWriter.Upsert(doc)
			if err != nil {
				s.log.Error().Err(err).Str("doc_key", doc.DocKey.String()).Msg("upserting metadata doc")
				continue
			}
			if stale {
				s.log.Warn().Str("doc_key", doc.DocKey.String()).Uint16("seq", doc.SeqNum).
					Msg("MFT record reused for a different file; prior doc at this key superseded")
			}
		}
	}
}

// runOneMetadataRebuild pops a single volume-rescan job and re-enumerates
// that volume's MFT, per spec §4.2's "gap/wrap triggers automatic
// rebuild." One job per tick keeps a runaway rebuild queue from starving
// the CriticalUpdate queue's latency budget.
func (s *Service) runOneMetadataRebuild(ctx context.Context) {
	job, ok := s.queues.MetadataRebuild.Pop()
	if !ok {
		return
	}

	s.mu.RLock()
	vol, found := volumeByID(s.knownVols, job.Volume)
	s.mu.RUnlock()
	if !found {
		s.log.Warn().Uint16("volume", uint16(job.Volume)).Msg("rebuild job for unknown volume, skipping")
		return
	}

	if err := s.rebuildVolumeMetadata(ctx, vol); err != nil {
		s.log.Error().Err(err).Str("volume", vol.GUIDPath).Msg("metadata rebuild failed")
		return
	}
	if err := s.metaWriter.Flush(); err != nil {
		s.log.Error().Err(err).Msg("flushing metadata writer after rebuild")
	}
}

func volumeByID(vols []models.Volume, id ids.VolumeId) (models.Volume, bool) {
	for _, v := range vols {
		if v.ID == id {
			return v, true
		}
	}
	return models.Volume{}, false
}

// rebuildVolumeMetadata enumerates the volume's MFT in full and rewrites
// every live file's metadata doc. Parent-name pairs are buffered so full
// paths can be resolved via ntfswatcher.ResolveParentChain, since
// EnumerateMFT's sequence is "lazy, non-restartable" and cannot be
// consulted twice.
func (s *Service) rebuildVolumeMetadata(ctx context.Context, vol models.Volume) error {
	if s.watcher == nil {
		return fmt.Errorf("service: no watcher configured")
	}
	next, err := s.watcher.EnumerateMFT(ctx, vol)
	if err != nil {
		return fmt.Errorf("service: enumerating MFT for %s: %w", vol.GUIDPath, err)
	}

	byFRN := make(map[ids.FileId]ntfswatcher.FileMetaSeed)
	var seeds []ntfswatcher.FileMetaSeed
	for {
		seed, ok, err := next()
		if err != nil {
			return fmt.Errorf("service: MFT enumeration: %w", err)
		}
		if !ok {
			break
		}
		seeds = append(seeds, seed)
		byFRN[seed.DocKey.FileID()] = seed
	}

	cache := ntfswatcher.NewPathCache(ntfswatcher.DefaultPathCacheCapacity)
	resolve := func(frn ids.FileId) (string, ids.FileId, bool) {
		s, ok := byFRN[frn]
		if !ok {
			return "", 0, false
		}
		return s.Name, s.ParentFRN, true
	}

	for _, seed := range seeds {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		path, ok := ntfswatcher.ResolveParentChain(cache, seed.DocKey.FileID(), resolve, string(filepath.Separator))
		if !ok {
			path = seed.Name
		}
		doc := models.MetadataDoc{
			DocKey:   seed.DocKey,
			Volume:   vol.ID,
			Name:     seed.Name,
			Path:     path,
			Ext:      filepath.Ext(seed.Name),
			Size:     seed.Size,
			Created:  time.Unix(seed.Created, 0),
			Modified: time.Unix(seed.Modified, 0),
			Flags:    seed.Flags,
			SeqNum:   seed.SeqNum,
		}
		if _, err := s.metaWriter.Upsert(doc); err != nil {
			return fmt.Errorf("service: upserting rebuilt doc %s: %w", doc.DocKey, err)
		}
	}

	vol.LastGeneration++
	if err := s.PersistVolumeState(vol); err != nil {
		s.log.Error().Err(err).Msg("persisting volume state after rebuild")
	}
	return nil
}

// spawnContentBatches drains every volume's pending-content backlog into
// batches and runs each through a worker, bounded by the content-writer
// lease (spec §4.6: "at most 1-2 outstanding").
func (s *Service) spawnContentBatches(ctx context.Context, snap *snapshotConfig, wg *sync.WaitGroup) {
	for _, vol := range s.pending.Volumes() {
		job, ok := s.pending.FormBatch(vol, snap.contentBatchSize, snap.maxBatchBytes)
		if !ok {
			continue
		}
		if !s.lease.TryAcquire() {
			s.pending.Requeue(vol, job)
			continue
		}
		wg.Add(1)
		go func(vol ids.VolumeId, job models.Job) {
			defer func() { s.lease.Release(); wg.Done() }()
			s.runContentBatch(ctx, vol, job, snap)
		}(vol, job)
	}
}

func (s *Service) runContentBatch(ctx context.Context, vol ids.VolumeId, job models.Job, snap *snapshotConfig) {
	batchID := jobfile.NewBatchID()

	desc := jobfile.Job{
		BatchID:          batchID,
		ContentIndexPath: snap.contentIndexDir,
		ExtractorConfig: jobfile.ExtractorConfig{
			MaxBytesPerFile: snap.maxBytesPerFile,
			MaxChars:        snap.maxCharsPerFile,
			OCREnabled:      snap.ocrEnabled,
			OCRMaxPages:     snap.ocrMaxPages,
			EnabledFormats:  snap.extractorsEnabled,
		},
	}
	for _, f := range job.Payload.Files {
		desc.Files = append(desc.Files, jobfile.JobFile{DocKey: f.DocKey, Path: f.Path, Ext: f.Ext, Size: f.Size, Mime: f.Mime})
	}

	if _, err := jobfile.WriteJob(snap.jobsDir, desc); err != nil {
		s.log.Error().Err(err).Str("batch_id", batchID).Msg("writing job descriptor")
		return
	}

	readResult := func(batchID string) (bool, ids.Usn, []ids.DocKey, error) {
		res, err := jobfile.ReadResult(jobfile.ResultPath(snap.jobsDir, batchID))
		if err != nil {
			return false, 0, nil, err
		}
		failed := make([]ids.DocKey, 0, len(res.Failed))
		for _, f := range res.Failed {
			failed = append(failed, f.DocKey)
		}
		return res.Committed, 0, failed, nil
	}

	outcome, err := scheduler.RunBatch(ctx, s.launcher, vol, batchID, snap.workerTimeout, job.Payload.DocKeys, readResult)
	if err != nil {
		s.log.Error().Err(err).Str("batch_id", batchID).Msg("running content batch")
		return
	}
	quarantined := s.supervisor.Observe(outcome)
	for _, q := range quarantined {
		s.log.Warn().Str("doc_key", q.DocKey.String()).Str("reason", q.Reason).Msg("file quarantined")
	}
}
