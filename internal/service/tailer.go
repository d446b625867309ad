package service

import (
	"context"
	"time"

	"ultrasearch/internal/ids"
	"ultrasearch/internal/ntfswatcher"
	"ultrasearch/pkg/models"
)

// tailPollInterval bounds how often an idle tailer re-checks its volume's
// journal when TailUsn returns no new records. It is deliberately short
// relative to the scheduler tick so critical updates (renames, deletes)
// surface with low latency regardless of admission state.
const tailPollInterval = 200 * time.Millisecond

// StartTailers launches one goroutine per known volume, per spec §5's
// "one per USN tailer (one per volume)" task model. Each tailer runs
// until ctx is canceled. It also registers an OnNewVolume hook so a
// volume discovered later (spec §7's periodic rediscovery) gets its own
// tailer without a service restart.
func (s *Service) StartTailers(ctx context.Context, vols []models.Volume) {
	for _, vol := range vols {
		go s.tailVolume(ctx, vol)
	}
	s.OnNewVolume(func(vol models.Volume) {
		go s.tailVolume(ctx, vol)
	})
}

// tailVolume is one volume's USN-tailing task: it checks for gap/wrap on
// every pass, translates newly observed events into critical-update or
// content-candidate work, and persists the advanced cursor after each
// successfully consumed chunk (spec §4.2: "After each successfully
// consumed chunk the watcher publishes (new_last_usn, journal_id) for
// durable commit").
func (s *Service) tailVolume(ctx context.Context, vol models.Volume) {
	snap := s.Config()
	chunkBytes := snap.Scheduler.UsnChunkBytes

	cursor := ntfswatcher.JournalCursor{LastUsn: vol.LastUsn, JournalID: vol.JournalID}
	backoff := time.Duration(0)

	for {
		if ctx.Err() != nil {
			return
		}

		rng, err := s.watcher.JournalRange(ctx, vol)
		if err != nil {
			if !s.handleTailerError(ctx, vol, err, &backoff) {
				return
			}
			continue
		}

		if ntfswatcher.NeedsRebuild(cursor, rng) {
			s.log.Warn().Str("volume", vol.GUIDPath).Msg("USN journal gap/wrap detected, scheduling rebuild")
			s.EnqueueMetadataRebuild(vol.ID)
			cursor = ntfswatcher.JournalCursor{LastUsn: rng.NextUsn, JournalID: rng.JournalID}
			s.persistCursor(vol, cursor)
			continue
		}

		events, next, err := s.watcher.TailUsn(ctx, vol, cursor, chunkBytes)
		if err != nil {
			if !s.handleTailerError(ctx, vol, err, &backoff) {
				return
			}
			continue
		}
		backoff = 0

		if len(events) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(tailPollInterval):
			}
			continue
		}

		for _, ev := range events {
			s.applyEvent(ctx, vol, ev)
		}
		cursor = next
		s.persistCursor(vol, cursor)
	}
}

// handleTailerError applies the retry/escalation policy from spec §4.2:
// transient I/O errors back off exponentially (capped ~30s) without
// advancing last_usn; persistent failure marks the volume unhealthy and
// stops its tailer. The backoff wait is itself a suspension point, so it
// observes ctx cancellation rather than blocking shutdown (spec §5:
// "cancellation is a broadcast signal observed at every suspension
// point").
func (s *Service) handleTailerError(ctx context.Context, vol models.Volume, err error, backoff *time.Duration) bool {
	werr, ok := err.(*ntfswatcher.WatcherError)
	if ok && werr.Kind == ntfswatcher.ErrIoFatal {
		s.log.Error().Err(err).Str("volume", vol.GUIDPath).Msg("USN tailer: persistent I/O failure, disabling volume")
		s.MarkVolumeUnhealthy(vol.ID, err.Error())
		return false
	}

	if *backoff <= 0 {
		*backoff = 500 * time.Millisecond
	} else {
		*backoff *= 2
	}
	if cap := 30 * time.Second; *backoff > cap {
		*backoff = cap
	}
	s.log.Warn().Err(err).Str("volume", vol.GUIDPath).Dur("backoff", *backoff).Msg("USN tailer: transient error, retrying")
	select {
	case <-ctx.Done():
		return false
	case <-time.After(*backoff):
	}
	return true
}

func (s *Service) persistCursor(vol models.Volume, cursor ntfswatcher.JournalCursor) {
	vol.LastUsn = cursor.LastUsn
	vol.JournalID = cursor.JournalID
	s.mu.Lock()
	for i := range s.knownVols {
		if s.knownVols[i].ID == vol.ID {
			s.knownVols[i].LastUsn = cursor.LastUsn
			s.knownVols[i].JournalID = cursor.JournalID
		}
	}
	s.mu.Unlock()
	if err := s.PersistVolumeState(vol); err != nil {
		s.log.Error().Err(err).Str("volume", vol.GUIDPath).Msg("persisting journal cursor")
	}
}

// applyEvent translates one USN-derived FileEvent into a metadata
// mutation and, for volumes with content indexing enabled, a content
// candidate. Created/Modified/Renamed/BasicInfoChanged all require a
// StatFile round trip since the USN record itself only carries the
// fields that changed (spec §4.2).
func (s *Service) applyEvent(ctx context.Context, vol models.Volume, ev ntfswatcher.FileEvent) {
	switch ev.Kind {
	case ntfswatcher.EventDeleted:
		s.EnqueueCriticalUpdate(vol.ID, []ids.DocKey{ev.DocKey})
		return
	}

	seed, ok, err := s.watcher.StatFile(ctx, vol, ev.DocKey)
	if err != nil {
		s.log.Warn().Err(err).Str("volume", vol.GUIDPath).Msg("stat'ing file after USN event")
		return
	}
	if !ok {
		// Deleted between the event and the stat; treat as a delete.
		s.EnqueueCriticalUpdate(vol.ID, []ids.DocKey{ev.DocKey})
		return
	}

	path := s.resolvePath(ctx, vol, ev.DocKey, seed)

	doc := models.MetadataDoc{
		DocKey:   ev.DocKey,
		Volume:   vol.ID,
		Name:     seed.Name,
		Path:     path,
		Ext:      extOf(seed.Name),
		Size:     seed.Size,
		Created:  time.Unix(seed.Created, 0),
		Modified: time.Unix(seed.Modified, 0),
		Flags:    seed.Flags,
		SeqNum:   seed.SeqNum,
	}
	s.EnqueueCriticalUpsert(vol.ID, doc)

	if ev.Kind == ntfswatcher.EventRenamed {
		s.pathCache.Invalidate(ev.DocKey.FileID())
	}

	if !vol.ContentIndexing || doc.Flags.IsDir() {
		return
	}
	s.EnqueueContentCandidate(vol.ID, models.ContentBatchFile{
		DocKey: ev.DocKey,
		Path:   doc.Path,
		Ext:    doc.Ext,
		Size:   doc.Size,
	})
}

// resolvePath chases parent FRNs via StatFile to build a full path for a
// single incrementally-updated file, consulting the service's shared
// PathCache first (spec §4.2: "an LRU cache... accelerates repeats").
func (s *Service) resolvePath(ctx context.Context, vol models.Volume, key ids.DocKey, seed ntfswatcher.FileMetaSeed) string {
	resolve := func(frn ids.FileId) (string, ids.FileId, bool) {
		if frn == key.FileID() {
			return seed.Name, seed.ParentFRN, true
		}
		ancestorKey := ids.NewDocKey(vol.ID, frn)
		ancestorSeed, ok, err := s.watcher.StatFile(ctx, vol, ancestorKey)
		if err != nil || !ok {
			return "", 0, false
		}
		return ancestorSeed.Name, ancestorSeed.ParentFRN, true
	}
	if path, ok := ntfswatcher.ResolveParentChain(s.pathCache, key.FileID(), resolve, "\\"); ok {
		return path
	}
	return seed.Name
}

func extOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i:]
		}
		if name[i] == '/' || name[i] == '\\' {
			break
		}
	}
	return ""
}
