// Package service wires the volume manager, metadata/content indices,
// scheduler, and IPC server into the long-running ultrasearch-service
// process described in spec §2/§5: one tick loop driving admission and
// worker supervision, one IPC handler per connection answering Search,
// Status, ConfigGet, and ConfigSet requests against shared, read-only
// index readers.
package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ultrasearch/internal/config"
	"ultrasearch/internal/contentindex"
	"ultrasearch/internal/ids"
	"ultrasearch/internal/metaindex"
	"ultrasearch/internal/ntfswatcher"
	"ultrasearch/internal/query"
	"ultrasearch/internal/scheduler"
	"ultrasearch/internal/volume"
	"ultrasearch/pkg/models"
)

// Service holds every long-lived component the tick loop and IPC
// dispatcher operate on.
type Service struct {
	cfgStore *config.Store
	log      zerolog.Logger

	watcher ntfswatcher.Watcher
	volumes *volume.Manager

	metaWriter    *metaindex.Writer
	metaReader    *metaindex.Reader
	contentReader *contentindex.Reader
	orchestrator  *query.Orchestrator

	queues     *scheduler.Queues
	pending    *scheduler.PendingContent
	admitter   *scheduler.Admitter
	idle       *scheduler.IdleTracker
	loadSamp   scheduler.LoadSampler
	lease      *scheduler.ContentWriterLease
	supervisor *scheduler.Supervisor
	launcher   scheduler.WorkerLauncher
	pathCache  *ntfswatcher.PathCache
	cronSched  *cron.Cron

	mu          sync.RWMutex
	knownVols   []models.Volume
	metaHealthy bool
	contentOK   bool
	onNewVolume func(models.Volume)
}

// Deps lets tests substitute fakes for the watcher, idle source, load
// sampler, and worker launcher without touching real NTFS/process APIs.
type Deps struct {
	Watcher     ntfswatcher.Watcher
	IdleSource  scheduler.IdleSource
	LoadSampler scheduler.LoadSampler
	Launcher    scheduler.WorkerLauncher
}

// New opens every index and builds the Service, but does not yet start
// the scheduler tick loop or accept IPC connections (see Run).
func New(cfgDir string, deps Deps, log zerolog.Logger) (*Service, error) {
	store, err := config.NewStore(cfgDir)
	if err != nil {
		return nil, fmt.Errorf("service: loading config: %w", err)
	}
	snap := store.Load()

	for _, dir := range []string{snap.Paths.MetaIndexDir, snap.Paths.ContentIndexDir, snap.Paths.StateDir, snap.Paths.JobsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("service: creating %s: %w", dir, err)
		}
	}

	metaWriter, metaHealthy, err := openOrRebuildMeta(snap.Paths.MetaIndexDir, log)
	if err != nil {
		return nil, err
	}

	// The metadata reader (a second handle onto the path metaWriter just
	// opened/rebuilt) and the content reader (an entirely separate index
	// directory) have no data dependency on each other, so open them
	// concurrently rather than paying for two sequential disk round trips.
	var metaReader *metaindex.Reader
	var contentReader *contentindex.Reader
	contentOK := true
	var g errgroup.Group
	g.Go(func() error {
		r, err := metaindex.OpenReader(snap.Paths.MetaIndexDir)
		if err != nil {
			return fmt.Errorf("service: opening metadata reader: %w", err)
		}
		metaReader = r
		return nil
	})
	g.Go(func() error {
		r, err := contentindex.OpenReader(snap.Paths.ContentIndexDir)
		if err != nil {
			contentOK = false
			log.Warn().Err(err).Msg("content index unavailable; search falls back to degraded content mode")
			return nil
		}
		contentReader = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	orch := query.NewOrchestrator(metaReader, contentReader, query.DefaultBoosts())

	volMgr := volume.New(deps.Watcher, snap.Paths.StateDir, snap.Volumes)

	launcher := deps.Launcher
	if launcher == nil {
		launcher = NewProcessLauncher(snap.Paths.JobsDir, "")
	}

	svc := &Service{
		cfgStore:      store,
		log:           log,
		watcher:       deps.Watcher,
		volumes:       volMgr,
		metaWriter:    metaWriter,
		metaReader:    metaReader,
		contentReader: contentReader,
		orchestrator:  orch,
		queues:        scheduler.NewQueues(),
		pending:       scheduler.NewPendingContent(),
		admitter:      scheduler.NewAdmitter(snap.Scheduler.CPUSoftLimitPct, snap.Scheduler.CPUHardLimitPct, snap.Scheduler.HysteresisTicks),
		idle:          scheduler.NewIdleTracker(deps.IdleSource, time.Duration(snap.Scheduler.IdleWarmSeconds)*time.Second, time.Duration(snap.Scheduler.IdleDeepSeconds)*time.Second),
		loadSamp:      deps.LoadSampler,
		lease:         scheduler.NewContentWriterLease(int64(snap.Scheduler.ContentWriterLeases)),
		supervisor:    scheduler.NewSupervisor(snap.Scheduler.MaxRetries),
		launcher:      launcher,
		pathCache:     ntfswatcher.NewPathCache(ntfswatcher.DefaultPathCacheCapacity),
		metaHealthy:   metaHealthy,
		contentOK:     contentOK,
	}

	svc.cronSched = cron.New()
	if _, err := svc.cronSched.AddFunc("@every 30s", svc.flushMetadataWriter); err != nil {
		return nil, fmt.Errorf("service: scheduling metadata flush: %w", err)
	}
	if _, err := svc.cronSched.AddFunc("@every 5m", svc.rediscoverVolumes); err != nil {
		return nil, fmt.Errorf("service: scheduling volume rediscovery: %w", err)
	}
	svc.cronSched.Start()

	return svc, nil
}

// flushMetadataWriter is the cron-scheduled metadata writer flush task
// named in spec §5's task model ("one metadata writer flush task"),
// bounding how stale the metadata reader's view can get between the
// incremental writer's own commit-size/time thresholds. Since
// metaindex.Reader/contentindex.Reader only pick up new commits on an
// explicit Reload (spec §4.3: "commits made by a Writer are not visible
// until Reload is called explicitly"), this is also what makes a
// just-indexed file become searchable.
func (s *Service) flushMetadataWriter() {
	if err := s.metaWriter.Flush(); err != nil {
		s.log.Error().Err(err).Msg("periodic metadata flush")
		return
	}
	if err := s.metaReader.Reload(); err != nil {
		s.log.Error().Err(err).Msg("reloading metadata reader")
	}
	if s.contentReader != nil {
		if err := s.contentReader.Reload(); err != nil {
			s.log.Error().Err(err).Msg("reloading content reader")
		}
	}
}

// rediscoverVolumes periodically re-runs volume discovery so a volume
// mounted after startup (e.g. a USB drive) gets picked up without a
// service restart; newly discovered volumes are handed to the caller's
// tailer-starting hook via onNewVolume, if set.
func (s *Service) rediscoverVolumes() {
	s.mu.RLock()
	before := make(map[ids.VolumeId]bool, len(s.knownVols))
	for _, v := range s.knownVols {
		before[v.ID] = true
	}
	s.mu.RUnlock()

	vols, err := s.DiscoverVolumes(context.Background())
	if err != nil {
		s.log.Warn().Err(err).Msg("periodic volume rediscovery")
		return
	}

	s.mu.Lock()
	onNewVolume := s.onNewVolume
	s.mu.Unlock()
	if onNewVolume == nil {
		return
	}
	for _, v := range vols {
		if !before[v.ID] {
			s.log.Info().Str("volume", v.GUIDPath).Msg("new volume discovered, starting tailer")
			onNewVolume(v)
		}
	}
}

// OnNewVolume registers a hook invoked once per newly discovered volume
// during periodic rediscovery, used to start that volume's USN tailer
// without restarting the service.
func (s *Service) OnNewVolume(fn func(models.Volume)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNewVolume = fn
}

// openOrRebuildMeta opens the incremental writer over an existing
// metadata index, or starts a fresh bulk build if none exists yet or the
// directory is corrupt (spec §7: "renames the index directory to
// *.broken and triggers a full rebuild from MFT").
func openOrRebuildMeta(path string, log zerolog.Logger) (*metaindex.Writer, bool, error) {
	w, err := metaindex.OpenIncrementalWriter(path)
	if err == nil {
		return w, true, nil
	}

	if _, statErr := os.Stat(path); statErr == nil {
		broken := path + ".broken." + time.Now().UTC().Format("20060102T150405")
		log.Error().Err(err).Str("renamed_to", broken).Msg("metadata index corrupt on startup; rebuilding")
		if rerr := os.Rename(path, broken); rerr != nil {
			return nil, false, fmt.Errorf("service: renaming corrupt metadata index: %w", rerr)
		}
	}

	w, err = metaindex.OpenBulkWriter(path)
	if err != nil {
		return nil, false, fmt.Errorf("service: rebuilding metadata index: %w", err)
	}
	return w, false, nil
}

// Reload re-reads config.toml plus any pending ConfigSet overrides.
func (s *Service) Reload() error {
	return s.cfgStore.Reload()
}

// Config returns the Snapshot currently in effect.
func (s *Service) Config() *config.Snapshot {
	return s.cfgStore.Load()
}

// EnqueueCriticalUpdate queues a high-priority metadata mutation (USN
// delete/rename/attribute-change event), per spec §4.6.
func (s *Service) EnqueueCriticalUpdate(vol ids.VolumeId, docKeys []ids.DocKey) {
	s.queues.CriticalUpdate.Push(models.Job{Kind: models.JobCriticalUpdate, Priority: 100, Volume: vol, Payload: models.JobPayload{DocKeys: docKeys}})
}

// EnqueueCriticalUpsert queues a high-priority metadata create/update
// (USN create/rename/attribute-change event carrying a full replacement
// doc), per spec §4.6.
func (s *Service) EnqueueCriticalUpsert(vol ids.VolumeId, doc models.MetadataDoc) {
	s.queues.CriticalUpdate.Push(models.Job{Kind: models.JobCriticalUpdate, Priority: 100, Volume: vol, Payload: models.JobPayload{Upserts: []models.MetadataDoc{doc}}})
}

// EnqueueMetadataRebuild queues a full volume rescan.
func (s *Service) EnqueueMetadataRebuild(vol ids.VolumeId) {
	s.queues.MetadataRebuild.Push(models.Job{Kind: models.JobMetadataRebuild, Priority: 50, Volume: vol})
}

// EnqueueContentCandidate records one file as eligible for content
// indexing once the ContentBatch queue is admitted.
func (s *Service) EnqueueContentCandidate(vol ids.VolumeId, f models.ContentBatchFile) {
	s.pending.Add(vol, f)
}

// MarkVolumeUnhealthy disables a volume's tailer after a persistent I/O
// failure (spec §7) while leaving every other volume's indexing
// untouched.
func (s *Service) MarkVolumeUnhealthy(vol ids.VolumeId, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.knownVols {
		if s.knownVols[i].ID == vol {
			s.knownVols[i].Unhealthy = true
			s.knownVols[i].UnhealthyReason = reason
			return
		}
	}
}

// PersistVolumeState writes back a volume's journal cursor, used after
// a metadata commit advances last_usn (spec §5: "last_usn is advanced
// only after commit").
func (s *Service) PersistVolumeState(v models.Volume) error {
	return s.volumes.PersistState(v)
}

// DiscoverVolumes refreshes the known-volumes table, applying config
// overrides and restoring persisted journal cursors.
func (s *Service) DiscoverVolumes(ctx context.Context) ([]models.Volume, error) {
	vols, err := s.volumes.Discover(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.knownVols = vols
	s.mu.Unlock()
	return vols, nil
}

// Close flushes and closes every owned index handle.
func (s *Service) Close() error {
	if s.cronSched != nil {
		<-s.cronSched.Stop().Done()
	}
	var firstErr error
	if err := s.metaWriter.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.metaReader.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.contentReader != nil {
		if err := s.contentReader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
