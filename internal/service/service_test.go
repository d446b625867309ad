package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ultrasearch/internal/ids"
	"ultrasearch/internal/ipcproto"
	"ultrasearch/internal/ntfswatcher"
	"ultrasearch/internal/query"
	"ultrasearch/internal/scheduler"
	"ultrasearch/pkg/models"
)

type fakeLauncher struct {
	cleanExit bool
}

func (f *fakeLauncher) Launch(ctx context.Context, batchID string, timeout time.Duration) (bool, error) {
	return f.cleanExit, nil
}

func newTestService(t *testing.T, watcher ntfswatcher.Watcher) *Service {
	t.Helper()
	if watcher == nil {
		watcher = ntfswatcher.NewFakeWatcher()
	}
	deps := Deps{
		Watcher:     watcher,
		IdleSource:  &scheduler.FakeIdleSource{},
		LoadSampler: &scheduler.FakeLoadSampler{},
		Launcher:    &fakeLauncher{cleanExit: true},
	}
	svc, err := New(t.TempDir(), deps, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestNewOpensCleanlyAndSchedulesCronJobs(t *testing.T) {
	svc := newTestService(t, nil)
	if svc.cronSched == nil {
		t.Fatal("expected cronSched to be set")
	}
	if len(svc.cronSched.Entries()) != 2 {
		t.Fatalf("expected 2 scheduled cron jobs, got %d", len(svc.cronSched.Entries()))
	}
}

func TestCloseStopsCronBeforeClosingIndices(t *testing.T) {
	svc := newTestService(t, nil)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// A second Close must not panic or hang now that the scheduler is stopped.
	_ = svc.cronSched.Stop()
}

func TestFlushMetadataWriterIsSafeToCallDirectly(t *testing.T) {
	svc := newTestService(t, nil)
	svc.flushMetadataWriter()
}

func TestRediscoverVolumesInvokesOnNewVolumeForFreshVolumes(t *testing.T) {
	watcher := ntfswatcher.NewFakeWatcher()
	svc := newTestService(t, watcher)

	var seen []models.Volume
	svc.OnNewVolume(func(v models.Volume) { seen = append(seen, v) })

	if _, err := svc.DiscoverVolumes(context.Background()); err != nil {
		t.Fatalf("DiscoverVolumes: %v", err)
	}
	if len(seen) != 0 {
		t.Fatalf("expected no hook calls before any volume exists, got %d", len(seen))
	}

	watcher.AddVolume(`\\?\Volume{new}`)
	svc.rediscoverVolumes()

	if len(seen) != 1 {
		t.Fatalf("expected OnNewVolume called once for the newly discovered volume, got %d", len(seen))
	}
	if seen[0].GUIDPath != `\\?\Volume{new}` {
		t.Fatalf("unexpected volume reported: %+v", seen[0])
	}

	// A second rediscovery with no new volumes must not re-fire the hook.
	svc.rediscoverVolumes()
	if len(seen) != 1 {
		t.Fatalf("expected hook not to fire again for an already-known volume, got %d calls", len(seen))
	}
}

func TestDrainOnShutdownReturnsPromptlyWhenWorkFinishesWithinGrace(t *testing.T) {
	svc := newTestService(t, nil)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		wg.Done()
	}()

	start := time.Now()
	canceled := false
	cancel := func() { canceled = true }
	if err := svc.drainOnShutdown(&wg, cancel, time.Second); err != nil {
		t.Fatalf("drainOnShutdown: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("drainOnShutdown took too long: %v", elapsed)
	}
	if canceled {
		t.Fatal("expected cancelWork not to be called when work finished within the grace period")
	}
}

func TestDrainOnShutdownEscalatesAfterGraceElapses(t *testing.T) {
	svc := newTestService(t, nil)
	var wg sync.WaitGroup
	wg.Add(1)
	canceled := make(chan struct{})
	cancel := func() {
		close(canceled)
		wg.Done()
	}

	done := make(chan error, 1)
	go func() { done <- svc.drainOnShutdown(&wg, cancel, 20*time.Millisecond) }()

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("expected cancelWork to be invoked after the grace period elapsed")
	}
	if err := <-done; err != nil {
		t.Fatalf("drainOnShutdown: %v", err)
	}
}

func TestHandleStatusReportsVolumeHealth(t *testing.T) {
	watcher := ntfswatcher.NewFakeWatcher()
	watcher.AddVolume(`\\?\Volume{status}`)
	svc := newTestService(t, watcher)

	if _, err := svc.DiscoverVolumes(context.Background()); err != nil {
		t.Fatalf("DiscoverVolumes: %v", err)
	}

	resp := svc.Handle(context.Background(), &ipcproto.Request{ID: "1", Kind: ipcproto.RequestStatus})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if len(resp.Status.Volumes) != 1 {
		t.Fatalf("expected 1 volume in status, got %d", len(resp.Status.Volumes))
	}
	if !resp.Status.Volumes[0].Healthy {
		t.Fatalf("expected newly discovered volume to be healthy")
	}
}

func TestHandleStatusReportsPendingJobsPerQueue(t *testing.T) {
	svc := newTestService(t, nil)

	svc.EnqueueCriticalUpdate(1, []ids.DocKey{ids.NewDocKey(1, 1)})
	svc.EnqueueMetadataRebuild(1)

	resp := svc.Handle(context.Background(), &ipcproto.Request{ID: "1", Kind: ipcproto.RequestStatus})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.Status.PendingJobs.CriticalUpdate != 1 {
		t.Fatalf("expected 1 pending critical_update job, got %d", resp.Status.PendingJobs.CriticalUpdate)
	}
	if resp.Status.PendingJobs.MetadataRebuild != 1 {
		t.Fatalf("expected 1 pending metadata_rebuild job, got %d", resp.Status.PendingJobs.MetadataRebuild)
	}
	if resp.Status.PendingJobs.ContentBatch != 0 {
		t.Fatalf("expected 0 pending content_batch jobs, got %d", resp.Status.PendingJobs.ContentBatch)
	}
}

func TestHandleConfigSetThenGetRoundTripsOnNextReload(t *testing.T) {
	svc := newTestService(t, nil)

	setResp := svc.Handle(context.Background(), &ipcproto.Request{
		ID:   "1",
		Kind: ipcproto.RequestConfigSet,
		ConfigSet: &ipcproto.ConfigSetRequest{
			Key:   "scheduler.content_batch_size",
			Value: "42",
		},
	})
	if setResp.Error != nil {
		t.Fatalf("unexpected error: %+v", setResp.Error)
	}
	if !setResp.ConfigSet.Applied {
		t.Fatal("expected Applied=true")
	}

	// Before a reload, the override must not yet be visible.
	getResp := svc.Handle(context.Background(), &ipcproto.Request{
		ID:        "2",
		Kind:      ipcproto.RequestConfigGet,
		ConfigGet: &ipcproto.ConfigGetRequest{Key: "scheduler.content_batch_size"},
	})
	if fmt.Sprint(getResp.ConfigGet.Value) == "42" {
		t.Fatal("expected the override to be pending, not yet applied, before a reload")
	}

	if err := svc.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	getResp = svc.Handle(context.Background(), &ipcproto.Request{
		ID:        "3",
		Kind:      ipcproto.RequestConfigGet,
		ConfigGet: &ipcproto.ConfigGetRequest{Key: "scheduler.content_batch_size"},
	})
	if fmt.Sprint(getResp.ConfigGet.Value) != "42" {
		t.Fatalf("expected override applied after reload, got %v", getResp.ConfigGet.Value)
	}
}

func TestHandleConfigGetUnrecognizedKeyReportsNotFound(t *testing.T) {
	svc := newTestService(t, nil)
	resp := svc.Handle(context.Background(), &ipcproto.Request{
		ID:        "1",
		Kind:      ipcproto.RequestConfigGet,
		ConfigGet: &ipcproto.ConfigGetRequest{Key: "nonexistent.key"},
	})
	if resp.ConfigGet.Found {
		t.Fatal("expected Found=false for an unrecognized key")
	}
}

func TestHandleSearchWithEmptyIndexReturnsNoHits(t *testing.T) {
	svc := newTestService(t, nil)
	resp := svc.Handle(context.Background(), &ipcproto.Request{
		ID:   "1",
		Kind: ipcproto.RequestSearch,
		Search: &ipcproto.SearchRequest{
			Query: query.NewTerm(query.TermExpr{Value: "nothing"}),
			Mode:  query.ModeNameOnly,
			Limit: 10,
		},
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if len(resp.Search.Hits) != 0 {
		t.Fatalf("expected 0 hits against an empty index, got %d", len(resp.Search.Hits))
	}
}

func TestEnqueueCriticalUpdateAndUpsertFlowThroughTick(t *testing.T) {
	svc := newTestService(t, nil)

	doc := models.MetadataDoc{
		DocKey: ids.NewDocKey(1, 7),
		Volume: 1,
		Name:   "report.docx",
		Path:   `C:\docs\report.docx`,
		Ext:    ".docx",
	}
	svc.EnqueueCriticalUpsert(1, doc)

	svc.drainMetadataQueue(svc.queues.CriticalUpdate)

	svc.flushMetadataWriter()

	resp := svc.Handle(context.Background(), &ipcproto.Request{
		ID:   "1",
		Kind: ipcproto.RequestSearch,
		Search: &ipcproto.SearchRequest{
			Query: query.NewTerm(query.TermExpr{Value: "report"}),
			Mode:  query.ModeNameOnly,
			Limit: 10,
		},
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if len(resp.Search.Hits) != 1 {
		t.Fatalf("expected the upserted doc to be found, got %d hits", len(resp.Search.Hits))
	}
}

func TestMarkVolumeUnhealthySurfacesInStatus(t *testing.T) {
	watcher := ntfswatcher.NewFakeWatcher()
	watcher.AddVolume(`\\?\Volume{unhealthy}`)
	svc := newTestService(t, watcher)

	vols, err := svc.DiscoverVolumes(context.Background())
	if err != nil {
		t.Fatalf("DiscoverVolumes: %v", err)
	}

	svc.MarkVolumeUnhealthy(vols[0].ID, "journal recreate storm")

	resp := svc.Handle(context.Background(), &ipcproto.Request{ID: "1", Kind: ipcproto.RequestStatus})
	if resp.Status.Volumes[0].Healthy {
		t.Fatal("expected volume to be reported unhealthy")
	}
	if resp.Status.Volumes[0].UnhealthyReason != "journal recreate storm" {
		t.Fatalf("unexpected reason: %q", resp.Status.Volumes[0].UnhealthyReason)
	}
}
