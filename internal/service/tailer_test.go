package service

import (
	"context"
	"testing"
	"time"

	"ultrasearch/internal/ids"
	"ultrasearch/internal/ipcproto"
	"ultrasearch/internal/ntfswatcher"
	"ultrasearch/internal/query"
	"ultrasearch/pkg/models"
)

func searchRequest(value string) *ipcproto.Request {
	return &ipcproto.Request{
		ID:   "search-1",
		Kind: ipcproto.RequestSearch,
		Search: &ipcproto.SearchRequest{
			Query: query.NewTerm(query.TermExpr{Value: value}),
			Mode:  query.ModeNameOnly,
			Limit: 10,
		},
	}
}

func statusRequest() *ipcproto.Request {
	return &ipcproto.Request{ID: "status-1", Kind: ipcproto.RequestStatus}
}

func TestApplyEventUpsertsResolvedPathAndQueuesContent(t *testing.T) {
	watcher := ntfswatcher.NewFakeWatcher()
	vol := watcher.AddVolume(`\\?\Volume{tailer}`)
	vol.ContentIndexing = true

	root := ntfswatcher.FileMetaSeed{DocKey: ids.NewDocKey(vol.ID, 1), ParentFRN: 1, Name: "root", Flags: models.FlagIsDir}
	watcher.SetSeed(vol.ID, root)
	dir := ntfswatcher.FileMetaSeed{DocKey: ids.NewDocKey(vol.ID, 2), ParentFRN: 1, Name: "docs", Flags: models.FlagIsDir}
	watcher.SetSeed(vol.ID, dir)
	file := ntfswatcher.FileMetaSeed{DocKey: ids.NewDocKey(vol.ID, 3), ParentFRN: 2, Name: "report.docx", Size: 4096}
	watcher.SetSeed(vol.ID, file)

	svc := newTestService(t, watcher)
	ev := ntfswatcher.FileEvent{Kind: ntfswatcher.EventCreated, DocKey: file.DocKey, ParentFRN: 2, Name: "report.docx"}
	svc.applyEvent(context.Background(), vol, ev)

	svc.drainMetadataQueue(svc.queues.CriticalUpdate)
	svc.flushMetadataWriter()

	resp := svc.Handle(context.Background(), searchRequest("report"))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if len(resp.Search.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(resp.Search.Hits))
	}
	if resp.Search.Hits[0].Path != `root\docs\report.docx` {
		t.Fatalf("unexpected resolved path: %q", resp.Search.Hits[0].Path)
	}

	if svc.pending.Backlog(vol.ID) != 1 {
		t.Fatalf("expected content-indexable file queued as a candidate, backlog=%d", svc.pending.Backlog(vol.ID))
	}
}

func TestApplyEventDeletedEnqueuesCriticalUpdateWithoutStatFile(t *testing.T) {
	watcher := ntfswatcher.NewFakeWatcher()
	vol := watcher.AddVolume(`\\?\Volume{del}`)
	svc := newTestService(t, watcher)

	key := ids.NewDocKey(vol.ID, 9)
	doc := models.MetadataDoc{DocKey: key, Volume: vol.ID, Name: "gone.txt", Path: `C:\gone.txt`}
	if _, err := svc.metaWriter.Upsert(doc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	svc.flushMetadataWriter()

	svc.applyEvent(context.Background(), vol, ntfswatcher.FileEvent{Kind: ntfswatcher.EventDeleted, DocKey: key})
	svc.drainMetadataQueue(svc.queues.CriticalUpdate)
	svc.flushMetadataWriter()

	resp := svc.Handle(context.Background(), searchRequest("gone"))
	if len(resp.Search.Hits) != 0 {
		t.Fatalf("expected the deleted doc to be gone, got %d hits", len(resp.Search.Hits))
	}
}

func TestApplyEventTreatsVanishedFileAsDelete(t *testing.T) {
	watcher := ntfswatcher.NewFakeWatcher()
	vol := watcher.AddVolume(`\\?\Volume{vanish}`)
	svc := newTestService(t, watcher)

	key := ids.NewDocKey(vol.ID, 5)
	doc := models.MetadataDoc{DocKey: key, Volume: vol.ID, Name: "flaky.tmp", Path: `C:\flaky.tmp`}
	if _, err := svc.metaWriter.Upsert(doc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	svc.flushMetadataWriter()

	// No seed registered for this key, so StatFile reports ok=false and
	// applyEvent must fall back to treating it as a delete.
	svc.applyEvent(context.Background(), vol, ntfswatcher.FileEvent{Kind: ntfswatcher.EventModified, DocKey: key})
	svc.drainMetadataQueue(svc.queues.CriticalUpdate)
	svc.flushMetadataWriter()

	resp := svc.Handle(context.Background(), searchRequest("flaky"))
	if len(resp.Search.Hits) != 0 {
		t.Fatalf("expected the vanished file to be deleted, got %d hits", len(resp.Search.Hits))
	}
}

func TestApplyEventReusedMFTRecordSupersedesPriorDoc(t *testing.T) {
	watcher := ntfswatcher.NewFakeWatcher()
	vol := watcher.AddVolume(`\\?\Volume{reuse}`)
	svc := newTestService(t, watcher)

	key := ids.NewDocKey(vol.ID, 7)
	original := ntfswatcher.FileMetaSeed{DocKey: key, ParentFRN: 0, Name: "original.docx", SeqNum: 1}
	watcher.SetSeed(vol.ID, original)
	svc.applyEvent(context.Background(), vol, ntfswatcher.FileEvent{Kind: ntfswatcher.EventCreated, DocKey: key, SeqNum: 1, ParentFRN: 0, Name: "original.docx"})
	svc.drainMetadataQueue(svc.queues.CriticalUpdate)
	svc.flushMetadataWriter()

	resp := svc.Handle(context.Background(), searchRequest("original"))
	if len(resp.Search.Hits) != 1 {
		t.Fatalf("expected the original doc indexed, got %d hits", len(resp.Search.Hits))
	}

	// NTFS reused the same MFT record number for a different file: the
	// USN event's DocKey is unchanged but the FRN's sequence number has
	// advanced.
	reused := ntfswatcher.FileMetaSeed{DocKey: key, ParentFRN: 0, Name: "reused.pdf", SeqNum: 2}
	watcher.SetSeed(vol.ID, reused)
	svc.applyEvent(context.Background(), vol, ntfswatcher.FileEvent{Kind: ntfswatcher.EventCreated, DocKey: key, SeqNum: 2, ParentFRN: 0, Name: "reused.pdf"})
	svc.drainMetadataQueue(svc.queues.CriticalUpdate)
	svc.flushMetadataWriter()

	resp = svc.Handle(context.Background(), searchRequest("original"))
	if len(resp.Search.Hits) != 0 {
		t.Fatalf("expected the superseded doc no longer searchable, got %d hits", len(resp.Search.Hits))
	}
	resp = svc.Handle(context.Background(), searchRequest("reused"))
	if len(resp.Search.Hits) != 1 {
		t.Fatalf("expected the new file indexed at the reused key, got %d hits", len(resp.Search.Hits))
	}
}

func TestHandleTailerErrorBacksOffExponentiallyOnTransientError(t *testing.T) {
	svc := newTestService(t, nil)
	vol := models.Volume{ID: 1, GUIDPath: `\\?\Volume{backoff}`}

	backoff := time.Duration(0)
	start := time.Now()
	werr := &ntfswatcher.WatcherError{Kind: ntfswatcher.ErrIoTransient, Cause: "read timeout"}

	if !svc.handleTailerError(context.Background(), vol, werr, &backoff) {
		t.Fatal("expected transient error to keep the tailer running")
	}
	if backoff != 500*time.Millisecond {
		t.Fatalf("expected first backoff of 500ms, got %v", backoff)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Fatalf("expected handleTailerError to sleep roughly one backoff interval, elapsed=%v", elapsed)
	}

	if !svc.handleTailerError(context.Background(), vol, werr, &backoff) {
		t.Fatal("expected second transient error to keep running")
	}
	if backoff != time.Second {
		t.Fatalf("expected backoff to double to 1s, got %v", backoff)
	}
}

func TestHandleTailerErrorReturnsPromptlyWhenContextCanceled(t *testing.T) {
	svc := newTestService(t, nil)
	vol := models.Volume{ID: 1, GUIDPath: `\\?\Volume{cancel}`}

	ctx, cancel := context.WithCancel(context.Background())
	backoff := 30 * time.Second
	werr := &ntfswatcher.WatcherError{Kind: ntfswatcher.ErrIoTransient, Cause: "read timeout"}

	done := make(chan bool, 1)
	go func() { done <- svc.handleTailerError(ctx, vol, werr, &backoff) }()

	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected canceled context to stop the tailer")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handleTailerError did not observe context cancellation during backoff")
	}
}

func TestHandleTailerErrorMarksVolumeUnhealthyOnFatalError(t *testing.T) {
	watcher := ntfswatcher.NewFakeWatcher()
	vol := watcher.AddVolume(`\\?\Volume{fatal}`)
	svc := newTestService(t, watcher)
	if _, err := svc.DiscoverVolumes(context.Background()); err != nil {
		t.Fatalf("DiscoverVolumes: %v", err)
	}

	backoff := time.Duration(0)
	werr := &ntfswatcher.WatcherError{Kind: ntfswatcher.ErrIoFatal, Cause: "device removed"}
	if svc.handleTailerError(context.Background(), vol, werr, &backoff) {
		t.Fatal("expected a fatal I/O error to stop the tailer")
	}

	resp := svc.Handle(context.Background(), statusRequest())
	if resp.Status.Volumes[0].Healthy {
		t.Fatal("expected the volume to be marked unhealthy")
	}
}

func TestExtOfHandlesDotfilesAndExtensionlessNames(t *testing.T) {
	cases := map[string]string{
		"report.docx":     ".docx",
		"README":          "",
		".gitignore":      ".gitignore",
		"archive.tar.gz":  ".gz",
	}
	for name, want := range cases {
		if got := extOf(name); got != want {
			t.Errorf("extOf(%q) = %q, want %q", name, got, want)
		}
	}
}
