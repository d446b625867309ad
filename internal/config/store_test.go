package config

import "testing"

func TestStoreSetPendingAppliesOnlyAfterReload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if got := s.Load().Scheduler.ContentBatchSize; got != 1000 {
		t.Fatalf("initial ContentBatchSize = %d, want 1000", got)
	}

	s.SetPending("scheduler.content_batch_size", "77")
	if got := s.Load().Scheduler.ContentBatchSize; got != 1000 {
		t.Fatalf("ContentBatchSize changed before Reload: %d", got)
	}

	if err := s.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := s.Load().Scheduler.ContentBatchSize; got != 77 {
		t.Fatalf("ContentBatchSize after Reload = %d, want 77", got)
	}
}
