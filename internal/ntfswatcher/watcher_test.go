package ntfswatcher

import (
	"context"
	"testing"

	"ultrasearch/internal/ids"
)

func TestNeedsRebuildOnJournalIDChange(t *testing.T) {
	stored := JournalCursor{LastUsn: 1000, JournalID: 1}
	current := JournalRange{JournalID: 2, FirstUsn: 5000, NextUsn: 6000}
	if !NeedsRebuild(stored, current) {
		t.Fatal("expected rebuild on journal id change")
	}
}

func TestNeedsRebuildOnUsnOutOfRange(t *testing.T) {
	stored := JournalCursor{LastUsn: 1000, JournalID: 1}
	current := JournalRange{JournalID: 1, FirstUsn: 5000, NextUsn: 6000}
	if !NeedsRebuild(stored, current) {
		t.Fatal("expected rebuild when last_usn below first_usn")
	}
}

func TestNeedsRebuildNotNeededWhenInRange(t *testing.T) {
	stored := JournalCursor{LastUsn: 5500, JournalID: 1}
	current := JournalRange{JournalID: 1, FirstUsn: 5000, NextUsn: 6000}
	if NeedsRebuild(stored, current) {
		t.Fatal("expected no rebuild when cursor is within range")
	}
}

func TestFakeWatcherEnumerateMFT(t *testing.T) {
	w := NewFakeWatcher()
	vol := w.AddVolume(`\\?\Volume{test}\`)
	seeds := []FileMetaSeed{
		{DocKey: ids.NewDocKey(vol.ID, 0x100), Name: "a.txt", Size: 10},
		{DocKey: ids.NewDocKey(vol.ID, 0x101), Name: "b.log", Size: 20},
	}
	w.SeedMFT(vol.ID, seeds)

	next, err := w.EnumerateMFT(context.Background(), vol)
	if err != nil {
		t.Fatal(err)
	}
	var got []FileMetaSeed
	for {
		s, ok, err := next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		got = append(got, s)
	}
	if len(got) != 2 {
		t.Fatalf("got %d seeds, want 2", len(got))
	}
}

func TestFakeWatcherTailUsnOrdering(t *testing.T) {
	w := NewFakeWatcher()
	vol := w.AddVolume(`\\?\Volume{test2}\`)
	key := ids.NewDocKey(vol.ID, 0x200)

	w.AppendUsn(vol.ID, FileEvent{Kind: EventCreated, DocKey: key, Name: "c.txt"})
	w.AppendUsn(vol.ID, FileEvent{Kind: EventModified, DocKey: key})
	w.AppendUsn(vol.ID, FileEvent{Kind: EventDeleted, DocKey: key})

	events, cursor, err := w.TailUsn(context.Background(), vol, JournalCursor{}, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Kind != EventCreated || events[1].Kind != EventModified || events[2].Kind != EventDeleted {
		t.Fatalf("events out of order: %+v", events)
	}
	if cursor.LastUsn != 3 {
		t.Fatalf("cursor.LastUsn = %d, want 3", cursor.LastUsn)
	}
}

func TestFakeWatcherJournalRecreateTriggersRebuild(t *testing.T) {
	w := NewFakeWatcher()
	vol := w.AddVolume(`\\?\Volume{test3}\`)
	w.AppendUsn(vol.ID, FileEvent{Kind: EventCreated, DocKey: ids.NewDocKey(vol.ID, 1)})

	rng, err := w.JournalRange(context.Background(), vol)
	if err != nil {
		t.Fatal(err)
	}
	stored := JournalCursor{LastUsn: 1, JournalID: rng.JournalID}
	if NeedsRebuild(stored, rng) {
		t.Fatal("expected no rebuild before recreate")
	}

	w.RecreateJournal(vol.ID)
	rng2, err := w.JournalRange(context.Background(), vol)
	if err != nil {
		t.Fatal(err)
	}
	if !NeedsRebuild(stored, rng2) {
		t.Fatal("expected rebuild after journal recreate")
	}
}
