package ntfswatcher

import (
	"context"
	"sort"
	"sync"

	"ultrasearch/internal/ids"
	"ultrasearch/pkg/models"
)

// FakeWatcher is an in-memory Watcher used by tests and as the
// non-Windows build target, per the original design's explicit intent to
// keep the watcher behind a swappable trait (original_source comment:
// "to make the platform-specific implementation swap-able in tests").
// It lets tests seed an MFT snapshot and append USN records directly,
// exercising the same gap/wrap-recovery and ordering contracts the real
// Windows implementation must honor.
type FakeWatcher struct {
	mu       sync.Mutex
	volumes  map[string]*models.Volume
	nextVol  ids.VolumeId
	seeds    map[ids.VolumeId][]FileMetaSeed
	journal  map[ids.VolumeId][]journalRecord
	journalID map[ids.VolumeId]uint64
	firstUsn  map[ids.VolumeId]ids.Usn
}

type journalRecord struct {
	usn   ids.Usn
	event FileEvent
}

// NewFakeWatcher creates an empty FakeWatcher with no volumes.
func NewFakeWatcher() *FakeWatcher {
	return &FakeWatcher{
		volumes:   make(map[string]*models.Volume),
		seeds:     make(map[ids.VolumeId][]FileMetaSeed),
		journal:   make(map[ids.VolumeId][]journalRecord),
		journalID: make(map[ids.VolumeId]uint64),
		firstUsn:  make(map[ids.VolumeId]ids.Usn),
	}
}

// AddVolume registers a volume with the given GUID path, assigning a
// stable VolumeId (re-using any previously assigned id for the same GUID
// path, per spec §4.1).
func (w *FakeWatcher) AddVolume(guidPath string) models.Volume {
	w.mu.Lock()
	defer w.mu.Unlock()

	if v, ok := w.volumes[guidPath]; ok {
		return *v
	}
	w.nextVol++
	v := &models.Volume{ID: w.nextVol, GUIDPath: guidPath, ContentIndexing: true}
	w.volumes[guidPath] = v
	w.journalID[v.ID] = 1
	return *v
}

// SeedMFT sets the bulk-enumeration snapshot for a volume.
func (w *FakeWatcher) SeedMFT(vol ids.VolumeId, seeds []FileMetaSeed) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seeds[vol] = seeds
}

// AppendUsn appends a journal record at the next USN for the volume and
// returns the USN it was assigned.
func (w *FakeWatcher) AppendUsn(vol ids.VolumeId, event FileEvent) ids.Usn {
	w.mu.Lock()
	defer w.mu.Unlock()
	next := ids.Usn(len(w.journal[vol]) + 1)
	w.journal[vol] = append(w.journal[vol], journalRecord{usn: next, event: event})
	return next
}

// RecreateJournal simulates a USN journal recreate: it bumps the journal
// id and resets the visible USN window, discarding history before
// firstUsn, emulating the gap/wrap scenario in spec §4.2 and §8 scenario 4.
func (w *FakeWatcher) RecreateJournal(vol ids.VolumeId) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.journalID[vol]++
	w.firstUsn[vol] = ids.Usn(len(w.journal[vol]) + 1)
}

func (w *FakeWatcher) DiscoverVolumes(ctx context.Context) ([]models.Volume, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.Volume, 0, len(w.volumes))
	for _, v := range w.volumes {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (w *FakeWatcher) EnumerateMFT(ctx context.Context, vol models.Volume) (func() (FileMetaSeed, bool, error), error) {
	w.mu.Lock()
	seeds := append([]FileMetaSeed(nil), w.seeds[vol.ID]...)
	w.mu.Unlock()

	idx := 0
	return func() (FileMetaSeed, bool, error) {
		if ctx.Err() != nil {
			return FileMetaSeed{}, false, ctx.Err()
		}
		if idx >= len(seeds) {
			return FileMetaSeed{}, false, nil
		}
		s := seeds[idx]
		idx++
		return s, true, nil
	}, nil
}

func (w *FakeWatcher) JournalRange(ctx context.Context, vol models.Volume) (JournalRange, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	recs := w.journal[vol.ID]
	first := w.firstUsn[vol.ID]
	next := ids.Usn(len(recs) + 1)
	return JournalRange{JournalID: w.journalID[vol.ID], FirstUsn: first, NextUsn: next}, nil
}

func (w *FakeWatcher) TailUsn(ctx context.Context, vol models.Volume, cursor JournalCursor, chunkBytes int) ([]FileEvent, JournalCursor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	recs := w.journal[vol.ID]
	// chunkBytes bounds how many records we return per call, approximating
	// a byte-bounded read with a per-record cap so tests can exercise
	// multi-chunk tailing deterministically.
	maxRecords := chunkBytes / 64
	if maxRecords <= 0 {
		maxRecords = 1
	}

	var events []FileEvent
	cur := cursor.LastUsn
	count := 0
	for _, rec := range recs {
		if rec.usn <= cursor.LastUsn {
			continue
		}
		if count >= maxRecords {
			break
		}
		events = append(events, rec.event)
		cur = rec.usn
		count++
	}

	next := JournalCursor{LastUsn: cur, JournalID: w.journalID[vol.ID]}
	return events, next, nil
}

// SetSeed inserts or replaces one seed record, used by tests to make a
// file's current MFT state visible to StatFile after an AppendUsn call.
func (w *FakeWatcher) SetSeed(vol ids.VolumeId, seed FileMetaSeed) {
	w.mu.Lock()
	defer w.mu.Unlock()
	existing := w.seeds[vol]
	for i, s := range existing {
		if s.DocKey == seed.DocKey {
			existing[i] = seed
			return
		}
	}
	w.seeds[vol] = append(existing, seed)
}

func (w *FakeWatcher) StatFile(ctx context.Context, vol models.Volume, key ids.DocKey) (FileMetaSeed, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.seeds[vol.ID] {
		if s.DocKey == key {
			return s, true, nil
		}
	}
	return FileMetaSeed{}, false, nil
}

var _ Watcher = (*FakeWatcher)(nil)
