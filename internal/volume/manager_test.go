package volume

import (
	"context"
	"testing"

	"ultrasearch/internal/config"
	"ultrasearch/internal/ids"
	"ultrasearch/internal/ntfswatcher"
	"ultrasearch/internal/statefile"
	"ultrasearch/pkg/models"
)

func TestDiscoverAppliesConfigOverridesByGUID(t *testing.T) {
	w := ntfswatcher.NewFakeWatcher()
	w.AddVolume(`\\?\Volume{abc}\`)

	sections := map[string]config.VolumeSection{
		`\\?\Volume{abc}\`: {IncludePaths: []string{"C:/Users"}, ExcludePaths: []string{"C:/Windows"}, ContentIndexing: true},
	}
	m := New(w, t.TempDir(), sections)

	vols, err := m.Discover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(vols) != 1 {
		t.Fatalf("got %d volumes, want 1", len(vols))
	}
	if !vols[0].ContentIndexing || len(vols[0].IncludePaths) != 1 {
		t.Fatalf("expected overrides applied, got %+v", vols[0])
	}
}

func TestDiscoverRestoresPersistedJournalCursor(t *testing.T) {
	stateDir := t.TempDir()
	guid := `\\?\Volume{xyz}\`

	if err := statefile.Save(stateDir, models.VolumeState{
		SchemaVersion: 1,
		VolumeGUID:    guid,
		VolumeID:      ids.VolumeId(7),
		JournalID:     42,
		LastUsn:       9000,
	}); err != nil {
		t.Fatal(err)
	}

	w := ntfswatcher.NewFakeWatcher()
	w.AddVolume(guid)
	m := New(w, stateDir, nil)

	vols, err := m.Discover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(vols) != 1 {
		t.Fatalf("got %d volumes, want 1", len(vols))
	}
	if vols[0].JournalID != 42 || vols[0].LastUsn != 9000 {
		t.Fatalf("expected restored journal cursor, got %+v", vols[0])
	}
}

func TestDiscoverStableVolumeIdAcrossCalls(t *testing.T) {
	w := ntfswatcher.NewFakeWatcher()
	w.AddVolume(`\\?\Volume{stable}\`)
	m := New(w, t.TempDir(), nil)

	first, err := m.Discover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Discover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first[0].ID != second[0].ID {
		t.Fatalf("expected stable VolumeId across discoveries, got %v then %v", first[0].ID, second[0].ID)
	}
}

func TestPersistStateRoundTrip(t *testing.T) {
	stateDir := t.TempDir()
	w := ntfswatcher.NewFakeWatcher()
	w.AddVolume(`\\?\Volume{persist}\`)
	m := New(w, stateDir, nil)

	vols, err := m.Discover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	vols[0].LastUsn = 123
	vols[0].JournalID = 9
	if err := m.PersistState(vols[0]); err != nil {
		t.Fatal(err)
	}

	st, err := statefile.Load(stateDir, vols[0].GUIDPath)
	if err != nil {
		t.Fatal(err)
	}
	if st.LastUsn != 123 || st.JournalID != 9 {
		t.Fatalf("unexpected persisted state: %+v", st)
	}
}
