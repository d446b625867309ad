package statefile

import (
	"reflect"
	"testing"

	"ultrasearch/internal/ids"
	"ultrasearch/pkg/models"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := models.VolumeState{
		SchemaVersion:         currentSchema,
		VolumeGUID:            `\\?\Volume{abc-123}\`,
		VolumeID:              ids.VolumeId(3),
		JournalID:             0xdeadbeef,
		LastUsn:                ids.Usn(123456),
		LastMFTScanGeneration: 7,
		Settings: models.VolumeSettings{
			IncludePaths:    []string{`C:\Users`},
			ExcludePaths:    []string{`C:\Windows`, `C:\$Recycle.Bin`},
			ContentIndexing: true,
		},
	}

	if err := Save(dir, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(dir, st.VolumeGUID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, st) {
		t.Fatalf("round trip mismatch:\n got: %+v\nwant: %+v", got, st)
	}
}

func TestLoadMissingReturnsNotExist(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir, "nope"); err == nil {
		t.Fatal("expected error for missing state file")
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	st := models.VolumeState{SchemaVersion: currentSchema, VolumeGUID: "v1", LastUsn: 1}
	if err := Save(dir, st); err != nil {
		t.Fatal(err)
	}
	st.LastUsn = 2
	if err := Save(dir, st); err != nil {
		t.Fatal(err)
	}
	got, err := Load(dir, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastUsn != 2 {
		t.Fatalf("LastUsn = %d, want 2", got.LastUsn)
	}
}
