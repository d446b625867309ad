package contentindex

import (
	"path/filepath"
	"testing"
	"time"

	"ultrasearch/internal/ids"
	"ultrasearch/pkg/models"
)

func sampleDoc(vol ids.VolumeId, frn ids.FileId, name, content string) models.ContentDoc {
	return models.ContentDoc{
		DocKey:   ids.NewDocKey(vol, frn),
		Volume:   vol,
		Name:     name,
		Path:     "C:/docs/" + name,
		Ext:      "txt",
		Size:     uint64(len(content)),
		Modified: time.Unix(1_700_000_000, 0),
		Content:  content,
	}
}

func TestWorkerWritesThenServiceReads(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "content.bleve")

	w, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Upsert(sampleDoc(1, 1, "report.txt", "quarterly budget figures and projections")); err != nil {
		t.Fatal(err)
	}
	if err := w.Upsert(sampleDoc(1, 2, "notes.txt", "grocery list: milk, eggs, bread")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := OpenReader(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	hits, _, err := r.Search(ContentQuery("budget"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
}

func TestUpsertIsIdempotentReplace(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "content.bleve")
	key := ids.NewDocKey(2, 5)

	w, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	doc := sampleDoc(2, 5, "a.txt", "original content body")
	if err := w.Upsert(doc); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	w2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	updated := doc
	updated.Content = "replaced content body entirely"
	if err := w2.Upsert(updated); err != nil {
		t.Fatal(err)
	}
	if err := w2.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := OpenReader(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	hits, _, err := r.Search(ContentQuery("original"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Fatal("expected the old content to have been replaced, not merged")
	}
	hits, _, err = r.Search(ContentQuery("replaced"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].DocKey != key {
		t.Fatalf("expected replaced content to be found under the same DocKey, got %+v", hits)
	}
}
