package contentindex

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"

	"ultrasearch/internal/ids"
	"ultrasearch/pkg/models"
)

// WriterConfig matches the per-worker configuration named in spec §4.4.
type WriterConfig struct {
	HeapBytes        int
	IndexThreads     int
	SegmentTarget    int
	MaxMergedSegment int
}

// DefaultWriterConfig uses a 128MiB heap, inside the spec's 64-256MiB heap
// range, suitable for a batch of content_batch_size default (1000) files.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		HeapBytes:        128 * 1024 * 1024,
		IndexThreads:     4,
		SegmentTarget:    128 * 1024 * 1024,
		MaxMergedSegment: 256 * 1024 * 1024,
	}
}

// Writer is the worker-only content-index writer. A worker opens one,
// indexes its job batch, commits once via Close, and exits: per spec
// §4.4's exclusivity invariant, the scheduler's content-writer lease
// (internal/scheduler.ContentWriterLease) must guarantee no second Writer
// is ever opened against the same index concurrently; this type does not
// itself defend against that, matching the original design where the
// leasing is the scheduler's job, not the writer's.
type Writer struct {
	index bleve.Index
	batch *bleve.Batch
}

// Open opens the content index exclusively for one worker batch.
func Open(path string) (*Writer, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		if idx2, err2 := bleve.New(path, buildMapping()); err2 == nil {
			idx = idx2
		} else {
			return nil, fmt.Errorf("contentindex: open writer: %w", err)
		}
	}
	return &Writer{index: idx, batch: idx.NewBatch()}, nil
}

func docID(key ids.DocKey) string { return strconv.FormatUint(uint64(key), 10) }

// Upsert queues a content document. Re-indexing an existing DocKey
// replaces it in full, satisfying the idempotency invariant in §4.4.
func (w *Writer) Upsert(c models.ContentDoc) error {
	if err := w.batch.Index(docID(c.DocKey), toDoc(c)); err != nil {
		return fmt.Errorf("contentindex: batch index: %w", err)
	}
	return nil
}

// Delete queues removal of a content document, used when the
// corresponding metadata doc is deleted or the file is excluded.
func (w *Writer) Delete(key ids.DocKey) error {
	w.batch.Delete(docID(key))
	return nil
}

// Close commits the batch exactly once and closes the index, matching
// the worker lifecycle: "indexes its job batch, commits once, then
// closes and exits."
func (w *Writer) Close() error {
	if err := w.index.Batch(w.batch); err != nil {
		_ = w.index.Close()
		return fmt.Errorf("contentindex: commit batch: %w", err)
	}
	return w.index.Close()
}
