package metaindex

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	"ultrasearch/internal/ids"
	"ultrasearch/pkg/models"
)

// WriterConfig configures either write mode named in spec §4.3.
type WriterConfig struct {
	HeapBytes      int
	IndexThreads   int
	SegmentTarget  int
	CommitDocs     int
	CommitInterval time.Duration
}

// BulkWriterConfig is the default for initial/rebuild indexing.
func BulkWriterConfig() WriterConfig {
	return WriterConfig{
		HeapBytes:      512 * 1024 * 1024,
		IndexThreads:   8,
		SegmentTarget:  256 * 1024 * 1024,
		CommitDocs:     100_000,
		CommitInterval: 30 * time.Second,
	}
}

// IncrementalWriterConfig is the default for the resident USN-driven
// upsert writer.
func IncrementalWriterConfig() WriterConfig {
	return WriterConfig{
		HeapBytes:      64 * 1024 * 1024,
		IndexThreads:   2,
		CommitDocs:     10_000,
		CommitInterval: 5 * time.Second,
	}
}

// Writer wraps a bleve index for one of the two write modes. Bleve's
// scorch backend auto-commits each Batch/Index call; CommitDocs and
// CommitInterval are enforced here by batching calls ourselves rather
// than flushing per document, matching the spec's "commit every N docs or
// T seconds whichever comes first" contract.
type Writer struct {
	cfg   WriterConfig
	index bleve.Index

	mu      sync.Mutex
	batch   *bleve.Batch
	pending int
	opened  time.Time

	// seqByKey tracks the last-written ids.FileId.Sequence per DocKey, so
	// Upsert can detect an MFT record reused for a different file (spec
	// §4.3's FileId-sequence-mismatch invariant). It is repopulated from
	// scratch by a full rebuild, which walks every live file and Upserts
	// it, so a restart never leaves it permanently stale.
	seqByKey map[ids.DocKey]uint16
}

// OpenBulkWriter creates (or truncates, via a fresh directory) a metadata
// index for bulk build/rebuild.
func OpenBulkWriter(path string) (*Writer, error) {
	im := buildMapping()
	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("metaindex: open bulk writer: %w", err)
	}
	return newWriter(idx, BulkWriterConfig()), nil
}

// OpenIncrementalWriter opens an existing metadata index for resident
// incremental upserts.
func OpenIncrementalWriter(path string) (*Writer, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metaindex: open incremental writer: %w", err)
	}
	return newWriter(idx, IncrementalWriterConfig()), nil
}

func newWriter(idx bleve.Index, cfg WriterConfig) *Writer {
	return &Writer{cfg: cfg, index: idx, batch: idx.NewBatch(), opened: time.Now(), seqByKey: make(map[ids.DocKey]uint16)}
}

func docID(key ids.DocKey) string {
	return strconv.FormatUint(uint64(key), 10)
}

// Upsert queues an add (or replace, since bleve's Index call on an
// existing id fully replaces it) for one metadata document. stale reports
// whether the DocKey's last-known sequence number differs from m.SeqNum,
// meaning the prior document at this DocKey described a different file
// whose MFT record NTFS has since reused (spec §4.3: "FileId
// sequence-number mismatch on write signals a stale reference and
// triggers delete of the prior doc"). The metadata write itself already
// replaces the prior doc either way; stale exists so callers can also
// invalidate anything else keyed by this DocKey, such as a content-index
// entry holding the superseded file's extracted text.
func (w *Writer) Upsert(m models.MetadataDoc) (stale bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.seqByKey[m.DocKey]; ok && prev != m.SeqNum {
		stale = true
	}
	w.seqByKey[m.DocKey] = m.SeqNum
	if err := w.batch.Index(docID(m.DocKey), toDoc(m)); err != nil {
		return stale, fmt.Errorf("metaindex: batch index: %w", err)
	}
	w.pending++
	return stale, w.flushIfDueLocked()
}

// Delete queues a delete-by-DocKey. A Deleted event followed by a Created
// with the same DocKey is just Delete then Upsert against the same batch,
// honoring the delete-then-add invariant in spec §4.3.
func (w *Writer) Delete(key ids.DocKey) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.seqByKey, key)
	w.batch.Delete(docID(key))
	w.pending++
	return w.flushIfDueLocked()
}

func (w *Writer) flushIfDueLocked() error {
	if w.pending >= w.cfg.CommitDocs || time.Since(w.opened) >= w.cfg.CommitInterval {
		return w.commitLocked()
	}
	return nil
}

func (w *Writer) commitLocked() error {
	if w.pending == 0 {
		return nil
	}
	if err := w.index.Batch(w.batch); err != nil {
		return fmt.Errorf("metaindex: commit batch: %w", err)
	}
	w.batch = w.index.NewBatch()
	w.pending = 0
	w.opened = time.Now()
	return nil
}

// Flush forces a commit regardless of the doc-count/interval thresholds,
// used at the end of a bulk build or before a graceful shutdown.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commitLocked()
}

// Close flushes any pending batch and releases the underlying index.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.index.Close()
}
