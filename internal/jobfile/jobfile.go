// Package jobfile reads and writes the worker job and result descriptors
// exchanged between the service and index-worker processes (spec §6).
// Unlike the volume state archive, descriptors are nested, variable-shape
// records produced once and consumed once, so they are encoded as JSON via
// the standard library rather than the hand-rolled binary framing used for
// the hot-path volume state file — no example repo in the retrieval pack
// reaches for a serialization library for one-shot descriptor files; JSON
// is the natural fit here.
package jobfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"ultrasearch/internal/ids"
)

// ExtractorConfig mirrors the limits enforced by the extractor stack
// (spec §4.5), carried into the worker via the job descriptor.
type ExtractorConfig struct {
	MaxBytesPerFile int64    `json:"max_bytes_per_file"`
	MaxChars        int      `json:"max_chars"`
	OCREnabled      bool     `json:"ocr_enabled"`
	OCRMaxPages     int      `json:"ocr_max_pages"`
	EnabledFormats  []string `json:"enabled_formats"`
}

// JobFile is one file entry in a worker job descriptor's batch.
type JobFile struct {
	DocKey ids.DocKey `json:"doc_key"`
	Path   string     `json:"path"`
	Ext    string     `json:"ext"`
	Size   uint64     `json:"size"`
	Mime   string     `json:"mime,omitempty"`
}

// Job is the descriptor a scheduler writes before spawning a worker.
type Job struct {
	BatchID         string          `json:"batch_id"`
	ContentIndexPath string         `json:"content_index_path"`
	ExtractorConfig ExtractorConfig `json:"extractor_config"`
	Files           []JobFile       `json:"files"`
}

// ProcessedFile is one successfully-extracted file in a worker result.
type ProcessedFile struct {
	DocKey    ids.DocKey `json:"doc_key"`
	Bytes     int64      `json:"bytes"`
	Chars     int        `json:"chars"`
	Truncated bool       `json:"truncated"`
	Lang      string     `json:"lang,omitempty"`
}

// FailedFile is one file the worker could not extract.
type FailedFile struct {
	DocKey ids.DocKey `json:"doc_key"`
	Cause  string     `json:"cause"`
}

// Result is the descriptor a worker writes before exiting.
type Result struct {
	BatchID   string           `json:"batch_id"`
	Processed []ProcessedFile  `json:"processed"`
	Failed    []FailedFile     `json:"failed"`
	Committed bool             `json:"committed"`
}

// NewBatchID generates a fresh identifier for a job/result descriptor
// pair, substituting for the original design's "ulid" naming since no
// ULID library appears anywhere in the retrieval pack (see DESIGN.md).
func NewBatchID() string {
	return uuid.NewString()
}

// JobPath returns /jobs/{batchID}.job under the configured jobs directory.
func JobPath(jobsDir, batchID string) string {
	return filepath.Join(jobsDir, batchID+".job")
}

// ResultPath returns /jobs/{batchID}.result under the configured jobs
// directory.
func ResultPath(jobsDir, batchID string) string {
	return filepath.Join(jobsDir, batchID+".result")
}

// WriteJob atomically writes a job descriptor for a worker to consume.
func WriteJob(jobsDir string, job Job) (string, error) {
	path := JobPath(jobsDir, job.BatchID)
	if err := writeAtomic(path, job); err != nil {
		return "", fmt.Errorf("jobfile: writing job %s: %w", job.BatchID, err)
	}
	return path, nil
}

// ReadJob reads a job descriptor by path.
func ReadJob(path string) (Job, error) {
	var j Job
	if err := readJSON(path, &j); err != nil {
		return Job{}, fmt.Errorf("jobfile: reading job %s: %w", path, err)
	}
	return j, nil
}

// WriteResult atomically writes a worker's result descriptor before it
// exits.
func WriteResult(jobsDir string, res Result) (string, error) {
	path := ResultPath(jobsDir, res.BatchID)
	if err := writeAtomic(path, res); err != nil {
		return "", fmt.Errorf("jobfile: writing result %s: %w", res.BatchID, err)
	}
	return path, nil
}

// ReadResult reads a result descriptor by path.
func ReadResult(path string) (Result, error) {
	var r Result
	if err := readJSON(path, &r); err != nil {
		return Result{}, fmt.Errorf("jobfile: reading result %s: %w", path, err)
	}
	return r, nil
}

func writeAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}
