package jobfile

import (
	"testing"

	"ultrasearch/internal/ids"
)

func TestJobWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	job := Job{
		BatchID:          NewBatchID(),
		ContentIndexPath: "index/content",
		ExtractorConfig: ExtractorConfig{
			MaxBytesPerFile: 32 << 20,
			MaxChars:        150000,
			EnabledFormats:  []string{"pdf", "docx"},
		},
		Files: []JobFile{
			{DocKey: ids.NewDocKey(1, 0x100), Path: `C:\a.txt`, Ext: "txt", Size: 10},
		},
	}

	path, err := WriteJob(dir, job)
	if err != nil {
		t.Fatalf("WriteJob: %v", err)
	}
	if path != JobPath(dir, job.BatchID) {
		t.Fatalf("path mismatch: %s", path)
	}

	got, err := ReadJob(path)
	if err != nil {
		t.Fatalf("ReadJob: %v", err)
	}
	if got.BatchID != job.BatchID || len(got.Files) != 1 || got.Files[0].DocKey != job.Files[0].DocKey {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestResultWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	res := Result{
		BatchID:   NewBatchID(),
		Processed: []ProcessedFile{{DocKey: ids.NewDocKey(1, 2), Bytes: 100, Chars: 50}},
		Failed:    []FailedFile{{DocKey: ids.NewDocKey(1, 3), Cause: "corrupt"}},
		Committed: true,
	}
	path, err := WriteResult(dir, res)
	if err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
	got, err := ReadResult(path)
	if err != nil {
		t.Fatalf("ReadResult: %v", err)
	}
	if !got.Committed || len(got.Processed) != 1 || len(got.Failed) != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestReadJobMissingFile(t *testing.T) {
	if _, err := ReadJob("/nonexistent/path.job"); err == nil {
		t.Fatal("expected error reading missing job file")
	}
}
