// Package worker implements the single-shot content-indexing batch
// process spawned by the scheduler (spec §4.6/§6): read a job descriptor,
// run each file through the extractor chain, commit the results to the
// content index exactly once, and write a result descriptor before
// exiting.
package worker

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"ultrasearch/internal/contentindex"
	"ultrasearch/internal/extractor"
	"ultrasearch/internal/ids"
	"ultrasearch/internal/jobfile"
	"ultrasearch/pkg/models"
)

// Worker processes exactly one job descriptor end to end.
type Worker struct {
	Chain *extractor.Chain
	Log   zerolog.Logger
}

// New builds a Worker with the extractor chain enabled by cfg's
// enabled_formats list (spec §4.5), always including the plaintext fast
// path and falling back to UnimplementedBackend for anything requiring a
// real document/OCR backend.
func New(cfg jobfile.ExtractorConfig, log zerolog.Logger) *Worker {
	limits := extractor.Limits{
		MaxBytesPerFile: cfg.MaxBytesPerFile,
		MaxChars:        cfg.MaxChars,
		ArchiveMaxDepth: extractor.DefaultLimits().ArchiveMaxDepth,
		OCRMaxPages:     cfg.OCRMaxPages,
	}

	plain := extractor.NewPlainTextExtractor(
		"txt", "md", "log", "csv", "json", "yaml", "yml", "ini", "toml",
		"go", "rs", "py", "js", "ts", "java", "c", "h", "cpp", "hpp", "cs", "sh",
	)
	chain := []extractor.Extractor{plain}
	if containsFormat(cfg.EnabledFormats, "general-document") {
		chain = append(chain, extractor.NewUnimplementedBackend("general-document",
			"pdf", "docx", "doc", "pptx", "xlsx", "rtf", "odt"))
	}
	if cfg.OCREnabled || containsFormat(cfg.EnabledFormats, "ocr") {
		chain = append(chain, extractor.NewUnimplementedBackend("ocr", "png", "jpg", "jpeg", "tif", "tiff"))
	}

	return &Worker{Chain: extractor.NewChain(limits, chain...), Log: log}
}

func containsFormat(formats []string, want string) bool {
	for _, f := range formats {
		if f == want {
			return true
		}
	}
	return false
}

// RunJob processes job: extracting every file's content, upserting it
// into the content index at job.ContentIndexPath, and committing once
// via Writer.Close, matching the worker lifecycle named in spec §4.4.
// It returns the result descriptor to write and whether the batch
// committed at all (false only if opening or committing the index
// itself failed, which the caller should treat as a crash).
func (w *Worker) RunJob(ctx context.Context, job jobfile.Job) (jobfile.Result, error) {
	res := jobfile.Result{BatchID: job.BatchID}

	writer, err := contentindex.Open(job.ContentIndexPath)
	if err != nil {
		return res, fmt.Errorf("worker: opening content index: %w", err)
	}

	for _, f := range job.Files {
		if err := ctx.Err(); err != nil {
			res.Failed = append(res.Failed, jobfile.FailedFile{DocKey: f.DocKey, Cause: err.Error()})
			continue
		}

		ec, err := w.Chain.Extract(ctx, extractor.Context{
			DocKeyHint: f.DocKey.String(),
			Path:       f.Path,
			Ext:        f.Ext,
			Size:       int64(f.Size),
			Mime:       f.Mime,
		})
		if err != nil {
			w.Log.Warn().Str("doc_key", f.DocKey.String()).Err(err).Msg("extraction failed")
			res.Failed = append(res.Failed, jobfile.FailedFile{DocKey: f.DocKey, Cause: err.Error()})
			continue
		}

		vol, _ := f.DocKey.Split()
		if err := writer.Upsert(toContentDoc(f, vol, ec)); err != nil {
			res.Failed = append(res.Failed, jobfile.FailedFile{DocKey: f.DocKey, Cause: err.Error()})
			continue
		}
		res.Processed = append(res.Processed, jobfile.ProcessedFile{
			DocKey:    f.DocKey,
			Bytes:     ec.BytesProcessed,
			Chars:     len(ec.Text),
			Truncated: ec.Truncated,
			Lang:      ec.ContentLang,
		})
	}

	if err := writer.Close(); err != nil {
		return res, fmt.Errorf("worker: committing batch %s: %w", job.BatchID, err)
	}
	res.Committed = true
	return res, nil
}

func toContentDoc(f jobfile.JobFile, vol ids.VolumeId, ec extractor.ExtractedContent) models.ContentDoc {
	return models.ContentDoc{
		DocKey:      f.DocKey,
		Volume:      vol,
		Name:        filepath.Base(f.Path),
		Path:        f.Path,
		Ext:         f.Ext,
		Size:        f.Size,
		ContentLang: ec.ContentLang,
		Content:     ec.Text,
	}
}
