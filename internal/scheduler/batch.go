package scheduler

import (
	"sync"

	"ultrasearch/internal/ids"
	"ultrasearch/pkg/models"
)

// PendingContent accumulates content-indexing candidates per volume,
// draining up to content_batch_size files into a single batch payload
// when the ContentBatch queue is admitted, per spec §4.6.
type PendingContent struct {
	mu    sync.Mutex
	byVol map[ids.VolumeId][]models.ContentBatchFile
}

// NewPendingContent creates an empty per-volume accumulator.
func NewPendingContent() *PendingContent {
	return &PendingContent{byVol: make(map[ids.VolumeId][]models.ContentBatchFile)}
}

// Add queues one file for eventual content indexing.
func (p *PendingContent) Add(vol ids.VolumeId, f models.ContentBatchFile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byVol[vol] = append(p.byVol[vol], f)
}

// Drain removes up to maxFiles files for one volume and returns them,
// along with the remaining backlog size for that volume.
func (p *PendingContent) Drain(vol ids.VolumeId, maxFiles int) ([]models.ContentBatchFile, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending := p.byVol[vol]
	if len(pending) == 0 {
		return nil, 0
	}
	n := maxFiles
	if n > len(pending) {
		n = len(pending)
	}
	batch := pending[:n]
	remaining := pending[n:]
	if len(remaining) == 0 {
		delete(p.byVol, vol)
	} else {
		p.byVol[vol] = remaining
	}
	return batch, len(remaining)
}

// Requeue puts a formed-but-unsent batch's files back at the front of
// vol's backlog, used when a ContentBatch job is admitted but the
// content-writer lease has no free slot this tick.
func (p *PendingContent) Requeue(vol ids.VolumeId, job models.Job) {
	if len(job.Payload.Files) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byVol[vol] = append(job.Payload.Files, p.byVol[vol]...)
}

// Backlog reports how many files are queued for a volume without
// draining them.
func (p *PendingContent) Backlog(vol ids.VolumeId) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byVol[vol])
}

// Volumes lists volumes with a nonzero backlog, for the scheduler's tick
// loop to iterate over.
func (p *PendingContent) Volumes() []ids.VolumeId {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ids.VolumeId, 0, len(p.byVol))
	for v := range p.byVol {
		out = append(out, v)
	}
	return out
}

// FormBatch builds a Job payload for up to batchSize files of vol,
// bounded additionally by maxBytes total file size (spec §4.6's
// content_batch_size / max_batch_bytes pair).
func (p *PendingContent) FormBatch(vol ids.VolumeId, batchSize int, maxBytes uint64) (models.Job, bool) {
	p.mu.Lock()
	pending := p.byVol[vol]
	p.mu.Unlock()
	if len(pending) == 0 {
		return models.Job{}, false
	}

	var (
		files     []models.ContentBatchFile
		totalSize uint64
	)
	for _, f := range pending {
		if len(files) >= batchSize {
			break
		}
		if totalSize+f.Size > maxBytes && len(files) > 0 {
			break
		}
		files = append(files, f)
		totalSize += f.Size
	}

	p.mu.Lock()
	remaining := p.byVol[vol][len(files):]
	if len(remaining) == 0 {
		delete(p.byVol, vol)
	} else {
		p.byVol[vol] = remaining
	}
	p.mu.Unlock()

	docKeys := make([]ids.DocKey, 0, len(files))
	for _, f := range files {
		docKeys = append(docKeys, f.DocKey)
	}

	return models.Job{
		Kind:     models.JobContentBatch,
		Priority: 0,
		Volume:   vol,
		Payload:  models.JobPayload{DocKeys: docKeys, Files: files},
	}, true
}
