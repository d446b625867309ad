package scheduler

import (
	"container/heap"
	"sync"

	"ultrasearch/pkg/models"
)

// jobHeap orders jobs by descending Priority; within equal priority,
// insertion order is preserved via a monotonically increasing sequence
// number so FIFO is stable (matches the teacher's general preference for
// deterministic ordering in internal/indexer/builder.go's batch
// accumulation).
type jobHeap struct {
	items []queuedJob
}

type queuedJob struct {
	job models.Job
	seq uint64
}

func (h *jobHeap) Len() int { return len(h.items) }
func (h *jobHeap) Less(i, j int) bool {
	if h.items[i].job.Priority != h.items[j].job.Priority {
		return h.items[i].job.Priority > h.items[j].job.Priority
	}
	return h.items[i].seq < h.items[j].seq
}
func (h *jobHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *jobHeap) Push(x any)    { h.items = append(h.items, x.(queuedJob)) }
func (h *jobHeap) Pop() any {
	n := len(h.items)
	item := h.items[n-1]
	h.items = h.items[:n-1]
	return item
}

// Queue is one of the three per-kind job queues named in spec §4.6.
type Queue struct {
	mu   sync.Mutex
	kind models.JobKind
	h    *jobHeap
	seq  uint64
}

// NewQueue creates an empty queue for one job kind.
func NewQueue(kind models.JobKind) *Queue {
	h := &jobHeap{}
	heap.Init(h)
	return &Queue{kind: kind, h: h}
}

// Push enqueues a job. Panics in development builds would be excessive;
// callers are expected to only push jobs of the queue's own kind, so this
// is left unchecked on the hot path and validated instead at job
// construction time in internal/service.
func (q *Queue) Push(job models.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(q.h, queuedJob{job: job, seq: q.seq})
}

// Pop removes and returns the highest-priority job, or ok=false if empty.
func (q *Queue) Pop() (models.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return models.Job{}, false
	}
	qj := heap.Pop(q.h).(queuedJob)
	return qj.job, true
}

// Len reports the number of pending jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// Queues bundles the three named queues together.
type Queues struct {
	CriticalUpdate  *Queue
	MetadataRebuild *Queue
	ContentBatch    *Queue
}

// NewQueues builds the standard triple.
func NewQueues() *Queues {
	return &Queues{
		CriticalUpdate:  NewQueue(models.JobCriticalUpdate),
		MetadataRebuild: NewQueue(models.JobMetadataRebuild),
		ContentBatch:    NewQueue(models.JobContentBatch),
	}
}

// For returns the queue matching a job kind.
func (q *Queues) For(kind models.JobKind) *Queue {
	switch kind {
	case models.JobCriticalUpdate:
		return q.CriticalUpdate
	case models.JobMetadataRebuild:
		return q.MetadataRebuild
	case models.JobContentBatch:
		return q.ContentBatch
	default:
		return nil
	}
}
