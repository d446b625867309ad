package metaindex

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"ultrasearch/internal/ids"
)

// Reader is the single long-lived metadata-index reader named in spec
// §4.3: commits made by a Writer are not visible until Reload is called
// explicitly, so query cost and staleness are both caller-controlled
// rather than implicit per-query refresh.
type Reader struct {
	path string

	mu    sync.RWMutex
	index bleve.Index
}

// OpenReader opens the metadata index at path for reading.
func OpenReader(path string) (*Reader, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metaindex: open reader: %w", err)
	}
	return &Reader{path: path, index: idx}, nil
}

// Reload closes and reopens the underlying index, picking up any commits
// made since the last Reload (or since OpenReader).
func (r *Reader) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.index.Close(); err != nil {
		return fmt.Errorf("metaindex: reload close: %w", err)
	}
	idx, err := bleve.Open(r.path)
	if err != nil {
		return fmt.Errorf("metaindex: reload open: %w", err)
	}
	r.index = idx
	return nil
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index.Close()
}

// Hit is one result row. Fields beyond DocKey are only as reliable as
// what the underlying query stored/returned; callers needing the full
// document should look it up by DocKey through a separate store if one
// is wired, since bleve's stored fields are a projection, not a source
// of truth.
type Hit struct {
	DocKey   ids.DocKey
	Score    float64
	Name     string
	Path     string
	Ext      string
	Size     uint64
	Modified int64
}

// Search runs q against the index, returning at most limit hits ordered
// by score descending, honoring the "per-query cost is bounded by
// caller-specified limit" contract in spec §4.3. The returned total is
// bleve's full match count for q, independent of limit, so callers can
// honor the "limit=0 still populates total" contract in spec §8.
func (r *Reader) Search(q query.Query, limit int) ([]Hit, uint64, error) {
	r.mu.RLock()
	idx := r.index
	r.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"name", "path", "ext", "size", "modified"}

	res, err := idx.Search(req)
	if err != nil {
		return nil, 0, fmt.Errorf("metaindex: search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		key, err := parseDocID(h.ID)
		if err != nil {
			continue
		}
		hit := Hit{DocKey: key, Score: h.Score}
		if name, ok := h.Fields["name"].(string); ok {
			hit.Name = name
		}
		if path, ok := h.Fields["path"].(string); ok {
			hit.Path = path
		}
		if ext, ok := h.Fields["ext"].(string); ok {
			hit.Ext = ext
		}
		if size, ok := h.Fields["size"].(float64); ok {
			hit.Size = uint64(size)
		}
		if modified, ok := h.Fields["modified"].(float64); ok {
			hit.Modified = int64(modified)
		}
		hits = append(hits, hit)
	}
	return hits, res.Total, nil
}

func parseDocID(id string) (ids.DocKey, error) {
	var v uint64
	_, err := fmt.Sscanf(id, "%d", &v)
	if err != nil {
		return 0, err
	}
	return ids.DocKey(v), nil
}
