package contentindex

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"ultrasearch/internal/ids"
)

// Reader is the service-side, read-only content-index reader named in
// spec §4.4 ("the service holds only a reader"). Like metaindex.Reader it
// exposes an explicit Reload rather than refreshing per query.
type Reader struct {
	path string

	mu    sync.RWMutex
	index bleve.Index
}

// OpenReader opens the content index at path for reading.
func OpenReader(path string) (*Reader, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("contentindex: open reader: %w", err)
	}
	return &Reader{path: path, index: idx}, nil
}

// Reload picks up commits made by worker processes since the last
// Reload, called by the service after consuming a worker's result
// descriptor.
func (r *Reader) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.index.Close(); err != nil {
		return fmt.Errorf("contentindex: reload close: %w", err)
	}
	idx, err := bleve.Open(r.path)
	if err != nil {
		return fmt.Errorf("contentindex: reload open: %w", err)
	}
	r.index = idx
	return nil
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index.Close()
}

// Hit is one content-index result row, including the fields needed to
// build a snippet.
type Hit struct {
	DocKey  ids.DocKey
	Score   float64
	Name    string
	Path    string
	Content string
}

// Search runs q against the content index, returning at most limit hits.
// Stored name and path are returned, and Content holds the first
// highlighted fragment of the content field, which the orchestrator uses
// to build a snippet. The returned total is bleve's full match count for
// q, independent of limit.
func (r *Reader) Search(q query.Query, limit int) ([]Hit, uint64, error) {
	r.mu.RLock()
	idx := r.index
	r.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"name", "path"}
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Highlight.AddField("content")

	res, err := idx.Search(req)
	if err != nil {
		return nil, 0, fmt.Errorf("contentindex: search: %w", err)
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
		if frags, ok := h.Fragments["content"]; ok && len(frags) > 0 {
			hit.Content = frags[0]
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
