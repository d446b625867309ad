package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"ultrasearch/internal/contentindex"
	"ultrasearch/internal/ids"
	"ultrasearch/internal/metaindex"
)

// Boosts configures the orchestrator-level, post-score adjustments named
// in spec §4.8: an exact whole-name match boost and a recency boost for
// files modified within RecencyWindow.
type Boosts struct {
	ExactNameAlpha float64
	RecencyBeta    float64
	RecencyWindow  time.Duration
}

// DefaultBoosts matches the defaults implied by spec §4.8 ("configurable").
func DefaultBoosts() Boosts {
	return Boosts{ExactNameAlpha: 2.0, RecencyBeta: 1.0, RecencyWindow: 7 * 24 * time.Hour}
}

// Request is one client search request.
type Request struct {
	Expr     Expr
	Mode     Mode
	Limit    int
	Offset   int
	Deadline time.Duration
}

// Result is one ranked result row, per spec §4.8's result shape.
type Result struct {
	DocKey   ids.DocKey
	Score    float64
	Name     string
	Path     string
	Size     uint64
	Modified int64
	Ext      string
	Snippet  string
}

// Response is the full orchestrator output.
type Response struct {
	Results  []Result
	Total    uint64
	TimedOut bool
}

// Orchestrator runs Requests against the metadata and content readers.
type Orchestrator struct {
	Meta    *metaindex.Reader
	Content *contentindex.Reader
	Boosts  Boosts
}

// NewOrchestrator builds an Orchestrator over the given readers.
func NewOrchestrator(meta *metaindex.Reader, content *contentindex.Reader, boosts Boosts) *Orchestrator {
	return &Orchestrator{Meta: meta, Content: content, Boosts: boosts}
}

// Run executes req, honoring its deadline (default 2s, per spec §4.8). If
// execution does not finish in time it returns an empty Response with
// TimedOut set; hits found before the deadline are not returned.
func (o *Orchestrator) Run(ctx context.Context, req Request) Response {
	deadline := req.Deadline
	if deadline <= 0 {
		deadline = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	mode := req.Mode
	if mode == "" || mode == ModeAuto {
		mode = o.resolveAuto(req.Expr)
	}

	type execResult struct {
		resp Response
		err  error
	}
	done := make(chan execResult, 1)
	go func() {
		resp, err := o.execute(req, mode)
		done <- execResult{resp, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return Response{TimedOut: false}
		}
		return r.resp
	case <-ctx.Done():
		return Response{TimedOut: true}
	}
}

// resolveAuto implements the Mode Auto selection rule: NameOnly unless a
// term targets content or a multi-word phrase is present.
func (o *Orchestrator) resolveAuto(e Expr) Mode {
	if e.ContainsContentTerm() || hasMultiWordPhrase(e) {
		return ModeHybrid
	}
	return ModeNameOnly
}

func hasMultiWordPhrase(e Expr) bool {
	switch e.Kind {
	case KindTerm:
		return e.Term != nil && strings.Contains(strings.TrimSpace(e.Term.Value), " ")
	case KindNot:
		return e.Not != nil && hasMultiWordPhrase(*e.Not)
	case KindAnd:
		for _, c := range e.And {
			if hasMultiWordPhrase(c) {
				return true
			}
		}
	case KindOr:
		for _, c := range e.Or {
			if hasMultiWordPhrase(c) {
				return true
			}
		}
	}
	return false
}

func (o *Orchestrator) execute(req Request, mode Mode) (Response, error) {
	switch mode {
	case ModeNameOnly:
		return o.runMeta(req)
	case ModeContent:
		return o.runContent(req)
	case ModeHybrid:
		return o.runHybrid(req)
	default:
		return o.runMeta(req)
	}
}

func (o *Orchestrator) runMeta(req Request) (Response, error) {
	q, err := toMetaQuery(req.Expr)
	if err != nil {
		return Response{}, err
	}
	hits, total, err := o.Meta.Search(q, req.Limit+req.Offset)
	if err != nil {
		return Response{}, err
	}
	hits = page(hits, req.Offset)
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{DocKey: h.DocKey, Score: h.Score, Name: h.Name, Path: h.Path, Ext: h.Ext, Size: h.Size, Modified: h.Modified})
	}
	if req.Limit == 0 {
		results = results[:0]
	}
	o.applyBoosts(results, primaryTermValue(req.Expr))
	sortByScoreDesc(results)
	return Response{Results: results, Total: total}, nil
}

func (o *Orchestrator) runContent(req Request) (Response, error) {
	q, err := toContentQuery(req.Expr)
	if err != nil {
		return Response{}, err
	}
	hits, total, err := o.Content.Search(q, req.Limit+req.Offset)
	if err != nil {
		return Response{}, err
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{DocKey: h.DocKey, Score: h.Score, Name: h.Name, Path: h.Path, Snippet: snippet(h.Content, 240)})
	}
	results = pageResults(results, req.Offset, req.Limit)
	sortByScoreDesc(results)
	return Response{Results: results, Total: total}, nil
}

// runHybrid fetches 2*limit from each side (spec §4.8) and merges by
// DocKey, taking max(score_meta, score_content).
func (o *Orchestrator) runHybrid(req Request) (Response, error) {
	metaQ, err := toMetaQuery(req.Expr)
	if err != nil {
		return Response{}, err
	}
	contentQ, err := toContentQuery(req.Expr)
	if err != nil {
		return Response{}, err
	}

	fetch := 2 * (req.Limit + req.Offset)
	if fetch <= 0 {
		fetch = 2 * 20
	}

	metaHits, metaTotal, err := o.Meta.Search(metaQ, fetch)
	if err != nil {
		return Response{}, err
	}
	contentHits, contentTotal, err := o.Content.Search(contentQ, fetch)
	if err != nil {
		return Response{}, err
	}

	merged := make(map[ids.DocKey]*Result)
	for _, h := range metaHits {
		merged[h.DocKey] = &Result{DocKey: h.DocKey, Score: h.Score, Name: h.Name, Path: h.Path, Ext: h.Ext, Size: h.Size, Modified: h.Modified}
	}
	var overlap uint64
	for _, h := range contentHits {
		if existing, ok := merged[h.DocKey]; ok {
			overlap++
			if h.Score > existing.Score {
				existing.Score = h.Score
			}
			existing.Snippet = snippet(h.Content, 240)
		} else {
			merged[h.DocKey] = &Result{DocKey: h.DocKey, Score: h.Score, Name: h.Name, Path: h.Path, Snippet: snippet(h.Content, 240)}
		}
	}

	// The exact distinct-doc total across the whole index isn't knowable
	// without an exhaustive scan of both sides; metaTotal+contentTotal-overlap
	// (overlap measured within the fetched window) is the best estimate the
	// two per-index totals support, and is exact whenever every overlapping
	// doc appears within the fetched window.
	total := metaTotal + contentTotal - overlap

	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		results = append(results, *r)
	}
	o.applyBoosts(results, primaryTermValue(req.Expr))
	sortByScoreDesc(results)
	results = pageResults(results, req.Offset, req.Limit)
	return Response{Results: results, Total: total}, nil
}

// applyBoosts adds the exact-name and recency boosts in place, per spec
// §4.8: "+α" for a whole-name match against the query's primary term, and
// "+β·recency" for files modified within Boosts.RecencyWindow of now.
func (o *Orchestrator) applyBoosts(results []Result, term string) {
	now := time.Now()
	for i := range results {
		r := &results[i]
		if term != "" && strings.EqualFold(r.Name, term) {
			r.Score += o.Boosts.ExactNameAlpha
		}
		if r.Modified != 0 {
			age := now.Sub(time.Unix(r.Modified, 0))
			if age >= 0 && age <= o.Boosts.RecencyWindow {
				recency := 1 - float64(age)/float64(o.Boosts.RecencyWindow)
				r.Score += o.Boosts.RecencyBeta * recency
			}
		}
	}
}

// primaryTermValue extracts the first Term value encountered in e, used
// for the exact-name boost comparison. And/Or expressions with more than
// one term boost against the first one found; this matches the common
// case of a single unfielded search term plus structural filters.
func primaryTermValue(e Expr) string {
	switch e.Kind {
	case KindTerm:
		if e.Term != nil {
			return e.Term.Value
		}
	case KindNot:
		if e.Not != nil {
			return primaryTermValue(*e.Not)
		}
	case KindAnd:
		for _, c := range e.And {
			if v := primaryTermValue(c); v != "" {
				return v
			}
		}
	case KindOr:
		for _, c := range e.Or {
			if v := primaryTermValue(c); v != "" {
				return v
			}
		}
	}
	return ""
}

func page(hits []metaindex.Hit, offset int) []metaindex.Hit {
	if offset >= len(hits) {
		return nil
	}
	return hits[offset:]
}

// pageResults applies offset/limit to an already-scored result set. A
// limit of 0 is a request for zero hits (still bounded by offset and
// still leaving the caller's total intact), not "unlimited", per spec
// §8's paging contract.
func pageResults(results []Result, offset, limit int) []Result {
	if limit == 0 {
		return results[:0]
	}
	if offset >= len(results) {
		return nil
	}
	end := len(results)
	if offset+limit < end {
		end = offset + limit
	}
	return results[offset:end]
}

func sortByScoreDesc(results []Result) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}

// snippet truncates s to at most max characters on a rune boundary.
func snippet(s string, max int) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
