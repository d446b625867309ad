package contentindex

import "github.com/blevesearch/bleve/v2/search/query"

// ContentQuery matches the full-text content field with BM25 scoring.
func ContentQuery(term string) query.Query {
	q := query.NewMatchQuery(term)
	q.SetField("content")
	return q
}

// NameQuery matches the tokenized name field, used by Hybrid/Content mode
// unfielded terms (spec §4.8: "(name OR content) with higher weight on name").
func NameQuery(term string) query.Query {
	q := query.NewMatchQuery(term)
	q.SetField("name")
	q.SetBoost(2.0)
	return q
}

// Or combines queries disjunctively.
func Or(qs ...query.Query) query.Query { return query.NewDisjunctionQuery(qs) }

// And combines queries conjunctively.
func And(qs ...query.Query) query.Query { return query.NewConjunctionQuery(qs) }
