package metaindex

import (
	"github.com/blevesearch/bleve/v2/search/query"

	"ultrasearch/internal/ids"
)

// NameQuery matches the tokenized name field.
func NameQuery(term string) query.Query {
	q := query.NewMatchQuery(term)
	q.SetField("name")
	return q
}

// NameExactQuery matches the unanalyzed name field verbatim.
func NameExactQuery(term string) query.Query {
	q := query.NewTermQuery(term)
	q.SetField("name_exact")
	return q
}

// PathQuery matches the tokenized path field.
func PathQuery(term string) query.Query {
	q := query.NewMatchQuery(term)
	q.SetField("path")
	return q
}

// ExtQuery matches the ext keyword field exactly.
func ExtQuery(ext string) query.Query {
	q := query.NewTermQuery(ext)
	q.SetField("ext")
	return q
}

func f64(v float64) *float64 { return &v }

// SizeRange builds an inclusive/exclusive numeric range query on size, per
// the RangeExpr contract in spec §4.8. Either bound may be nil for an
// open range.
func SizeRange(lo, hi *uint64, inclusive bool) query.Query {
	var loF, hiF *float64
	if lo != nil {
		loF = f64(float64(*lo))
	}
	if hi != nil {
		hiF = f64(float64(*hi))
	}
	q := query.NewNumericRangeInclusiveQuery(loF, hiF, &inclusive, &inclusive)
	q.SetField("size")
	return q
}

// ModifiedRange builds a numeric range query on the modified field (unix
// seconds).
func ModifiedRange(lo, hi *int64, inclusive bool) query.Query {
	var loF, hiF *float64
	if lo != nil {
		loF = f64(float64(*lo))
	}
	if hi != nil {
		hiF = f64(float64(*hi))
	}
	q := query.NewNumericRangeInclusiveQuery(loF, hiF, &inclusive, &inclusive)
	q.SetField("modified")
	return q
}

// CreatedRange builds a numeric range query on the created field (unix
// seconds).
func CreatedRange(lo, hi *int64, inclusive bool) query.Query {
	var loF, hiF *float64
	if lo != nil {
		loF = f64(float64(*lo))
	}
	if hi != nil {
		hiF = f64(float64(*hi))
	}
	q := query.NewNumericRangeInclusiveQuery(loF, hiF, &inclusive, &inclusive)
	q.SetField("created")
	return q
}

// VolumeQuery restricts results to one volume.
func VolumeQuery(vol ids.VolumeId) query.Query {
	v := float64(vol)
	q := query.NewNumericRangeInclusiveQuery(&v, &v, boolPtr(true), boolPtr(true))
	q.SetField("volume")
	return q
}

func boolPtr(b bool) *bool { return &b }

// And combines queries conjunctively.
func And(qs ...query.Query) query.Query { return query.NewConjunctionQuery(qs) }

// Or combines queries disjunctively.
func Or(qs ...query.Query) query.Query { return query.NewDisjunctionQuery(qs) }

// Not negates a query within a boolean query (must/should empty, must-not
// set), matching the NotExpr shape in spec §4.8.
func Not(q query.Query) query.Query {
	b := query.NewBooleanQuery(nil, nil, []query.Query{q})
	return b
}
