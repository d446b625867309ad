package query

import (
	"fmt"

	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"ultrasearch/internal/contentindex"
	"ultrasearch/internal/metaindex"
)

// toMetaQuery translates e into a bleve query against the metadata index,
// per spec §4.8: an unfielded Term expands to (name OR path).
func toMetaQuery(e Expr) (blevequery.Query, error) {
	switch e.Kind {
	case KindTerm:
		return metaTermQuery(*e.Term), nil
	case KindRange:
		return metaRangeQuery(*e.Range)
	case KindNot:
		inner, err := toMetaQuery(*e.Not)
		if err != nil {
			return nil, err
		}
		return metaindex.Not(inner), nil
	case KindAnd:
		qs, err := toMetaQueries(e.And)
		if err != nil {
			return nil, err
		}
		return metaindex.And(qs...), nil
	case KindOr:
		qs, err := toMetaQueries(e.Or)
		if err != nil {
			return nil, err
		}
		return metaindex.Or(qs...), nil
	default:
		return nil, fmt.Errorf("query: unknown expr kind %q", e.Kind)
	}
}

func toMetaQueries(es []Expr) ([]blevequery.Query, error) {
	qs := make([]blevequery.Query, 0, len(es))
	for _, e := range es {
		q, err := toMetaQuery(e)
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, nil
}

func metaTermQuery(t TermExpr) blevequery.Query {
	switch t.Field {
	case FieldName:
		return fieldedMetaTerm("name", "name_exact", t)
	case FieldPath:
		return fieldedMetaTerm("path", "path_exact", t)
	case FieldExt:
		return metaindex.ExtQuery(t.Value)
	case "":
		return metaindex.Or(metaindex.NameQuery(t.Value), metaindex.PathQuery(t.Value))
	default:
		return metaindex.Or(metaindex.NameQuery(t.Value), metaindex.PathQuery(t.Value))
	}
}

func fieldedMetaTerm(tokenized, exact string, t TermExpr) blevequery.Query {
	switch t.Modifier {
	case ModifierExact:
		q := blevequery.NewTermQuery(t.Value)
		q.SetField(exact)
		return q
	case ModifierPrefix:
		q := blevequery.NewPrefixQuery(t.Value)
		q.SetField(exact)
		return q
	case ModifierFuzzy:
		q := blevequery.NewFuzzyQuery(t.Value)
		q.SetField(tokenized)
		return q
	default:
		q := blevequery.NewMatchQuery(t.Value)
		q.SetField(tokenized)
		return q
	}
}

func metaRangeQuery(r RangeExpr) (blevequery.Query, error) {
	switch r.Field {
	case FieldSize:
		var lo, hi *uint64
		if r.Lo != nil {
			v := uint64(*r.Lo)
			lo = &v
		}
		if r.Hi != nil {
			v := uint64(*r.Hi)
			hi = &v
		}
		return metaindex.SizeRange(lo, hi, r.Inclusive), nil
	case FieldCreated:
		return metaindex.CreatedRange(r.Lo, r.Hi, r.Inclusive), nil
	case FieldModified:
		return metaindex.ModifiedRange(r.Lo, r.Hi, r.Inclusive), nil
	default:
		return nil, fmt.Errorf("query: range field %q not supported on metadata index", r.Field)
	}
}

// toContentQuery translates e into a bleve query against the content
// index; an unfielded Term expands to (name OR content) with higher
// weight on name, per spec §4.8.
func toContentQuery(e Expr) (blevequery.Query, error) {
	switch e.Kind {
	case KindTerm:
		return contentTermQuery(*e.Term), nil
	case KindNot:
		inner, err := toContentQuery(*e.Not)
		if err != nil {
			return nil, err
		}
		return blevequery.NewBooleanQuery(nil, nil, []blevequery.Query{inner}), nil
	case KindAnd:
		qs, err := toContentQueries(e.And)
		if err != nil {
			return nil, err
		}
		return contentindex.And(qs...), nil
	case KindOr:
		qs, err := toContentQueries(e.Or)
		if err != nil {
			return nil, err
		}
		return contentindex.Or(qs...), nil
	default:
		return nil, fmt.Errorf("query: unknown expr kind %q", e.Kind)
	}
}

func toContentQueries(es []Expr) ([]blevequery.Query, error) {
	qs := make([]blevequery.Query, 0, len(es))
	for _, e := range es {
		q, err := toContentQuery(e)
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, nil
}

func contentTermQuery(t TermExpr) blevequery.Query {
	switch t.Field {
	case FieldContent, FieldLang:
		return contentindex.ContentQuery(t.Value)
	case FieldName:
		return contentindex.NameQuery(t.Value)
	case "":
		return contentindex.Or(contentindex.NameQuery(t.Value), contentindex.ContentQuery(t.Value))
	default:
		return contentindex.ContentQuery(t.Value)
	}
}
