package query

import "strings"

// ParseText builds an Expr from the simple space-separated CLI/search-box
// syntax: bare words become unfielded Term expressions ANDed together;
// `field:value` tokens target one of the fields named in spec §4.8's
// TermExpr grammar. A trailing `*` on a value requests prefix matching.
// Unrecognized field prefixes are treated as part of the literal value
// rather than rejected, since a user typing "c++:fun" almost certainly
// means the literal string, not a field filter.
func ParseText(s string) Expr {
	fields := map[string]Field{
		"name":    FieldName,
		"path":    FieldPath,
		"ext":     FieldExt,
		"content": FieldContent,
		"lang":    FieldLang,
	}

	var terms []Expr
	for _, tok := range strings.Fields(s) {
		field := Field("")
		value := tok
		if i := strings.IndexByte(tok, ':'); i > 0 {
			if f, ok := fields[tok[:i]]; ok {
				field = f
				value = tok[i+1:]
			}
		}
		if value == "" {
			continue
		}

		var modifier Modifier
		if strings.HasSuffix(value, "*") {
			modifier = ModifierPrefix
			value = strings.TrimSuffix(value, "*")
		}

		terms = append(terms, NewTerm(TermExpr{Field: field, Value: value, Modifier: modifier}))
	}

	switch len(terms) {
	case 0:
		return NewTerm(TermExpr{Value: ""})
	case 1:
		return terms[0]
	default:
		return NewAnd(terms...)
	}
}
