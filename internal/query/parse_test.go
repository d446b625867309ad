package query

import "testing"

func TestParseTextSingleBareWord(t *testing.T) {
	e := ParseText("invoice")
	if e.Kind != KindTerm || e.Term == nil || e.Term.Value != "invoice" || e.Term.Field != "" {
		t.Fatalf("unexpected expr: %+v", e)
	}
}

func TestParseTextMultipleWordsAnded(t *testing.T) {
	e := ParseText("invoice march")
	if e.Kind != KindAnd || len(e.And) != 2 {
		t.Fatalf("expected 2-term And, got %+v", e)
	}
}

func TestParseTextFieldedTerm(t *testing.T) {
	e := ParseText("ext:pdf")
	if e.Kind != KindTerm || e.Term.Field != FieldExt || e.Term.Value != "pdf" {
		t.Fatalf("unexpected expr: %+v", e)
	}
}

func TestParseTextPrefixModifier(t *testing.T) {
	e := ParseText("name:repo*")
	if e.Term.Modifier != ModifierPrefix || e.Term.Value != "repo" {
		t.Fatalf("unexpected expr: %+v", e)
	}
}

func TestParseTextUnknownFieldPrefixIsLiteral(t *testing.T) {
	e := ParseText("c++:fun")
	if e.Term.Field != "" || e.Term.Value != "c++:fun" {
		t.Fatalf("expected literal value, got %+v", e)
	}
}

func TestParseTextEmptyStringYieldsEmptyTerm(t *testing.T) {
	e := ParseText("   ")
	if e.Kind != KindTerm || e.Term.Value != "" {
		t.Fatalf("expected empty term, got %+v", e)
	}
}
