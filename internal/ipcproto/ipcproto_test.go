package ipcproto

import (
	"bufio"
	"bytes"
	"testing"

	"ultrasearch/internal/query"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello frame")); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello frame" {
		t.Fatalf("got %q", got)
	}
}

func TestFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	hdr := []byte{0xff, 0xff, 0xff, 0x7f} // absurdly large length
	buf.Write(hdr)
	_, err := ReadFrame(bufio.NewReader(&buf))
	if err == nil {
		t.Fatal("expected oversized frame to be rejected")
	}
}

func TestRequestResponseEnvelopeRoundTrip(t *testing.T) {
	req := &Request{
		ID:   "req-1",
		Kind: RequestSearch,
		Search: &SearchRequest{
			Query:  query.NewTerm(query.TermExpr{Value: "budget"}),
			Mode:   query.ModeAuto,
			Limit:  20,
			Offset: 0,
		},
	}
	b, err := Encode(req)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeRequest(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "req-1" || got.Kind != RequestSearch || got.Search.Query.Term.Value != "budget" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestResponseCarriesStructuredError(t *testing.T) {
	resp := &Response{ID: "req-2", Error: &Error{Kind: ErrProtocolVersion, Message: "major mismatch"}}
	b, err := Encode(resp)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeResponse(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.Error == nil || got.Error.Kind != ErrProtocolVersion {
		t.Fatalf("expected structured protocol_version error, got %+v", got)
	}
}
