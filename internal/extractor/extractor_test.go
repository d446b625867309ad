package extractor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPlainTextExtractorReadsWholeFile(t *testing.T) {
	path := writeTemp(t, "note.txt", "hello world\nsecond line\n")
	e := NewPlainTextExtractor("txt")
	fc := Context{Path: path, Ext: "txt", Size: 24}

	out, err := e.Extract(context.Background(), fc, DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	if out.Truncated {
		t.Fatal("did not expect truncation")
	}
	if !strings.Contains(out.Text, "hello world") {
		t.Fatalf("unexpected text: %q", out.Text)
	}
}

func TestPlainTextExtractorTruncatesAtMaxChars(t *testing.T) {
	path := writeTemp(t, "big.txt", strings.Repeat("a", 1000))
	e := NewPlainTextExtractor("txt")
	limits := DefaultLimits()
	limits.MaxChars = 100

	out, err := e.Extract(context.Background(), Context{Path: path, Ext: "txt"}, limits)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Truncated {
		t.Fatal("expected truncation")
	}
	if len(out.Text) != 100 {
		t.Fatalf("got %d chars, want 100", len(out.Text))
	}
}

func TestPlainTextExtractorTruncatesAtMaxBytes(t *testing.T) {
	path := writeTemp(t, "big2.txt", strings.Repeat("b", 1000))
	e := NewPlainTextExtractor("txt")
	limits := DefaultLimits()
	limits.MaxBytesPerFile = 50

	out, err := e.Extract(context.Background(), Context{Path: path, Ext: "txt"}, limits)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Truncated {
		t.Fatal("expected truncation from byte cap")
	}
	if out.BytesProcessed != limits.MaxBytesPerFile {
		t.Fatalf("BytesProcessed = %d, want exactly %d", out.BytesProcessed, limits.MaxBytesPerFile)
	}
}

func TestChainUnsupportedWhenNoneMatch(t *testing.T) {
	c := NewChain(DefaultLimits(), NewPlainTextExtractor("txt"))
	_, err := c.Extract(context.Background(), Context{Path: "x.bin", Ext: "bin"})
	if err == nil {
		t.Fatal("expected error")
	}
	f, ok := err.(*Failure)
	if !ok || f.Kind != FailureUnsupported {
		t.Fatalf("expected Unsupported failure, got %v", err)
	}
}

func TestChainFirstMatchWins(t *testing.T) {
	path := writeTemp(t, "a.txt", "content")
	c := NewChain(DefaultLimits(),
		NewPlainTextExtractor("txt"),
		NewUnimplementedBackend("general-document", "txt"),
	)
	out, err := c.Extract(context.Background(), Context{Path: path, Ext: "txt"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Text != "content" {
		t.Fatalf("expected plaintext backend to win, got %q", out.Text)
	}
}

func TestUnimplementedBackendReturnsBackendInit(t *testing.T) {
	b := NewUnimplementedBackend("ocr", "pdf")
	_, err := b.Extract(context.Background(), Context{Path: "x.pdf", Ext: "pdf"}, DefaultLimits())
	f, ok := err.(*Failure)
	if !ok || f.Kind != FailureBackendInit {
		t.Fatalf("expected BackendInit, got %v", err)
	}
}
