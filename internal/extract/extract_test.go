package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(body.String())); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestTextFromBytes_ZipDocxNormalizes(t *testing.T) {
	data := buildDocx(t, "First paragraph.", "Second paragraph.")

	text, err := TextFromBytes(context.Background(), data, "application/zip", "report.docx")
	if err != nil {
		t.Fatalf("expected docx to extract from zip mime, got error: %v", err)
	}
	if text != "First paragraph.\nSecond paragraph." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestTextFromBytes_RealZipRejected(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("notes.txt")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	_, err = TextFromBytes(context.Background(), buf.Bytes(), "application/zip", "notes.zip")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
	if !strings.Contains(err.Error(), "application/zip") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTextFromBytes_PlainTextAndMarkdown(t *testing.T) {
	text, err := TextFromBytes(context.Background(), []byte("\xef\xbb\xbfhello"), "text/plain; charset=utf-8", "a.txt")
	if err != nil || text != "hello" {
		t.Fatalf("unexpected plain result %q %v", text, err)
	}
	text, err = TextFromBytes(context.Background(), []byte("# Title"), "", "notes.md")
	if err != nil || text != "# Title" {
		t.Fatalf("unexpected markdown result %q %v", text, err)
	}
	text, err = TextFromBytes(context.Background(), []byte{'o', 'k', 0xff}, "text/plain", "bad.txt")
	if err != nil || !strings.HasPrefix(text, "ok") {
		t.Fatalf("expected repaired utf8, got %q %v", text, err)
	}
}

func TestTextFromBytes_BrokenPDFIsError(t *testing.T) {
	if _, err := TextFromBytes(context.Background(), []byte("%PDF-1.4 garbage"), "application/pdf", "x.pdf"); err == nil {
		t.Fatalf("expected error for malformed pdf")
	}
}

func TestTextFromBytes_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := TextFromBytes(ctx, []byte("hello"), "text/plain", "a.txt"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStageExtractKeepsOrder(t *testing.T) {
	stage := NewStage(10)
	files := []File{
		BytesFile("one.txt", "text/plain", []byte("the first document body")),
		BytesFile("two.docx", "application/zip", buildDocx(t, "the second document body")),
		BytesFile("three.md", "", []byte("the third document body")),
	}
	docs, err := stage.Extract(context.Background(), files)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := []string{"one.txt", "two.docx", "three.md"}
	for i, d := range docs {
		if d.Filename != want[i] {
			t.Fatalf("doc %d = %q, want %q", i, d.Filename, want[i])
		}
	}
	if docs[1].Content != "the second document body" {
		t.Fatalf("unexpected docx content %q", docs[1].Content)
	}
}

func TestStageExtractEmptyDocuments(t *testing.T) {
	stage := NewStage(0)
	_, err := stage.Extract(context.Background(), []File{
		BytesFile("short.txt", "text/plain", []byte("0123456789")),
	})
	var empty *EmptyDocumentError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyDocumentError, got %v", err)
	}
	if empty.Chars != 10 || empty.Min != DefaultMinChars {
		t.Fatalf("unexpected counts %+v", empty)
	}
}

func TestStageExtractNamesFailingFile(t *testing.T) {
	stage := NewStage(1)
	_, err := stage.Extract(context.Background(), []File{
		BytesFile("ok.txt", "text/plain", []byte("plenty of usable text here")),
		BytesFile("image.png", "image/png", []byte{0x89, 'P', 'N', 'G'}),
	})
	var fileErr *FileError
	if !errors.As(err, &fileErr) {
		t.Fatalf("expected FileError, got %v", err)
	}
	if fileErr.Filename != "image.png" || !strings.Contains(err.Error(), "image.png") {
		t.Fatalf("expected error naming image.png, got %v", err)
	}
}

func TestStageExtractLoadFailure(t *testing.T) {
	var calls atomic.Int32
	stage := NewStage(1)
	_, err := stage.Extract(context.Background(), []File{{
		Name: "remote.pdf",
		Load: func(context.Context) ([]byte, error) {
			calls.Add(1)
			return nil, errors.New("connection refused")
		},
	}})
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Filename != "remote.pdf" {
		t.Fatalf("expected LoadError for remote.pdf, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one load attempt, got %d", calls.Load())
	}
}
