package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	return path
}

func TestRunReportPrintsSections(t *testing.T) {
	path := writeTemp(t, "report.md", "## Overview\nCalm and focused.\n")
	out, err := runReport(path, "")
	if err != nil {
		t.Fatalf("runReport: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}

	html, err := runReport(path, "nope")
	if err == nil {
		t.Fatalf("expected unknown section error, got %s", html)
	}
}

func TestRunLookupRejectsForeignVocabulary(t *testing.T) {
	path := writeTemp(t, "prompt.txt", "LOOKUP TABLE:\n{\"zodiac\": \"x\", \"tarot\": \"y\"}\n")
	if _, err := runLookup(path, "k12", ""); err == nil {
		t.Fatalf("expected rejection for unrelated keys")
	}
	if _, err := runLookup(path, "nonexistent", ""); err == nil || !strings.Contains(err.Error(), "vocabulary") {
		t.Fatalf("expected vocabulary error, got %v", err)
	}
}
