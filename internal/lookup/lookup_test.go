package lookup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type staticVocab map[string][]string

func (s staticVocab) Vocabulary(moduleType string) []string { return s[moduleType] }

func TestExtractLookupTable(t *testing.T) {
	text := "Prompt series notes.\nLOOKUP TABLE (v1)\n" +
		`{"attention": {"label": "Attention", "signals": ["drifts"]}, "memory_deficit": {"label": "Memory"}}` +
		"\nTrailing prose."
	table := Extract(text)
	if table == nil {
		t.Fatalf("expected table")
	}
	if len(table) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(table))
	}
	if _, ok := table["attention"]; !ok {
		t.Fatalf("missing attention key")
	}
	if _, ok := table["memory_deficit"]; !ok {
		t.Fatalf("missing memory_deficit key")
	}
}

func TestExtractObjectAfterHeadingOnSameLine(t *testing.T) {
	body := `{"attention": {"label": "Attention"}, "memory_deficit": {"label": "Memory"}}`
	tests := []struct {
		name string
		text string
	}{
		{name: "same line", text: "LOOKUP TABLE (v1): " + body},
		{name: "after prose", text: "Intro text. LOOKUP TABLE (v1)\n" + body},
		{name: "markdown heading", text: "### Lookup Table\n\n" + body},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := Extract(tt.text)
			if len(table) != 2 {
				t.Fatalf("expected 2-key table, got %#v", table)
			}
		})
	}
}

func TestExtractHandlesBracesInStrings(t *testing.T) {
	text := "## Barrier Glossary\n" + `{"attention": {"note": "uses } and { and \" quotes"}, "x": 1}` + " and then {junk"
	table := Extract(text)
	if table == nil || len(table) != 2 {
		t.Fatalf("expected 2-key table, got %#v", table)
	}
	inner := table["attention"].(map[string]any)
	if inner["note"] != `uses } and { and " quotes` {
		t.Fatalf("unexpected note %q", inner["note"])
	}
}

func TestExtractUnbalancedReturnsNil(t *testing.T) {
	cases := []string{
		"LOOKUP TABLE\n{\"attention\": {\"a\": 1}",
		"LOOKUP TABLE\n{\"attention\": \"}\"",
		"LOOKUP TABLE\nno braces here",
		"no heading {\"attention\": 1}",
		"LOOKUP TABLE\n{attention: 1}",
		"",
	}
	for _, c := range cases {
		if got := Extract(c); got != nil {
			t.Fatalf("expected nil for %q, got %#v", c, got)
		}
	}
}

func TestExtractHeadingOrder(t *testing.T) {
	text := "INFERENCE TRIGGERS\n{\"first\": 1}\nLOOKUP TABLE\n{\"second\": 2}"
	table := Extract(text)
	if _, ok := table["second"]; !ok {
		t.Fatalf("expected LOOKUP TABLE pattern to win, got %#v", table)
	}
}

func TestValidate(t *testing.T) {
	vocab := []string{"attention", "memory_deficit", "processing_speed"}
	if !Validate(Table{"Attention": 1, "Memory Deficit": 2}, vocab) {
		t.Fatalf("expected normalized keys to validate")
	}
	if Validate(Table{"colour": 1, "size": 2, "attention": 3}, vocab) {
		t.Fatalf("expected low overlap to fail")
	}
	if Validate(Table{"attention": 1}, nil) {
		t.Fatalf("expected empty vocabulary to fail")
	}
	if ExtractValidated("LOOKUP TABLE\n{\"foo\": 1}", vocab) != nil {
		t.Fatalf("expected unrelated table to be rejected")
	}
}

func TestRegistryImportAndCleanup(t *testing.T) {
	vocab := staticVocab{"k12": {"attention", "memory_deficit"}}
	reg := NewRegistry(vocab)

	if _, ok := reg.Import("K12", "triggers", "LOOKUP TABLE\n{\"attention\": 1, \"memory_deficit\": 2}"); !ok {
		t.Fatalf("expected import to succeed")
	}
	if _, ok := reg.Import("k12", "junk", "LOOKUP TABLE\n{\"foo\": 1}"); ok {
		t.Fatalf("expected junk import to be rejected")
	}
	if names := reg.Names("k12"); len(names) != 1 || names[0] != "triggers" {
		t.Fatalf("unexpected names %v", names)
	}

	vocab["k12"] = []string{"processing_speed"}
	if err := reg.Cleanup(context.Background(), "k12"); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, ok := reg.Get("k12", "triggers"); ok {
		t.Fatalf("expected stale table to be removed")
	}
}

func TestRegistryCleanupHonorsContext(t *testing.T) {
	reg := NewRegistry(staticVocab{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := reg.Cleanup(ctx, "k12"); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestRegistryLoadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "k12"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, "k12", name), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("glossary.md", "# BARRIER GLOSSARY\n{\"attention\": {\"label\": \"Attention\"}}")
	write("ignored.json", "{\"attention\": 1}")
	write("bad.txt", "no table")

	reg := NewRegistry(staticVocab{"k12": {"attention"}})
	n, err := reg.LoadDir(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 import, got %d", n)
	}
	if _, ok := reg.Get("k12", "glossary"); !ok {
		t.Fatalf("expected glossary table")
	}
}
