package main

// Offline helpers for report and configuration work:
//   go run ./cmd/reporttool -report report.md
//   go run ./cmd/reporttool -lookup prompts.txt -module k12
//   go run ./cmd/reporttool -doc notes.pdf -module k12 -provider openai -model gpt-4o-mini

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"assessment-backend/internal/analysis"
	"assessment-backend/internal/bootstrap"
	"assessment-backend/internal/catalog"
	"assessment-backend/internal/extract"
	"assessment-backend/internal/lookup"
	"assessment-backend/internal/report"
	"assessment-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	reportPath := flag.String("report", "", "Path to a markdown report to parse")
	section := flag.String("section", "", "Render one section as HTML instead of printing JSON")
	lookupPath := flag.String("lookup", "", "Path to a prompt text holding a lookup table")
	docPath := flag.String("doc", "", "Path to a document to extract and analyze")
	module := flag.String("module", "k12", "Module type for lookup validation and analysis")
	catalogPath := flag.String("catalog", cfg.ModuleCatalogPath, "Module catalog YAML (optional)")
	provider := flag.String("provider", cfg.AnalysisProvider, "Analysis provider")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	outPath := flag.String("out", "", "Path to write output (optional)")
	flag.Parse()

	var (
		out []byte
		err error
	)
	switch {
	case strings.TrimSpace(*reportPath) != "":
		out, err = runReport(*reportPath, *section)
	case strings.TrimSpace(*lookupPath) != "":
		out, err = runLookup(*lookupPath, *module, *catalogPath)
	case strings.TrimSpace(*docPath) != "":
		cfg.AnalysisProvider = *provider
		cfg.LLMModel = *model
		out, err = runAnalyze(cfg, *docPath, *module)
	default:
		exitErr("one of -report, -lookup or -doc is required")
	}
	if err != nil {
		exitErr(err.Error())
	}

	if strings.TrimSpace(*outPath) != "" {
		if err := os.WriteFile(*outPath, out, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
		return
	}
	_, _ = os.Stdout.Write(out)
	_, _ = os.Stdout.Write([]byte("\n"))
}

func runReport(path, section string) ([]byte, error) {
	raw, err := readInput(path)
	if err != nil {
		return nil, err
	}
	sections := report.Parse(string(raw))
	if strings.TrimSpace(section) != "" {
		html, err := report.RenderSection(sections, section)
		if err != nil {
			return nil, err
		}
		return []byte(html), nil
	}
	return json.MarshalIndent(sections, "", "  ")
}

func runLookup(path, module, catalogPath string) ([]byte, error) {
	raw, err := readInput(path)
	if err != nil {
		return nil, err
	}
	cat := catalog.Default()
	if strings.TrimSpace(catalogPath) != "" {
		if cat, err = catalog.Load(catalogPath); err != nil {
			return nil, err
		}
	}
	vocab := cat.Vocabulary(module)
	if len(vocab) == 0 {
		return nil, fmt.Errorf("module %q has no lookup vocabulary", module)
	}
	table := lookup.ExtractValidated(string(raw), vocab)
	if table == nil {
		return nil, fmt.Errorf("no lookup table matching module %q found in %s", module, path)
	}
	return json.MarshalIndent(table, "", "  ")
}

func runAnalyze(cfg config.Config, path, module string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	ctx := context.Background()
	texts, err := extract.NewStage(cfg.ExtractMinChars).Extract(ctx, []extract.File{
		extract.BytesFile(filepath.Base(path), "", data),
	})
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	client, err := bootstrap.BuildLLM(cfg)
	if err != nil {
		return nil, err
	}
	result := analysis.NewInvoker(client).Invoke(ctx, analysis.BuildRequest(texts, analysis.Meta{ModuleType: module}))
	return json.MarshalIndent(struct {
		Result   analysis.Result `json:"result"`
		Sections report.Sections `json:"sections"`
	}{
		Result:   result,
		Sections: report.Parse(result.MarkdownReport),
	}, "", "  ")
}

// readInput reads path, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
