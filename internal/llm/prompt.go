package llm

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed prompts/analysis_v1.txt
var analysisPromptV1 string

// PromptVersion identifies the embedded analysis prompt.
const PromptVersion = "v1"

// NoFindingsMarker is the phrase the prompt asks for when nothing is validated.
const NoFindingsMarker = "no validated findings"

// SystemPrompt renders the analysis instructions for a module.
func SystemPrompt(moduleType string) string {
	module := strings.TrimSpace(moduleType)
	if module == "" {
		module = "general"
	}
	return strings.NewReplacer("{{MODULE_TYPE}}", module).Replace(analysisPromptV1)
}

// UserPrompt lays out the case metadata followed by each document.
func UserPrompt(req Request) string {
	var b strings.Builder
	name := strings.TrimSpace(req.StudentName)
	if name == "" {
		name = "N/A"
	}
	grade := strings.TrimSpace(req.StudentGrade)
	if grade == "" {
		grade = "N/A"
	}
	fmt.Fprintf(&b, "Student Name: %s\nGrade: %s\nModule: %s\n", name, grade, req.ModuleType)
	for i, doc := range req.Documents {
		fmt.Fprintf(&b, "\n--- Document %d: %s ---\n%s\n", i+1, doc.Filename, doc.Content)
	}
	return b.String()
}

// ResponseFromMarkdown picks the status a bare markdown report implies.
func ResponseFromMarkdown(markdown string) Response {
	status := "completed"
	if strings.Contains(strings.ToLower(markdown), NoFindingsMarker) {
		status = "completed_no_findings"
	}
	return Response{Status: status, MarkdownReport: markdown}
}
