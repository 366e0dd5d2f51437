package analysis

import (
	"strings"

	"assessment-backend/internal/extract"
	"assessment-backend/internal/llm"
)

// Meta is the case metadata forwarded with the documents.
type Meta struct {
	ModuleType  string
	Grade       string
	SubjectName string
}

// BuildRequest assembles the canonical analysis request. Documents with no
// content after trimming are dropped; order is preserved.
func BuildRequest(texts []extract.DocumentText, meta Meta) llm.Request {
	docs := make([]llm.Document, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		docs = append(docs, llm.Document{Filename: t.Filename, Content: t.Content})
	}
	return llm.Request{
		Documents:    docs,
		ModuleType:   strings.ToLower(strings.TrimSpace(meta.ModuleType)),
		StudentGrade: strings.TrimSpace(meta.Grade),
		StudentName:  strings.TrimSpace(meta.SubjectName),
	}
}
