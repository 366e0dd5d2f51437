package cases

import (
	"strings"
	"time"

	"assessment-backend/internal/analysis"
)

// Status is the lifecycle state of a case.
type Status string

const (
	StatusDraft                   Status = "draft"
	StatusProcessing              Status = "processing"
	StatusCompleted               Status = "completed"
	StatusCompletedNoFindings     Status = "completed_no_findings"
	StatusDocumentProcessingError Status = "document_processing_error"
	StatusError                   Status = "error"
)

// ParseStatus maps a stored value to a Status. Unknown values read as error.
func ParseStatus(raw string) Status {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusDraft, StatusProcessing, StatusCompleted, StatusCompletedNoFindings,
		StatusDocumentProcessingError, StatusError:
		return s
	default:
		return StatusError
	}
}

// Terminal reports whether s ends an attempt.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedNoFindings, StatusDocumentProcessingError, StatusError:
		return true
	}
	return false
}

// Completion reports whether s is a successful terminal status.
func (s Status) Completion() bool {
	return s == StatusCompleted || s == StatusCompletedNoFindings
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
// Every attempt enters through processing; only processing may reach a terminal status.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusProcessing:
		return from == StatusDraft || from.Terminal()
	case StatusCompleted, StatusCompletedNoFindings, StatusDocumentProcessingError, StatusError:
		return from == StatusProcessing
	}
	return false
}

// statusFor maps an analysis outcome to the case status it produces.
func statusFor(r analysis.Result) Status {
	switch r.Status {
	case analysis.StatusCompleted:
		return StatusCompleted
	case analysis.StatusCompletedNoFindings:
		return StatusCompletedNoFindings
	default:
		return StatusError
	}
}

// Document describes one uploaded file attached to a case.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	Size       int64     `json:"size"`
	UploadDate time.Time `json:"uploadDate"`
	StorageKey string    `json:"-"`
}

// AssessmentCase is the unit of work moved through the pipeline.
type AssessmentCase struct {
	ID                  string           `json:"id"`
	LegacyID            string           `json:"legacyId,omitempty"`
	ModuleType          string           `json:"moduleType"`
	SubjectName         string           `json:"subjectName,omitempty"`
	Grade               string           `json:"grade,omitempty"`
	Status              Status           `json:"status"`
	Documents           []Document       `json:"documents"`
	PurgedDocumentCount int              `json:"purgedDocumentCount"`
	ProcessingError     string           `json:"processingError,omitempty"`
	AnalysisResult      *analysis.Result `json:"analysisResult,omitempty"`
	CreatedDate         time.Time        `json:"createdDate"`
	LastUpdated         time.Time        `json:"lastUpdated"`
}

// clone returns a copy that shares no mutable state with c.
func (c AssessmentCase) clone() AssessmentCase {
	out := c
	if c.Documents != nil {
		out.Documents = append([]Document(nil), c.Documents...)
	}
	if c.AnalysisResult != nil {
		r := *c.AnalysisResult
		out.AnalysisResult = &r
	}
	return out
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Status              *Status
	Documents           *[]Document
	AppendDocuments     []Document
	PurgedDocumentCount *int
	ProcessingError     *string
	Result              *analysis.Result
	ClearResult         bool
}

// apply mutates c with the patch and refreshes LastUpdated.
func (p Patch) apply(c *AssessmentCase, now time.Time) {
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Documents != nil {
		c.Documents = append([]Document{}, (*p.Documents)...)
	}
	if len(p.AppendDocuments) > 0 {
		// Appended to the row as read by the repo, not to the caller's copy.
		docs := make([]Document, 0, len(c.Documents)+len(p.AppendDocuments))
		docs = append(docs, c.Documents...)
		c.Documents = append(docs, p.AppendDocuments...)
	}
	if p.PurgedDocumentCount != nil {
		c.PurgedDocumentCount = *p.PurgedDocumentCount
	}
	if p.ProcessingError != nil {
		c.ProcessingError = *p.ProcessingError
	}
	if p.ClearResult {
		c.AnalysisResult = nil
	}
	if p.Result != nil {
		r := *p.Result
		c.AnalysisResult = &r
	}
	c.LastUpdated = now.UTC()
}
