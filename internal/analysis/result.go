package analysis

import (
	"strings"
	"time"
)

// Status is the outcome tag of one analysis attempt.
type Status string

const (
	StatusCompleted           Status = "completed"
	StatusCompletedNoFindings Status = "completed_no_findings"
	StatusFailed              Status = "failed"
)

// Result is the canonical, validated analysis outcome stored on a case.
type Result struct {
	AnalysisDate   time.Time `json:"analysisDate"`
	Status         Status    `json:"status"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	MarkdownReport string    `json:"markdownReport"`
}

// Succeeded reports whether the result is one of the completion statuses.
func (r Result) Succeeded() bool {
	return r.Status == StatusCompleted || r.Status == StatusCompletedNoFindings
}

// Failed builds a failed result carrying msg unchanged.
func Failed(msg string, at time.Time) Result {
	if strings.TrimSpace(msg) == "" {
		msg = defaultFailureMessage
	}
	return Result{AnalysisDate: at.UTC(), Status: StatusFailed, ErrorMessage: msg}
}

const defaultFailureMessage = "analysis failed without an error message"

const maxMessageLen = 500

// SanitizeMessage collapses newlines and caps the length of an error message
// for log fields. Stored messages are never sanitized.
func SanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	if len(msg) > maxMessageLen {
		msg = strings.ToValidUTF8(msg[:maxMessageLen], "")
	}
	return msg
}
