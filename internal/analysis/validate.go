package analysis

import (
	"encoding/json"
	"strings"
)

var reportKeys = []string{"markdownReport", "markdown_report", "report", "markdown"}

var errorKeys = []string{"errorMessage", "error_message", "error", "message"}

// Validate normalizes a raw provider reply into a Result with exactly one of
// the three status tags. AnalysisDate is left for the caller to stamp.
func Validate(raw json.RawMessage) Result {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Result{Status: StatusFailed, ErrorMessage: "analysis response is not a JSON object"}
	}

	report := firstString(fields, reportKeys)
	msg := firstString(fields, errorKeys)
	status, known := normalizeStatus(firstString(fields, []string{"status"}))

	switch {
	case !known:
		if strings.TrimSpace(msg) == "" {
			msg = "analysis response has unknown status"
		}
		return Result{Status: StatusFailed, ErrorMessage: msg}
	case status == StatusFailed:
		if strings.TrimSpace(msg) == "" {
			msg = defaultFailureMessage
		}
		return Result{Status: StatusFailed, ErrorMessage: msg, MarkdownReport: report}
	case strings.TrimSpace(report) == "":
		return Result{Status: StatusFailed, ErrorMessage: "analysis response contained an empty report"}
	default:
		return Result{Status: status, MarkdownReport: report}
	}
}

func normalizeStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "complete", "success", "ok":
		return StatusCompleted, true
	case "completed_no_findings", "no_findings":
		return StatusCompletedNoFindings, true
	case "failed", "error", "failure":
		return StatusFailed, true
	default:
		return "", false
	}
}

// firstString returns the first key holding a JSON string. An error object
// like {"message": "..."} is unwrapped.
func firstString(fields map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		val, ok := fields[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(val, &s); err == nil {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(val, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return ""
}
