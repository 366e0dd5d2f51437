package report

import "strings"

const caseInfoScanLines = 40

func defaultCaseInfo() CaseInfo {
	return CaseInfo{
		SubjectName: "Student",
		Grade:       "Not specified",
		Period:      "Not specified",
		Author:      "Not specified",
		DateCreated: "",
		DateUpdated: "",
	}
}

var caseInfoLabels = map[string]func(*CaseInfo) *string{
	"student name":    func(c *CaseInfo) *string { return &c.SubjectName },
	"student":         func(c *CaseInfo) *string { return &c.SubjectName },
	"name":            func(c *CaseInfo) *string { return &c.SubjectName },
	"subject name":    func(c *CaseInfo) *string { return &c.SubjectName },
	"grade":           func(c *CaseInfo) *string { return &c.Grade },
	"grade level":     func(c *CaseInfo) *string { return &c.Grade },
	"period":          func(c *CaseInfo) *string { return &c.Period },
	"class period":    func(c *CaseInfo) *string { return &c.Period },
	"school year":     func(c *CaseInfo) *string { return &c.Period },
	"author":          func(c *CaseInfo) *string { return &c.Author },
	"prepared by":     func(c *CaseInfo) *string { return &c.Author },
	"evaluator":       func(c *CaseInfo) *string { return &c.Author },
	"date":            func(c *CaseInfo) *string { return &c.DateCreated },
	"date created":    func(c *CaseInfo) *string { return &c.DateCreated },
	"report date":     func(c *CaseInfo) *string { return &c.DateCreated },
	"date updated":    func(c *CaseInfo) *string { return &c.DateUpdated },
	"last updated":    func(c *CaseInfo) *string { return &c.DateUpdated },
	"updated":         func(c *CaseInfo) *string { return &c.DateUpdated },
	"date of report":  func(c *CaseInfo) *string { return &c.DateCreated },
	"assessment date": func(c *CaseInfo) *string { return &c.DateCreated },
}

// extractCaseInfo scans the head of the document for labeled lines. Each
// field keeps its first value and falls back to its own default.
func extractCaseInfo(lines []string) CaseInfo {
	var found CaseInfo
	limit := len(lines)
	if limit > caseInfoScanLines {
		limit = caseInfoScanLines
	}
	for _, raw := range lines[:limit] {
		line := strings.ReplaceAll(raw, "*", "")
		line = strings.TrimLeft(strings.TrimSpace(line), "#-+• \t")
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		target, known := caseInfoLabels[normalizeLabel(label)]
		if !known {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if field := target(&found); *field == "" {
			*field = value
		}
	}

	out := defaultCaseInfo()
	for _, pair := range [][2]*string{
		{&out.SubjectName, &found.SubjectName},
		{&out.Grade, &found.Grade},
		{&out.Period, &found.Period},
		{&out.Author, &found.Author},
		{&out.DateCreated, &found.DateCreated},
		{&out.DateUpdated, &found.DateUpdated},
	} {
		if *pair[1] != "" {
			*pair[0] = *pair[1]
		}
	}
	return out
}
