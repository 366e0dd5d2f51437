package report

import (
	"fmt"

	"assessment-backend/internal/shared/telemetry"
)

// Dialect is one known markdown layout of the analysis report.
type Dialect interface {
	Name() string
	// Parse returns ok=false when the document is not in this dialect.
	Parse(doc *document) (Sections, bool)
}

// DefaultDialect names the placeholder result.
const DefaultDialect = "default"

// dialects are tried in order; the first one producing content wins.
var dialects = []Dialect{
	findingsDialect{},
	accordionDialect{},
}

// Parse converts a markdown report into Sections. It never panics; input in
// no known dialect yields the placeholder with whatever case info was found.
func Parse(markdown string) (out Sections) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("report.parse_panic", map[string]any{"panic": fmt.Sprint(r)})
			out = Placeholder()
		}
	}()

	doc := newDocument(markdown)
	info := extractCaseInfo(doc.lines)
	for _, d := range dialects {
		sections, ok := d.Parse(doc)
		if !ok || sections.empty() {
			continue
		}
		sections.CaseInfo = info
		sections.Dialect = d.Name()
		return sections.normalize()
	}
	out = Placeholder()
	out.CaseInfo = info
	return out
}

// Placeholder is the fixed result for reports with no recognizable content.
func Placeholder() Sections {
	return Sections{
		CaseInfo: defaultCaseInfo(),
		Overview: "No report content is available for this case yet.",
		Dialect:  DefaultDialect,
	}.normalize()
}
