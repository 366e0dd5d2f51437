package report

import "strings"

// findingsDialect reads "### Validated Findings" reports with one
// sub-heading per finding and bold field labels.
type findingsDialect struct{}

func (findingsDialect) Name() string { return "validated_findings" }

func (findingsDialect) Parse(doc *document) (Sections, bool) {
	root := doc.find(func(t string) bool { return strings.Contains(t, "validated findings") })
	if root < 0 {
		return Sections{}, false
	}
	end := doc.sectionEnd(root)

	var out Sections
	for _, idx := range doc.children(root, end) {
		h := doc.headings[idx]
		b := parseBlock(doc.slice(h.body, doc.blockEnd(idx, end)))
		f, k := findingFromBlock(h.text, b)
		if f.Title == "" {
			continue
		}
		if k == kindStrength {
			out.Strengths = append(out.Strengths, f)
		} else {
			out.Challenges = append(out.Challenges, f)
		}
	}

	out.Overview = overviewSection(doc, root)
	for i, h := range doc.headings {
		if isStrategiesHeading(strings.ToLower(h.text)) && !within(doc, i, root, end) {
			out.Strategies = parseStrategies(doc, i)
			break
		}
	}
	if len(out.Strategies) == 0 {
		out.Strategies = strategiesFromFindings(out.Strengths, out.Challenges)
	}
	return out, true
}

var (
	descriptionKeys = []string{"teacher friendly description", "description", "what it means", "what it looks like"}
	evidenceKeys    = []string{"evidence", "source evidence"}
	signKeys        = []string{"observable behaviors", "observable behaviours", "observable signs", "what you see"}
	actionKeys      = []string{"primary support strategy", "secondary support strategy", "support strategy", "support strategies", "recommended actions", "what to do"}
	cautionKeys     = []string{"implementation caution", "implementation cautions", "caution", "cautions", "what to avoid"}
	kindKeys        = []string{"type", "category", "classification"}
)

func findingFromBlock(title string, b block) (Finding, kind) {
	k := classify(title, b.value(kindKeys...))
	f := Finding{
		Title:              cleanTitle(stripKindPrefix(cleanTitle(title))),
		Description:        b.value(descriptionKeys...),
		Evidence:           b.value(evidenceKeys...),
		ObservableSigns:    b.items(signKeys...),
		RecommendedActions: b.items(actionKeys...),
		Cautions:           b.items(cautionKeys...),
	}
	if f.Description == "" {
		f.Description = paragraphs(b.free)
	}
	return f.normalize(), k
}

func strategiesFromFindings(groups ...[]Finding) []Strategy {
	var out []Strategy
	for _, g := range groups {
		for _, f := range g {
			if len(f.RecommendedActions) == 0 {
				continue
			}
			out = append(out, Strategy{Title: f.Title, Description: f.RecommendedActions[0]})
		}
	}
	return out
}

func isOverviewHeading(t string) bool {
	return strings.Contains(t, "overview") || strings.Contains(t, "summary")
}

func isStrategiesHeading(t string) bool {
	return strings.Contains(t, "strateg") || strings.Contains(t, "recommendation")
}

// overviewSection reads the first overview/summary heading outside the
// section opened by skip.
func overviewSection(doc *document, skip int) string {
	var end int
	if skip >= 0 {
		end = doc.sectionEnd(skip)
	}
	for i, h := range doc.headings {
		if !isOverviewHeading(strings.ToLower(h.text)) {
			continue
		}
		if skip >= 0 && within(doc, i, skip, end) {
			continue
		}
		return paragraphs(doc.slice(h.body, firstChildOrEnd(doc, i)))
	}
	return ""
}

// firstChildOrEnd bounds a heading's own text before any nested heading.
func firstChildOrEnd(doc *document, idx int) int {
	end := doc.sectionEnd(idx)
	if idx+1 < len(doc.headings) && doc.headings[idx+1].line < end {
		return doc.headings[idx+1].line
	}
	return end
}

func within(doc *document, idx, parent, end int) bool {
	return idx == parent || (doc.headings[idx].line > doc.headings[parent].line && doc.headings[idx].line < end)
}

// parseStrategies reads sub-headings as strategies, or list items of the
// form "**Title:** description" when there are none.
func parseStrategies(doc *document, idx int) []Strategy {
	end := doc.sectionEnd(idx)
	var out []Strategy
	for _, c := range doc.children(idx, end) {
		h := doc.headings[c]
		b := parseBlock(doc.slice(h.body, doc.blockEnd(c, end)))
		desc := paragraphs(b.free)
		for _, f := range b.fields {
			if t := joinText(f.lines); t != "" {
				if desc != "" {
					desc += "\n\n"
				}
				desc += t
			}
		}
		out = append(out, Strategy{Title: cleanTitle(h.text), Description: desc})
	}
	if len(out) > 0 {
		return out
	}
	for _, line := range doc.slice(doc.headings[idx].body, end) {
		if !bulletPrefix.MatchString(line) {
			continue
		}
		item := strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if strings.HasPrefix(item, "**") {
			if key, value, ok := splitLabel(item); ok {
				out = append(out, Strategy{Title: displayLabel(item, key), Description: value})
				continue
			}
		}
		if title, desc, ok := strings.Cut(item, ":"); ok && len(title) <= 80 {
			out = append(out, Strategy{Title: strings.TrimSpace(title), Description: strings.TrimSpace(desc)})
			continue
		}
		out = append(out, Strategy{Title: item})
	}
	return out
}

// displayLabel recovers the original casing of a bold label.
func displayLabel(item, key string) string {
	m := labelLine.FindStringSubmatch(item)
	if m == nil {
		return key
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(m[1]), ":"))
}
