package report

import (
	"regexp"
	"strings"
)

// accordionDialect reads the older "## Section N: Strengths" layout with
// "### <title>" items and What You See / What to Do labels.
type accordionDialect struct{}

func (accordionDialect) Name() string { return "legacy_accordion" }

var sectionPrefix = regexp.MustCompile(`(?i)^section\s+\d+\s*[:.\x{2013}\x{2014}-]?\s*`)

type sectionKind int

const (
	sectionUnknown sectionKind = iota
	sectionOverview
	sectionStrengths
	sectionChallenges
	sectionStrategies
)

func accordionKind(headingText string) (sectionKind, bool) {
	numbered := sectionPrefix.MatchString(headingText)
	t := strings.ToLower(sectionPrefix.ReplaceAllString(headingText, ""))
	switch {
	case strings.Contains(t, "strength"):
		return sectionStrengths, numbered
	case strings.Contains(t, "challenge"), strings.Contains(t, "areas of need"), strings.Contains(t, "needs"):
		return sectionChallenges, numbered
	case strings.Contains(t, "strateg"), strings.Contains(t, "recommendation"):
		return sectionStrategies, numbered
	case strings.Contains(t, "overview"), strings.Contains(t, "summary"):
		return sectionOverview, numbered
	default:
		return sectionUnknown, numbered
	}
}

func (accordionDialect) Parse(doc *document) (Sections, bool) {
	var out Sections
	matched := false
	for i, h := range doc.headings {
		kind, numbered := accordionKind(h.text)
		// Only "Section N:" headings or top-level named sections open a
		// section; nested headings belong to their parent.
		if kind == sectionUnknown || (!numbered && h.level > 2) {
			continue
		}
		end := doc.sectionEnd(i)
		switch kind {
		case sectionOverview:
			if out.Overview == "" {
				out.Overview = paragraphs(doc.slice(h.body, firstChildOrEnd(doc, i)))
			}
		case sectionStrategies:
			if len(out.Strategies) == 0 {
				out.Strategies = parseStrategies(doc, i)
			}
		case sectionStrengths, sectionChallenges:
			items := accordionItems(doc, i, end)
			if kind == sectionStrengths {
				out.Strengths = append(out.Strengths, items...)
			} else {
				out.Challenges = append(out.Challenges, items...)
			}
		}
		matched = true
	}
	return out, matched
}

func accordionItems(doc *document, idx, end int) []Finding {
	var out []Finding
	for _, c := range doc.children(idx, end) {
		h := doc.headings[c]
		b := parseBlock(doc.slice(h.body, doc.blockEnd(c, end)))
		f, _ := findingFromBlock(h.text, b)
		if f.Title == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}
