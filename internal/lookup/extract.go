package lookup

import (
	"encoding/json"
	"regexp"
	"strings"

	"assessment-backend/internal/catalog"
)

// Table maps a category key to an arbitrary JSON value.
type Table map[string]any

// headingPatterns locate a table section. Order matters: the first pattern
// with a match wins, even if a later pattern matches earlier in the text.
// Only the heading token is matched, so the object may follow on the same
// line and the heading may sit after prose.
var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)LOOKUP\s+TABLE\b(?:\s*\([^)]*\))?`),
	regexp.MustCompile(`(?i)BARRIER\s+GLOSSARY\b(?:\s*\([^)]*\))?`),
	regexp.MustCompile(`(?i)INFERENCE\s+TRIGGERS?\b(?:\s*\([^)]*\))?`),
	regexp.MustCompile(`(?i)CATEGORY\s+(?:MAP|MAPPING)\b(?:\s*\([^)]*\))?`),
}

// MinOverlap is the share of table keys that must be in the vocabulary.
const MinOverlap = 0.5

// Extract finds the first lookup table in free-form text. It returns nil
// when no heading matches, the braces after it do not balance, or the span
// is not a JSON object.
func Extract(text string) Table {
	section, ok := locate(text)
	if !ok {
		return nil
	}
	span, ok := balancedObject(section)
	if !ok {
		return nil
	}
	var t Table
	if err := json.Unmarshal([]byte(span), &t); err != nil || t == nil {
		return nil
	}
	return t
}

func locate(text string) (string, bool) {
	for _, re := range headingPatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			return text[loc[1]:], true
		}
	}
	return "", false
}

// balancedObject returns the span from the first '{' to its matching '}',
// ignoring braces inside JSON strings.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Validate reports whether enough of the table's keys belong to vocabulary.
func Validate(t Table, vocabulary []string) bool {
	if len(t) == 0 || len(vocabulary) == 0 {
		return false
	}
	known := make(map[string]struct{}, len(vocabulary))
	for _, v := range vocabulary {
		known[catalog.NormalizeKey(v)] = struct{}{}
	}
	hits := 0
	for k := range t {
		if _, ok := known[catalog.NormalizeKey(k)]; ok {
			hits++
		}
	}
	return hits > 0 && float64(hits)/float64(len(t)) >= MinOverlap
}

// ExtractValidated extracts a table and keeps it only if it validates.
func ExtractValidated(text string, vocabulary []string) Table {
	t := Extract(text)
	if t == nil || !Validate(t, vocabulary) {
		return nil
	}
	return t
}
