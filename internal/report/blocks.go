package report

import (
	"regexp"
	"strings"
)

// labelLine matches "**Label:** value", "**Label**: value" and bulleted forms.
var labelLine = regexp.MustCompile(`^\s*(?:[-*+]\s+)?\*\*([^*\n]+?)\*\*\s*(.*)$`)

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*+•]|\d+[.)])\s+`)

type field struct {
	key   string
	lines []string
}

// block is the labeled content under one heading.
type block struct {
	fields []field
	free   []string
}

func parseBlock(lines []string) block {
	var b block
	current := -1
	for _, raw := range lines {
		line := strings.TrimRight(raw, " \t")
		if key, value, ok := splitLabel(line); ok {
			b.fields = append(b.fields, field{key: key})
			current = len(b.fields) - 1
			if value != "" {
				b.fields[current].lines = append(b.fields[current].lines, value)
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if isRule(line) {
			current = -1
			continue
		}
		if current >= 0 {
			b.fields[current].lines = append(b.fields[current].lines, line)
		} else {
			b.free = append(b.free, line)
		}
	}
	return b
}

func splitLabel(line string) (key, value string, ok bool) {
	m := labelLine.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	label := strings.TrimSpace(m[1])
	rest := strings.TrimSpace(m[2])
	switch {
	case strings.HasSuffix(label, ":"):
		label = strings.TrimSpace(strings.TrimSuffix(label, ":"))
	case strings.HasPrefix(rest, ":"):
		rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
	default:
		return "", "", false
	}
	if label == "" {
		return "", "", false
	}
	return normalizeLabel(label), rest, true
}

func normalizeLabel(label string) string {
	label = strings.ToLower(label)
	label = strings.ReplaceAll(label, "-", " ")
	return strings.Join(strings.Fields(label), " ")
}

func isRule(line string) bool {
	t := strings.TrimSpace(line)
	return len(t) >= 3 && (strings.Trim(t, "-") == "" || strings.Trim(t, "*") == "" || strings.Trim(t, "_") == "")
}

// value returns the first field matching any of keys, joined as text.
func (b block) value(keys ...string) string {
	for _, k := range keys {
		for _, f := range b.fields {
			if f.key == k {
				return joinText(f.lines)
			}
		}
	}
	return ""
}

// items gathers list items from every field matching keys, in document order.
func (b block) items(keys ...string) []string {
	var out []string
	for _, f := range b.fields {
		for _, k := range keys {
			if f.key == k {
				out = append(out, splitItems(f.lines)...)
				break
			}
		}
	}
	return out
}

func joinText(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(bulletPrefix.ReplaceAllString(l, ""))
		if l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " ")
}

// splitItems treats bullet lines as items; otherwise splits prose on ";".
func splitItems(lines []string) []string {
	hasBullets := false
	for _, l := range lines {
		if bulletPrefix.MatchString(l) {
			hasBullets = true
			break
		}
	}
	var out []string
	if hasBullets {
		for _, l := range lines {
			if bulletPrefix.MatchString(l) {
				item := strings.TrimSpace(bulletPrefix.ReplaceAllString(l, ""))
				if item != "" {
					out = append(out, item)
				}
				continue
			}
			l = strings.TrimSpace(l)
			if l == "" {
				continue
			}
			if len(out) == 0 {
				out = append(out, l)
			} else {
				out[len(out)-1] += " " + l
			}
		}
		return out
	}
	for _, part := range strings.Split(joinText(lines), ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// paragraphs joins lines into blank-line separated paragraphs.
func paragraphs(lines []string) string {
	var paras []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			paras = append(paras, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" || isRule(t) {
			flush()
			continue
		}
		cur = append(cur, t)
	}
	flush()
	return strings.Join(paras, "\n\n")
}

var numberPrefix = regexp.MustCompile(`^\s*\d+\s*[.):-]\s*`)

var snakeKey = regexp.MustCompile(`^[a-z0-9]+(?:_[a-z0-9]+)+$`)

// cleanTitle drops list numbering and turns snake_case keys into words.
func cleanTitle(title string) string {
	title = strings.TrimSpace(numberPrefix.ReplaceAllString(title, ""))
	if snakeKey.MatchString(title) {
		words := strings.Split(title, "_")
		for i, w := range words {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		return strings.Join(words, " ")
	}
	return title
}
