package report

import (
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type heading struct {
	level int
	text  string
	line  int
	body  int // first line after the heading
}

// document is a markdown source split into lines plus its heading outline.
// Headings come from the goldmark AST so fenced code never counts.
type document struct {
	lines    []string
	headings []heading
}

var mdParser = goldmark.New().Parser()

func newDocument(src string) *document {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	doc := &document{lines: strings.Split(src, "\n")}

	starts := make([]int, 0, len(doc.lines))
	offset := 0
	for _, l := range doc.lines {
		starts = append(starts, offset)
		offset += len(l) + 1
	}
	lineOf := func(pos int) int {
		return sort.Search(len(starts), func(i int) bool { return starts[i] > pos }) - 1
	}

	raw := []byte(src)
	root := mdParser.Parse(text.NewReader(raw))
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		segs := h.Lines()
		if segs.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		seg := segs.At(0)
		first := lineOf(seg.Start)
		// Only ATX headings count; "text\n---" is a thematic break in these reports.
		if first < 0 || !strings.Contains(string(raw[starts[first]:seg.Start]), "#") {
			return ast.WalkSkipChildren, nil
		}
		doc.headings = append(doc.headings, heading{
			level: h.Level,
			text:  cleanHeadingText(string(seg.Value(raw))),
			line:  first,
			body:  first + 1,
		})
		return ast.WalkSkipChildren, nil
	})
	return doc
}

func cleanHeadingText(s string) string {
	s = strings.ReplaceAll(s, "*", "")
	s = strings.ReplaceAll(s, "`", "")
	return strings.TrimSpace(s)
}

// sectionEnd returns the line where the section opened by headings[idx]
// ends: the next heading at the same or a shallower level.
func (d *document) sectionEnd(idx int) int {
	level := d.headings[idx].level
	for j := idx + 1; j < len(d.headings); j++ {
		if d.headings[j].level <= level {
			return d.headings[j].line
		}
	}
	return len(d.lines)
}

// children returns heading indexes inside [from, to) one level below parent,
// taking the shallowest level present so "####" works under "###" or "##".
func (d *document) children(parent int, to int) []int {
	from := d.headings[parent].body
	minLevel := 0
	for j := parent + 1; j < len(d.headings); j++ {
		h := d.headings[j]
		if h.line >= to {
			break
		}
		if h.line < from || h.level <= d.headings[parent].level {
			continue
		}
		if minLevel == 0 || h.level < minLevel {
			minLevel = h.level
		}
	}
	if minLevel == 0 {
		return nil
	}
	var out []int
	for j := parent + 1; j < len(d.headings); j++ {
		h := d.headings[j]
		if h.line >= to {
			break
		}
		if h.level == minLevel {
			out = append(out, j)
		}
	}
	return out
}

// blockEnd is the end line of child heading idx bounded by limit.
func (d *document) blockEnd(idx, limit int) int {
	end := d.sectionEnd(idx)
	if end > limit {
		return limit
	}
	return end
}

func (d *document) slice(from, to int) []string {
	if from < 0 {
		from = 0
	}
	if to > len(d.lines) {
		to = len(d.lines)
	}
	if from >= to {
		return nil
	}
	return d.lines[from:to]
}

// find returns the first heading index whose text satisfies match, or -1.
func (d *document) find(match func(string) bool) int {
	for i, h := range d.headings {
		if match(strings.ToLower(h.text)) {
			return i
		}
	}
	return -1
}
