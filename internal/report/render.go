package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ErrUnknownSection is returned for section names RenderSection does not know.
var ErrUnknownSection = errors.New("unknown report section")

// SectionNames lists the addressable sections in display order.
var SectionNames = []string{"overview", "strengths", "challenges", "strategies"}

var htmlRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// SectionMarkdown rebuilds one section as markdown.
func SectionMarkdown(s Sections, name string) (string, error) {
	var b strings.Builder
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "overview":
		b.WriteString(s.Overview)
		b.WriteString("\n")
	case "strengths":
		writeFindings(&b, s.Strengths)
	case "challenges":
		writeFindings(&b, s.Challenges)
	case "strategies":
		for _, st := range s.Strategies {
			fmt.Fprintf(&b, "### %s\n\n", st.Title)
			if st.Description != "" {
				fmt.Fprintf(&b, "%s\n\n", st.Description)
			}
		}
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownSection, name)
	}
	return b.String(), nil
}

func writeFindings(b *strings.Builder, findings []Finding) {
	for _, f := range findings {
		fmt.Fprintf(b, "### %s\n\n", f.Title)
		if f.Description != "" {
			fmt.Fprintf(b, "%s\n\n", f.Description)
		}
		if f.Evidence != "" {
			fmt.Fprintf(b, "**Evidence:** %s\n\n", f.Evidence)
		}
		writeList(b, "What You See", f.ObservableSigns)
		writeList(b, "What to Do", f.RecommendedActions)
		writeList(b, "What to Avoid", f.Cautions)
	}
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:**\n\n", label)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

// RenderSection renders one section to HTML for independent display.
func RenderSection(s Sections, name string) (string, error) {
	md, err := SectionMarkdown(s, name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := htmlRenderer.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
