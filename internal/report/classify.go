package report

import (
	"regexp"
	"strings"
)

// strengthWords is the closed vocabulary routing a finding to strengths.
// Anything that does not match is a challenge.
var strengthWords = regexp.MustCompile(`(?i)\b(strengths?|assets?|talents?|gifts?|gifted)\b`)

var kindPrefix = regexp.MustCompile(`(?i)^(strengths?|challenges?|areas? of need|needs?)\s*[:\x{2013}\x{2014}-]\s*`)

type kind int

const (
	kindChallenge kind = iota
	kindStrength
)

// classify prefers an explicit Type/Category label over the title.
func classify(title, label string) kind {
	if strings.TrimSpace(label) != "" {
		if strengthWords.MatchString(label) {
			return kindStrength
		}
		return kindChallenge
	}
	if strengthWords.MatchString(title) {
		return kindStrength
	}
	return kindChallenge
}

func stripKindPrefix(title string) string {
	return strings.TrimSpace(kindPrefix.ReplaceAllString(title, ""))
}
