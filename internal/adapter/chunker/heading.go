package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// headingRule classifies a trimmed, non-blank line. It returns the heading
// level and whether the rule matched.
type headingRule func(line string) (level int, ok bool)

// headingRules are tried in order; the first match wins.
var headingRules = []headingRule{
	markdownHeading,
	colonHeading,
	numberedHeading,
	capsHeading,
}

// classifyHeading reports whether line is a section heading and its level.
func classifyHeading(line string) (int, bool) {
	for _, rule := range headingRules {
		if level, ok := rule(line); ok {
			return level, true
		}
	}
	return 0, false
}

// markdownHeading matches 1-6 '#' followed by whitespace and text, e.g.
// "## Results". The level is the number of '#'.
func markdownHeading(line string) (int, bool) {
	hashes := 0
	for hashes < len(line) && line[hashes] == '#' {
		hashes++
	}
	if hashes == 0 || hashes > 6 {
		return 0, false
	}
	rest := line[hashes:]
	r, size := utf8.DecodeRuneInString(rest)
	if size == 0 || !unicode.IsSpace(r) {
		return 0, false
	}
	if strings.TrimSpace(rest) == "" {
		return 0, false
	}
	return hashes, true
}

// colonHeading matches a short capitalised line ending in a colon, e.g.
// "Background:". Between the capital and the colon there are 2-50
// letters or spaces.
func colonHeading(line string) (int, bool) {
	runes := []rune(line)
	if len(runes) < 4 || !isUpperASCII(runes[0]) || runes[len(runes)-1] != ':' {
		return 0, false
	}
	middle := runes[1 : len(runes)-1]
	if len(middle) < 2 || len(middle) > 50 {
		return 0, false
	}
	for _, r := range middle {
		if !isLetterASCII(r) && !unicode.IsSpace(r) {
			return 0, false
		}
	}
	return 1, true
}

// numberedHeading matches "<digits>. <Capital>..." with 3-50 characters
// after the capital, e.g. "2. Related work".
func numberedHeading(line string) (int, bool) {
	runes := []rune(line)
	i := 0
	for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(runes) || runes[i] != '.' {
		return 0, false
	}
	i++
	spaces := 0
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
		spaces++
	}
	if spaces == 0 || i >= len(runes) || !isUpperASCII(runes[i]) {
		return 0, false
	}
	tail := len(runes) - i - 1
	if tail < 3 || tail > 50 {
		return 0, false
	}
	return 1, true
}

// capsHeading matches a short all-caps line such as "INTRODUCTION": a
// capital followed by 3-30 capitals or spaces.
func capsHeading(line string) (int, bool) {
	runes := []rune(line)
	if len(runes) < 4 || len(runes) > 31 || !isUpperASCII(runes[0]) {
		return 0, false
	}
	for _, r := range runes[1:] {
		if !isUpperASCII(r) && !unicode.IsSpace(r) {
			return 0, false
		}
	}
	return 1, true
}

// cleanHeading strips markdown markers and a trailing colon from a heading.
func cleanHeading(line string) string {
	title := strings.TrimLeft(line, "#")
	if title != line {
		title = strings.TrimLeftFunc(title, unicode.IsSpace)
	}
	return strings.TrimSuffix(title, ":")
}

func isUpperASCII(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

func isLetterASCII(r rune) bool {
	return isUpperASCII(r) || (r >= 'a' && r <= 'z')
}
