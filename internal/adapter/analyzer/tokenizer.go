package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into lexical terms. Terms are lower-cased and
// separated by whitespace runs; punctuation stays attached and there is
// no stemming or stopword removal, so term statistics match the text
// exactly as written.
type Tokenizer struct{}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// Tokenize splits text into lower-cased whitespace-delimited terms.
func (t *Tokenizer) Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// CountTokens returns the number of whitespace-delimited tokens in text.
// This is the unit chunk budgets are expressed in.
func (t *Tokenizer) CountTokens(text string) int {
	return len(strings.Fields(text))
}

// IsTerminal reports whether r ends a sentence.
func IsTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// HasTerminal reports whether text contains sentence-ending punctuation.
func HasTerminal(text string) bool {
	return strings.ContainsFunc(text, IsTerminal)
}

// Sentences splits text into trimmed sentences. A sentence ends at a run
// of terminal punctuation that is followed by whitespace or the end of the
// text, so "3.14" and "e.g.x" stay whole. Trailing text without terminal
// punctuation is returned as a final sentence. Joining the result with
// single spaces reproduces the input modulo whitespace.
func Sentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0

	for i := 0; i < len(runes); i++ {
		if !IsTerminal(runes[i]) {
			continue
		}
		end := i
		for end+1 < len(runes) && IsTerminal(runes[end+1]) {
			end++
		}
		if end+1 == len(runes) || unicode.IsSpace(runes[end+1]) {
			if s := strings.TrimSpace(string(runes[start : end+1])); s != "" {
				out = append(out, s)
			}
			start = end + 1
		}
		i = end
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// StripTerminal removes trailing sentence punctuation and surrounding space.
func StripTerminal(sentence string) string {
	return strings.TrimRightFunc(strings.TrimSpace(sentence), IsTerminal)
}
