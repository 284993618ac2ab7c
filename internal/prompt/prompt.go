// Package prompt renders the generation prompts and the extractive
// fallback answer from embedded templates.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"docqa/internal/adapter/analyzer"
	"docqa/internal/domain"
)

//go:embed templates/*.txt
var templateFS embed.FS

const (
	SystemPrompt       = "You are an expert academic assistant."
	InsufficientPhrase = "The provided information is not sufficient to answer the question."
	ExtractiveLabel    = "[Extractive answer: generation unavailable]"

	excerptChars = 150
	shortIDChars = 8
)

var templates = template.Must(template.ParseFS(templateFS, "templates/*.txt"))

// FormatContext renders retrieved chunks as numbered sources separated by
// blank lines. Source numbers follow retrieval rank.
func FormatContext(retrieved []domain.RetrievedChunk) string {
	parts := make([]string, len(retrieved))
	for i, r := range retrieved {
		parts[i] = fmt.Sprintf("[SOURCE %d: %s | %s]:\n%s",
			i+1, shortID(r.Chunk.ID), sectionOf(r.Chunk), r.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Build renders the user prompt for the given mode.
func Build(mode domain.PromptMode, question string, retrieved []domain.RetrievedChunk) (string, error) {
	name := "advanced.txt"
	if mode == domain.PromptBasic {
		name = "basic.txt"
	}

	data := struct {
		Context            string
		Question           string
		InsufficientPhrase string
	}{
		Context:            FormatContext(retrieved),
		Question:           question,
		InsufficientPhrase: InsufficientPhrase,
	}
	return render(name, data)
}

// Extractive builds the answer used when generation fails. It quotes the
// top ranked chunk and cites it as source 1 in every sentence.
func Extractive(mode domain.PromptMode, top domain.RetrievedChunk) (string, error) {
	data := struct {
		Label    string
		Advanced bool
		Excerpt  string
		ShortID  string
		Section  string
	}{
		Label:    ExtractiveLabel,
		Advanced: mode != domain.PromptBasic,
		Excerpt:  citedExcerpt(top.Chunk.Text),
		ShortID:  shortID(top.Chunk.ID),
		Section:  sectionOf(top.Chunk),
	}
	return render("extractive.txt", data)
}

// citedExcerpt quotes the start of text and puts a [SOURCE 1] marker
// before the closing punctuation of each sentence. A cut-off excerpt ends
// in an ellipsis.
func citedExcerpt(text string) string {
	excerpt := Preview(text, excerptChars)
	truncated := excerpt != strings.TrimSpace(text)

	sentences := analyzer.Sentences(excerpt)
	parts := make([]string, 0, len(sentences))
	for i, sentence := range sentences {
		body := analyzer.StripTerminal(sentence)
		if body == "" {
			continue
		}
		end := sentence[len(body):]
		switch {
		case truncated && i == len(sentences)-1:
			end = "..."
		case end == "":
			end = "."
		}
		parts = append(parts, body+" [SOURCE 1]"+end)
	}
	return strings.Join(parts, " ")
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Preview returns at most n runes of text with surrounding space trimmed.
func Preview(text string, n int) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return strings.TrimSpace(string(r[:n]))
}

func shortID(id string) string {
	if len(id) > shortIDChars {
		return id[:shortIDChars]
	}
	return id
}

func sectionOf(c domain.Chunk) string {
	if c.Metadata.SectionTitle == "" {
		return "document"
	}
	return c.Metadata.SectionTitle
}
