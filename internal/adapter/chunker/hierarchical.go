package chunker

import (
	"strings"

	"docqa/internal/adapter/analyzer"
	"docqa/internal/domain"
)

const (
	// DefaultMaxTokens bounds the whitespace-token size of a chunk.
	DefaultMaxTokens = 500

	// DefaultTitle names the leading section when no title hint is given.
	DefaultTitle = "Document"
)

// HierarchicalChunker splits text into section-aware chunks. Sections are
// opened by heading lines; each section's body is packed sentence by
// sentence into chunks of at most maxTokens tokens.
type HierarchicalChunker struct {
	maxTokens int
	tokenizer *analyzer.Tokenizer
}

// NewHierarchicalChunker creates a chunker with the given token budget.
// A non-positive maxTokens falls back to DefaultMaxTokens and a nil
// tokenizer to the default one.
func NewHierarchicalChunker(maxTokens int, tokenizer *analyzer.Tokenizer) *HierarchicalChunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if tokenizer == nil {
		tokenizer = analyzer.NewTokenizer()
	}
	return &HierarchicalChunker{
		maxTokens: maxTokens,
		tokenizer: tokenizer,
	}
}

type section struct {
	title string
	level int
	lines []string
}

// Chunk splits text into draft chunks numbered 0..N-1 in document order.
// The output depends only on text, titleHint and maxTokens.
func (c *HierarchicalChunker) Chunk(text, titleHint string) []domain.Chunk {
	title := strings.TrimSpace(titleHint)
	if title == "" {
		title = DefaultTitle
	}
	current := section{title: title}

	var chunks []domain.Chunk
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		level, isHeading := classifyHeading(line)
		if !isHeading {
			current.lines = append(current.lines, line)
			continue
		}

		// A heading directly after another heading replaces it; empty
		// sections produce no chunks.
		if len(current.lines) > 0 {
			chunks = append(chunks, c.packSection(current)...)
		}
		current = section{title: cleanHeading(line), level: level}
	}
	if len(current.lines) > 0 {
		chunks = append(chunks, c.packSection(current)...)
	}

	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}

// packSection greedily packs the section's sentences into chunks. A
// sentence is never split, so a single sentence longer than maxTokens
// becomes a chunk of its own.
func (c *HierarchicalChunker) packSection(s section) []domain.Chunk {
	// Lines are rejoined first so a sentence wrapped across lines stays
	// one unit. Trailing text without terminal punctuation is its own unit.
	units := analyzer.Sentences(strings.Join(s.lines, " "))

	var (
		chunks []domain.Chunk
		buf    []string
		tokens int
	)
	flush := func() {
		if len(buf) == 0 {
			return
		}
		chunks = append(chunks, domain.Chunk{
			Text: strings.Join(buf, " "),
			Metadata: domain.ChunkMetadata{
				SectionTitle: s.title,
				SectionLevel: s.level,
				ChunkType:    domain.ChunkTypeText,
				TokenCount:   tokens,
			},
		})
		buf = nil
		tokens = 0
	}

	for _, unit := range units {
		n := c.tokenizer.CountTokens(unit)
		if len(buf) > 0 && tokens+n > c.maxTokens {
			flush()
		}
		buf = append(buf, unit)
		tokens += n
	}
	flush()

	return chunks
}

// MaxTokens returns the configured chunk budget.
func (c *HierarchicalChunker) MaxTokens() int {
	return c.maxTokens
}
