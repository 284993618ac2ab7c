package domain

import "time"

// Status is the lifecycle state of a Document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// transitions lists the allowed edges of the document state machine.
// Completed and failed are terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether a document may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Content    string    `json:"content"`
	Status     Status    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const ChunkTypeText = "text"

// ChunkMetadata is the closed set of attributes the chunker attaches to a chunk.
type ChunkMetadata struct {
	SectionTitle string `json:"section_title"`
	SectionLevel int    `json:"section_level"`
	ChunkType    string `json:"chunk_type"`
	TokenCount   int    `json:"token_count"`
}

type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Index      int    `json:"chunk_index"`
	Text       string `json:"text"`
	// Embedding is nil when no vector is available for the chunk.
	Embedding      []float32     `json:"embedding,omitempty"`
	EmbeddingModel string        `json:"embedding_model,omitempty"`
	Metadata       ChunkMetadata `json:"metadata"`
}

// RetrievedChunk is a chunk ranked for a single query. Rank is 1-based.
type RetrievedChunk struct {
	Chunk Chunk
	Score float64
	Rank  int
}

// Summary projects the retrieved chunk into the form stored on a Query.
func (r RetrievedChunk) Summary() RetrievedSummary {
	return RetrievedSummary{
		ChunkID:      r.Chunk.ID,
		ChunkIndex:   r.Chunk.Index,
		SectionTitle: r.Chunk.Metadata.SectionTitle,
		Score:        r.Score,
		Rank:         r.Rank,
	}
}

type RetrievedSummary struct {
	ChunkID      string  `json:"chunk_id"`
	ChunkIndex   int     `json:"chunk_index"`
	SectionTitle string  `json:"section_title"`
	Score        float64 `json:"score"`
	Rank         int     `json:"rank"`
}

type PromptMode string

const (
	PromptBasic    PromptMode = "basic"
	PromptAdvanced PromptMode = "advanced"
)

// ParsePromptMode maps a user supplied mode to a PromptMode. The empty
// string selects the advanced mode.
func ParsePromptMode(s string) (PromptMode, error) {
	switch PromptMode(s) {
	case "", PromptAdvanced:
		return PromptAdvanced, nil
	case PromptBasic:
		return PromptBasic, nil
	}
	return "", ErrInvalidPromptMode
}

type Query struct {
	ID           string             `json:"id"`
	DocumentID   string             `json:"document_id"`
	Question     string             `json:"question"`
	Answer       string             `json:"answer"`
	Retrieved    []RetrievedSummary `json:"retrieved_chunks"`
	PromptMode   PromptMode         `json:"prompt_type"`
	Citations    []string           `json:"citations"`
	Faithfulness float64            `json:"faithfulness_score"`
	// Fallback is set when the answer was built extractively because the
	// generation provider failed.
	Fallback  bool      `json:"fallback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
