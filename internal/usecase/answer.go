package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docqa/internal/adapter/citation"
	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
	"docqa/internal/prompt"
)

const DefaultGenerateTimeout = 60 * time.Second

// AnswerUseCase answers a question against one processed document and
// records the exchange as a Query.
type AnswerUseCase struct {
	repo     port.Repository
	retrieve *RetrieveUseCase
	llm      port.LLM
	timeout  time.Duration
	now      func() time.Time
	newID    func() string
}

// NewAnswerUseCase creates a new answer use case.
func NewAnswerUseCase(repo port.Repository, retrieve *RetrieveUseCase, llm port.LLM, generateTimeout time.Duration) *AnswerUseCase {
	if generateTimeout <= 0 {
		generateTimeout = DefaultGenerateTimeout
	}
	return &AnswerUseCase{
		repo:     repo,
		retrieve: retrieve,
		llm:      llm,
		timeout:  generateTimeout,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

type AnswerRequest struct {
	DocumentID string
	Question   string
	// PromptMode is "basic" or "advanced"; empty selects advanced.
	PromptMode string
	TopK       int
}

type AnswerResult struct {
	QueryID      string
	Answer       string
	Citations    []string
	// Dangling lists cited labels that point past the retrieved sources.
	Dangling     []string
	Faithfulness float64
	Retrieved    []domain.RetrievedChunk
	PromptMode   domain.PromptMode
	Fallback     bool
}

// Answer runs retrieval, generation and citation scoring. When generation
// fails for any reason other than cancellation, the answer is built
// extractively from the top chunk and flagged as a fallback. If ctx is done
// before the query is stored, nothing is persisted and ctx.Err() is
// returned.
func (u *AnswerUseCase) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	mode, err := domain.ParsePromptMode(req.PromptMode)
	if err != nil {
		return nil, err
	}

	retrieved, err := u.retrieve.Retrieve(ctx, req.DocumentID, req.Question, req.TopK)
	if err != nil {
		return nil, err
	}

	answer, fallback, err := u.generate(ctx, mode, req.Question, retrieved)
	if err != nil {
		return nil, err
	}

	citations := citation.Extract(answer)
	_, dangling := citation.Validate(citations, len(retrieved))
	if len(dangling) > 0 {
		logger.Warn("answer cites sources outside the context: %v", dangling)
	}
	faithfulness := citation.Faithfulness(answer, retrieved)

	q := domain.Query{
		ID:           u.newID(),
		DocumentID:   req.DocumentID,
		Question:     req.Question,
		Answer:       answer,
		Retrieved:    make([]domain.RetrievedSummary, len(retrieved)),
		PromptMode:   mode,
		Citations:    citations,
		Faithfulness: faithfulness,
		Fallback:     fallback,
		CreatedAt:    u.now().UTC(),
	}
	for i, r := range retrieved {
		q.Retrieved[i] = r.Summary()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := u.repo.PutQuery(ctx, q); err != nil {
		return nil, fmt.Errorf("store query: %w", err)
	}

	return &AnswerResult{
		QueryID:      q.ID,
		Answer:       answer,
		Citations:    citations,
		Dangling:     dangling,
		Faithfulness: faithfulness,
		Retrieved:    retrieved,
		PromptMode:   mode,
		Fallback:     fallback,
	}, nil
}

func (u *AnswerUseCase) generate(ctx context.Context, mode domain.PromptMode, question string, retrieved []domain.RetrievedChunk) (string, bool, error) {
	userPrompt, err := prompt.Build(mode, question, retrieved)
	if err != nil {
		return "", false, err
	}

	gctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	start := time.Now()
	answer, err := u.llm.GenerateWithSystem(gctx, prompt.SystemPrompt, userPrompt)
	if err == nil {
		logger.Debug("generated answer with %s in %s", u.llm.ModelName(), time.Since(start).Round(time.Millisecond))
		return answer, false, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", false, ctxErr
	}

	logger.Warn("generation failed, using extractive answer: %v", err)
	answer, err = prompt.Extractive(mode, retrieved[0])
	if err != nil {
		return "", false, err
	}
	return answer, true, nil
}
