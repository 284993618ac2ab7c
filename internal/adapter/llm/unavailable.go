package llm

import (
	"context"
	"fmt"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// Unavailable is the generator used when generation is disabled. Every
// call fails, so answers fall back to extractive mode.
type Unavailable struct{}

var _ port.LLM = Unavailable{}

func (Unavailable) Generate(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("%w: generation disabled", domain.ErrProvider)
}

func (u Unavailable) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return u.Generate(ctx, userPrompt)
}

func (Unavailable) ModelName() string {
	return "none"
}
