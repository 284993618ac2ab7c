package domain

import (
	"errors"
	"fmt"
)

// Errors returned by the retrieval and grounding pipeline. Callers match
// them with errors.Is; implementations wrap them with context.
var (
	// ErrInvalidInput indicates a missing or malformed request field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the referenced document does not exist, has no
	// chunks, or has not finished processing.
	ErrNotFound = errors.New("not found")

	// ErrNotReady is returned for documents that exist but are not completed.
	ErrNotReady = fmt.Errorf("document not ready: %w", ErrNotFound)

	// ErrAlreadyExists indicates a document with the same ID is stored.
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict indicates another processing pass owns the document or
	// the requested status transition is not allowed.
	ErrConflict = errors.New("conflict")

	// ErrProvider indicates an embedding or generation call failed or timed out.
	ErrProvider = errors.New("provider error")

	// ErrFusion indicates degenerate retrieval input such as top_k < 1.
	ErrFusion = errors.New("fusion error")

	ErrInvalidPromptMode = fmt.Errorf("%w: prompt mode must be basic or advanced", ErrInvalidInput)
)
