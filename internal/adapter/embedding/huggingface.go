package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"docqa/internal/domain"
	"docqa/internal/port"
)

const (
	DefaultHFModel     = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultHFBaseURL   = "https://api-inference.huggingface.co/pipeline/feature-extraction"
	DefaultHFDimension = 384

	// hfMaxInputChars bounds the text sent to the inference API.
	hfMaxInputChars = 500
)

// HuggingFaceEmbedder calls the Hugging Face feature-extraction pipeline.
type HuggingFaceEmbedder struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	client    *http.Client
}

var _ port.Embedder = (*HuggingFaceEmbedder)(nil)

type hfRequest struct {
	Inputs  string    `json:"inputs"`
	Options hfOptions `json:"options"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// NewHuggingFaceEmbedder creates a HuggingFace inference API embedder.
func NewHuggingFaceEmbedder(apiKeyEnv, model, baseURL string) (*HuggingFaceEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if model == "" {
		model = DefaultHFModel
	}
	if baseURL == "" {
		baseURL = DefaultHFBaseURL
	}
	return &HuggingFaceEmbedder{
		apiKey:    apiKey,
		model:     model,
		baseURL:   baseURL,
		dimension: DefaultHFDimension,
		client:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (e *HuggingFaceEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if r := []rune(text); len(r) > hfMaxInputChars {
		text = string(r[:hfMaxInputChars])
	}

	jsonData, err := json.Marshal(hfRequest{Inputs: text, Options: hfOptions{WaitForModel: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/"+e.model, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding request failed: %w", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", domain.ErrProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: API returned status %d: %s", domain.ErrProvider, resp.StatusCode, preview(body))
	}

	vec, err := decodeFeatures(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProvider, err)
	}
	return vec, nil
}

// decodeFeatures accepts either a pooled vector or per-token vectors, which
// are mean pooled.
func decodeFeatures(body []byte) ([]float32, error) {
	var pooled []float32
	if err := json.Unmarshal(body, &pooled); err == nil && len(pooled) > 0 {
		return pooled, nil
	}

	var tokens [][]float32
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse response (body: %s): %w", preview(body), err)
	}
	if len(tokens) == 0 || len(tokens[0]) == 0 {
		return nil, fmt.Errorf("response contained no embedding")
	}

	out := make([]float32, len(tokens[0]))
	for _, tok := range tokens {
		if len(tok) != len(out) {
			return nil, fmt.Errorf("inconsistent token vector length %d, want %d", len(tok), len(out))
		}
		for i, v := range tok {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float32(len(tokens))
	}
	return out, nil
}

func (e *HuggingFaceEmbedder) Dimension() int {
	return e.dimension
}

func (e *HuggingFaceEmbedder) ModelName() string {
	return e.model
}
