package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/adapter/retriever"
	"docqa/internal/domain"
)

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"hello"}, req.Input)

		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	t.Setenv("DOCQA_TEST_KEY", "test-key")
	e, err := NewOpenAICompatibleEmbedder("DOCQA_TEST_KEY", "text-embedding-3-small", srv.URL, 3)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, e.Dimension())
	assert.Equal(t, "text-embedding-3-small", e.ModelName())
}

func TestOpenAIEmbedderFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`},
		{"api error", http.StatusOK, `{"error":{"message":"quota"}}`},
		{"malformed", http.StatusOK, `not json`},
		{"empty data", http.StatusOK, `{"data":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			e := NewOllamaEmbedder("all-minilm", srv.URL)
			_, err := e.Embed(context.Background(), "text")
			assert.ErrorIs(t, err, domain.ErrProvider)
		})
	}
}

func TestOpenAIEmbedderMissingKey(t *testing.T) {
	t.Setenv("DOCQA_MISSING_KEY", "")
	_, err := NewOpenAICompatibleEmbedder("DOCQA_MISSING_KEY", "m", "", 0)
	assert.Error(t, err)
}

func TestHuggingFaceEmbedderTruncatesAndPools(t *testing.T) {
	var got hfRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/"+DefaultHFModel))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`[[1,2],[3,4]]`))
	}))
	defer srv.Close()

	t.Setenv("DOCQA_HF_KEY", "hf")
	e, err := NewHuggingFaceEmbedder("DOCQA_HF_KEY", "", srv.URL)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), strings.Repeat("a", 900))
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3}, vec)
	assert.Len(t, got.Inputs, hfMaxInputChars)
	assert.True(t, got.Options.WaitForModel)
}

func TestHuggingFaceEmbedderPooledVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[0.5,0.25]`))
	}))
	defer srv.Close()

	t.Setenv("DOCQA_HF_KEY", "hf")
	e, err := NewHuggingFaceEmbedder("DOCQA_HF_KEY", "", srv.URL)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "short")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vec)
}

func TestHuggingFaceEmbedderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	t.Setenv("DOCQA_HF_KEY", "hf")
	e, err := NewHuggingFaceEmbedder("DOCQA_HF_KEY", "", srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = e.Embed(ctx, "slow")
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(384)
	ctx := context.Background()

	a, err := e.Embed(ctx, "The diet consists of leaves.")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "The diet consists of leaves.")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 384)
	assert.Equal(t, MockModelName, e.ModelName())

	related, _ := e.Embed(ctx, "what is the diet?")
	unrelated, _ := e.Embed(ctx, "hello world")
	assert.Greater(t, retriever.CosineSimilarity(a, related), retriever.CosineSimilarity(a, unrelated))
}

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{1}, nil
}

func (c *countingEmbedder) Dimension() int    { return 1 }
func (c *countingEmbedder) ModelName() string { return "counting" }

func TestRateLimited(t *testing.T) {
	inner := &countingEmbedder{}

	assert.Same(t, inner, NewRateLimited(inner, 0))

	limited := NewRateLimited(inner, 1)
	ctx := context.Background()
	_, err := limited.Embed(ctx, "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = limited.Embed(ctx, "second")
	assert.True(t, errors.Is(err, domain.ErrProvider))
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, "counting", limited.ModelName())
}
