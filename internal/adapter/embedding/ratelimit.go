package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// RateLimited throttles calls to an underlying embedder.
type RateLimited struct {
	next    port.Embedder
	limiter *rate.Limiter
}

var _ port.Embedder = (*RateLimited)(nil)

// NewRateLimited wraps next with a limiter of rps requests per second.
// A non-positive rps returns next unchanged.
func NewRateLimited(next port.Embedder, rps float64) port.Embedder {
	if rps <= 0 {
		return next
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", domain.ErrProvider, err)
	}
	return r.next.Embed(ctx, text)
}

func (r *RateLimited) Dimension() int {
	return r.next.Dimension()
}

func (r *RateLimited) ModelName() string {
	return r.next.ModelName()
}
