package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/nutrisense/api/internal/ports/outbound"
	"golang.org/x/time/rate"
)

// rateLimitedGenerator spaces calls to stay within a provider's
// requests-per-minute allowance
type rateLimitedGenerator struct {
	next    outbound.TextGenerator
	limiter *rate.Limiter
}

// WithRateLimit wraps generator so at most perMinute calls start per minute.
// A nil generator or a non-positive limit returns generator unchanged.
func WithRateLimit(generator outbound.TextGenerator, perMinute int) outbound.TextGenerator {
	if generator == nil || perMinute <= 0 {
		return generator
	}
	return &rateLimitedGenerator{
		next:    generator,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (g *rateLimitedGenerator) Name() string {
	return g.next.Name()
}

func (g *rateLimitedGenerator) Generate(ctx context.Context, req outbound.GenerationRequest) (*outbound.GenerationResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return g.next.Generate(ctx, req)
}

// Unwrap returns the wrapped generator
func (g *rateLimitedGenerator) Unwrap() outbound.TextGenerator {
	return g.next
}

// unwrap strips decorators so capability checks see the provider client
func unwrap(generator outbound.TextGenerator) outbound.TextGenerator {
	for {
		w, ok := generator.(interface{ Unwrap() outbound.TextGenerator })
		if !ok {
			return generator
		}
		generator = w.Unwrap()
	}
}
