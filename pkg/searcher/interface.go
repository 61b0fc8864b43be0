package searcher

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
)

// ErrNilBM25Store is returned when a SparseSearcher has no index.
var ErrNilBM25Store = errors.New("BM25 store is required")

// ErrNilEmbedder is returned when creating a DenseSearcher without an embedder.
var ErrNilEmbedder = errors.New("embedder is required")

// ErrNilVectorStore is returned when a DenseSearcher has no vector store.
var ErrNilVectorStore = errors.New("vector store is required")

// Option configures the guard around a searcher's backend calls.
type Option func(*guard)

// WithCircuitBreaker routes backend calls through cb.
func WithCircuitBreaker(cb *cerrors.CircuitBreaker) Option {
	return func(g *guard) {
		g.breaker = cb
	}
}

// WithRateLimit allows perSecond backend calls per second with the given
// burst. perSecond <= 0 leaves calls unlimited.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(g *guard) {
		if perSecond <= 0 {
			g.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// guard applies rate limiting and circuit breaking to backend calls.
type guard struct {
	breaker *cerrors.CircuitBreaker
	limiter *rate.Limiter
}

func newGuard(opts []Option) *guard {
	g := &guard{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func guarded[T any](ctx context.Context, g *guard, fn func() (T, error)) (T, error) {
	var zero T
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, err
		}
	}
	if g.breaker == nil {
		return fn()
	}
	return cerrors.CircuitExecute(g.breaker, fn)
}
