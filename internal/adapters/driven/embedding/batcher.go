// Package embedding holds provider-neutral parts of the embedding gateway.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Batcher implements the interface.
var _ driven.EmbeddingService = (*Batcher)(nil)

// Default batching limits.
const (
	DefaultBatchSize      = 64
	DefaultMaxBatchTokens = 8000
	DefaultMaxRetries     = 3
	DefaultBackoff        = 500 * time.Millisecond

	// charsPerToken approximates tokens for batch budgeting.
	charsPerToken = 4
)

// Batcher wraps an embedding service, splitting large batches under count
// and token ceilings, pacing upstream calls and retrying retryable failures.
type Batcher struct {
	inner      driven.EmbeddingService
	batchSize  int
	maxTokens  int
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures a Batcher.
type Option func(*Batcher)

// WithBatchSize sets the maximum number of texts per upstream call.
func WithBatchSize(n int) Option {
	return func(b *Batcher) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithMaxBatchTokens sets the approximate token ceiling per upstream call.
func WithMaxBatchTokens(n int) Option {
	return func(b *Batcher) {
		if n > 0 {
			b.maxTokens = n
		}
	}
}

// WithRequestsPerSecond paces upstream calls. Zero or less disables pacing.
func WithRequestsPerSecond(rps float64) Option {
	return func(b *Batcher) {
		if rps > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			b.limiter = nil
		}
	}
}

// WithMaxRetries sets how often a retryable failure is retried.
func WithMaxRetries(n int) Option {
	return func(b *Batcher) {
		if n >= 0 {
			b.maxRetries = n
		}
	}
}

// WithBackoff sets the base delay, doubled on every retry.
func WithBackoff(d time.Duration) Option {
	return func(b *Batcher) {
		if d > 0 {
			b.backoff = d
		}
	}
}

// FromSettings applies the embedding settings.
func FromSettings(s domain.EmbeddingSettings) Option {
	return func(b *Batcher) {
		WithBatchSize(s.BatchSize)(b)
		WithMaxBatchTokens(s.MaxBatchTokens)(b)
		WithRequestsPerSecond(s.RequestsPerSecond)(b)
		WithMaxRetries(s.MaxRetries)(b)
	}
}

// NewBatcher wraps inner.
func NewBatcher(inner driven.EmbeddingService, opts ...Option) *Batcher {
	b := &Batcher{
		inner:      inner,
		batchSize:  DefaultBatchSize,
		maxTokens:  DefaultMaxBatchTokens,
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Embed embeds a single text, retrying retryable failures.
func (b *Batcher) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := b.withRetry(ctx, "embed", func() error {
		var err error
		vec, err = b.inner.Embed(ctx, text)
		return err
	})
	return vec, err
}

// EmbedBatch embeds texts in as many upstream calls as the limits require.
// The result has one vector per input, in input order.
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batches := b.split(texts)
	logger.Debug("embedding: %d texts in %d batches (%s)", len(texts), len(batches), b.inner.ModelName())

	out := make([][]float32, 0, len(texts))
	for i, batch := range batches {
		var vecs [][]float32
		err := b.withRetry(ctx, "embed_batch", func() error {
			var err error
			vecs, err = b.inner.EmbedBatch(ctx, batch)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("batch %d of %d: %w", i+1, len(batches), err)
		}
		if len(vecs) != len(batch) {
			return nil, &domain.UpstreamError{
				Service: b.inner.ModelName(),
				Op:      "embed_batch",
				Err:     fmt.Errorf("got %d vectors for %d texts", len(vecs), len(batch)),
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (b *Batcher) Dimensions() int {
	return b.inner.Dimensions()
}

// ModelName returns the name of the wrapped model.
func (b *Batcher) ModelName() string {
	return b.inner.ModelName()
}

// Ping checks the wrapped service without retries.
func (b *Batcher) Ping(ctx context.Context) error {
	return b.inner.Ping(ctx)
}

// Close releases the wrapped service.
func (b *Batcher) Close() error {
	return b.inner.Close()
}

// split groups texts in order so no group exceeds the count limit or,
// unless it holds a single text, the token limit.
func (b *Batcher) split(texts []string) [][]string {
	var (
		batches [][]string
		current []string
		tokens  int
	)
	for _, text := range texts {
		t := estimateTokens(text)
		if len(current) > 0 && (len(current) >= b.batchSize || tokens+t > b.maxTokens) {
			batches = append(batches, current)
			current, tokens = nil, 0
		}
		current = append(current, text)
		tokens += t
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// withRetry runs call under the rate limit, retrying retryable failures
// with exponential backoff. A server-provided Retry-After wins when longer.
func (b *Batcher) withRetry(ctx context.Context, op string, call func() error) error {
	for attempt := 0; ; attempt++ {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := call()
		if err == nil {
			return nil
		}
		if !domain.IsRetryable(err) || attempt >= b.maxRetries {
			return err
		}

		delay := b.backoff << attempt
		var up *domain.UpstreamError
		if errors.As(err, &up) && up.RetryAfter > delay {
			delay = up.RetryAfter
		}
		logger.Debug("embedding: %s failed (attempt %d/%d), retrying in %s: %v",
			op, attempt+1, b.maxRetries+1, delay, err)

		if err := b.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
