// Package embeddings turns text into vectors. The Client wraps any Provider
// with token-aware batching, retries with exponential backoff, and adaptive
// ceiling reduction when the provider rejects a batch for its length.
package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Embedder is the interface ingestion and search depend on.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider performs one raw embedding call for a single batch.
type Provider interface {
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}

// ProviderError reports that the provider failed after every retry and
// batch-ceiling strategy was exhausted.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// defaultCeilings are per-batch token budgets tried in order, keeping a safe
// margin below the 8192-token provider limit.
var defaultCeilings = []int{5500, 4000, 3000, 2000, 1500}

// bytesPerToken is the cheap length heuristic for English text.
const bytesPerToken = 4

// Client batches texts under a token ceiling and embeds them in order.
type Client struct {
	provider   Provider
	maxRetries int
	baseDelay  time.Duration
	ceilings   []int
	sleep      func(time.Duration)
}

func NewClient(provider Provider, maxRetries int) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		provider:   provider,
		maxRetries: maxRetries,
		baseDelay:  time.Second,
		ceilings:   defaultCeilings,
		sleep:      time.Sleep,
	}
}

// Embed returns one vector per input text, in input order. An empty input
// yields an empty result without a provider call. On a token-limit failure
// the whole partition restarts at the next smaller ceiling; any other
// failure propagates immediately.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	for i, ceiling := range c.ceilings {
		vectors, err := c.embedWithCeiling(ctx, texts, ceiling)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if isTokenLimitError(err) && i < len(c.ceilings)-1 {
			continue
		}
		return nil, &ProviderError{Err: err}
	}
	return nil, &ProviderError{Err: lastErr}
}

func (c *Client) embedWithCeiling(ctx context.Context, texts []string, ceiling int) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, batch := range partition(texts, ceiling) {
		vectors, err := c.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(batch), len(vectors))
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.sleep(c.baseDelay << (attempt - 1))
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors, err := c.provider.CreateEmbeddings(ctx, batch)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// partition groups texts into ceiling-bounded batches, preserving order.
// A single text over the ceiling is hard-truncated so every text yields a
// vector; every batch holds at least one text.
func partition(texts []string, ceiling int) [][]string {
	var (
		batches [][]string
		current []string
		tokens  int
	)

	for _, text := range texts {
		t := estimateTokens(text)
		if t > ceiling {
			text = truncateBytes(text, ceiling*bytesPerToken)
			t = ceiling
		}
		if tokens+t > ceiling && len(current) > 0 {
			batches = append(batches, current)
			current = []string{text}
			tokens = t
			continue
		}
		current = append(current, text)
		tokens += t
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func estimateTokens(text string) int {
	return len(text) / bytesPerToken
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func isTokenLimitError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "maximum context length") || strings.Contains(msg, "token")
}
