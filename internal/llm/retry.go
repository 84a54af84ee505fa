package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryProvider retries completions that fail because the upstream is rate
// limited or overloaded, with exponential backoff.
type RetryProvider struct {
	provider   Provider
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
}

// NewRetryProvider wraps provider with retries.
func NewRetryProvider(provider Provider, maxRetries int, backoff time.Duration) *RetryProvider {
	return &RetryProvider{
		provider:   provider,
		maxRetries: maxRetries,
		backoff:    backoff,
		maxBackoff: 30 * time.Second,
	}
}

func (p *RetryProvider) Name() string {
	return p.provider.Name()
}

func (p *RetryProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	backoff := p.backoff
	for attempt := 0; ; attempt++ {
		resp, err := p.provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !retryable(err) {
			return nil, err
		}
		if attempt == p.maxRetries {
			return nil, fmt.Errorf("rate limited after %d retries: %w", p.maxRetries, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > p.maxBackoff {
				backoff = p.maxBackoff
			}
		}
	}
}

func retryable(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "rate_limit") || strings.Contains(s, "429") ||
		strings.Contains(s, "too many requests") || strings.Contains(s, "overloaded")
}
