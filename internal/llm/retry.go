package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Attempt caps per purpose. They only ever lower RetryConfig.MaxAttempts.
var purposeAttempts = map[string]int{
	PurposeHealthCheck:      1,
	PurposeConversationTurn: 2,
}

// RetryProvider retries transient failures with capped exponential
// backoff and ±20% jitter.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
	log    *zap.Logger
}

// WithRetry wraps p. MaxAttempts below 1 is treated as a single attempt.
func WithRetry(p Provider, cfg RetryConfig, log *zap.Logger) Provider {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RetryProvider{inner: p, config: cfg, log: log.Named("retry")}
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	purpose := PurposeFrom(ctx)
	attempts := r.attempts(purpose)
	budget := invalidReplyBudget

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		var resp *Response
		resp, err = r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !retryable(err, &budget) || attempt == attempts-1 {
			return nil, err
		}

		wait := r.backoff(attempt, err)
		r.log.Debug("retrying model call",
			zap.String("purpose", purpose),
			zap.String("student_id", StudentFrom(ctx)),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, err
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

func (r *RetryProvider) attempts(purpose string) int {
	if n, ok := purposeAttempts[purpose]; ok && n < r.config.MaxAttempts {
		return n
	}
	return r.config.MaxAttempts
}

// A reply that fails schema validation gets this many extra attempts.
const invalidReplyBudget = 1

// retryable reports whether err is worth another attempt, spending the
// invalid-reply budget when the reply parsed but did not validate.
func retryable(err error, invalidBudget *int) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var (
		maxTok   *ErrMaxTokensExceeded
		rejected *ErrRequestRejected
		invalid  *ErrInvalidResponse
	)
	switch {
	case errors.As(err, &maxTok), errors.As(err, &rejected):
		return false
	case errors.As(err, &invalid):
		if *invalidBudget <= 0 {
			return false
		}
		*invalidBudget--
		return true
	}
	return true
}

func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := math.Min(
		float64(r.config.InitialWait)*math.Pow(r.config.Multiplier, float64(attempt)),
		float64(r.config.MaxWait),
	)
	wait *= 1 + 0.2*(2*rand.Float64()-1)
	return time.Duration(math.Max(wait, 0))
}
