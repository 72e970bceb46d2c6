package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
		Multiplier:  2,
	}
}

func TestRetry(t *testing.T) {
	down := func() MockResponse { return MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}} }
	invalid := func() MockResponse {
		return MockResponse{Err: &ErrInvalidResponse{Err: errors.New("bad shape")}}
	}

	tests := []struct {
		name      string
		attempts  int
		responses []MockResponse
		wantCalls int
		wantErr   bool
	}{
		{"first attempt", 3, []MockResponse{MockText("hi")}, 1, false},
		{"transient then ok", 3, []MockResponse{down(), MockText("hi")}, 2, false},
		{"exhausted", 3, []MockResponse{down(), down(), down(), MockText("unreached")}, 3, true},
		{"single attempt", 0, []MockResponse{down(), MockText("unreached")}, 1, true},
		{"invalid retried once", 5, []MockResponse{invalid(), invalid(), MockText("unreached")}, 2, true},
		{"truncated not retried", 3, []MockResponse{{Err: &ErrMaxTokensExceeded{}}, MockText("unreached")}, 1, true},
		{"rejected not retried", 3, []MockResponse{{Err: &ErrRequestRejected{Status: http.StatusUnauthorized}}, MockText("x")}, 1, true},
		{"rate limit then ok", 3, []MockResponse{{Err: &ErrRateLimit{RetryAfter: time.Millisecond}}, MockText("hi")}, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockProvider(tt.responses...)
			p := WithRetry(mock, fastRetry(tt.attempts), nil)

			resp, err := p.Generate(context.Background(), Request{})
			assert.Equal(t, tt.wantCalls, mock.CallCount())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "hi", resp.Text())
		})
	}
}

func TestRetry_CancelledContextStops(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: context.Canceled}, MockText("unreached"))
	p := WithRetry(mock, fastRetry(3), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, mock.CallCount())
}

func TestRetry_PurposeCaps(t *testing.T) {
	down := MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}}

	tests := []struct {
		purpose   string
		wantCalls int
	}{
		{PurposeHealthCheck, 1},
		{PurposeConversationTurn, 2},
		{PurposePractice, 4},
	}
	for _, tt := range tests {
		t.Run(tt.purpose, func(t *testing.T) {
			mock := NewMockProvider(down, down, down, down)
			p := WithRetry(mock, fastRetry(4), nil)

			_, err := p.Generate(WithPurpose(context.Background(), tt.purpose), Request{})
			require.Error(t, err)
			assert.Equal(t, tt.wantCalls, mock.CallCount())
		})
	}

	mock := NewMockProvider(down, MockText("hi"))
	p := WithRetry(mock, fastRetry(1), nil)
	_, err := p.Generate(WithPurpose(context.Background(), PurposeConversationTurn), Request{})
	assert.Error(t, err, "caps never raise the configured attempts")
	assert.Equal(t, 1, mock.CallCount())
}

func TestRetry_BackoffCapped(t *testing.T) {
	r := &RetryProvider{config: RetryConfig{MaxAttempts: 5, InitialWait: time.Second, MaxWait: 2 * time.Second, Multiplier: 10}}
	for attempt := range 4 {
		wait := r.backoff(attempt, errors.New("x"))
		assert.LessOrEqual(t, wait, 2*time.Second+400*time.Millisecond)
	}
	assert.Equal(t, 3*time.Second, r.backoff(0, &ErrRateLimit{RetryAfter: 3 * time.Second}))
}
