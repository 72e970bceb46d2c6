// Package gateway is the single integration point with the language
// model: conversation turns, conversation evaluation, structured content
// generation and health checks.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/speakquest/internal/llm"
)

// ErrChatFailed wraps any transport or provider failure during Chat.
var ErrChatFailed = errors.New("chat request failed")

// ErrGenerationFailed wraps transport failures during GenerateJSON.
var ErrGenerationFailed = errors.New("content generation failed")

const defaultTimeout = 30 * time.Second

// Gateway wraps an llm.Provider with budgets, timeouts and fallbacks.
type Gateway struct {
	provider llm.Provider
	timeout  time.Duration
	log      *zap.Logger
}

// New creates a Gateway. A zero timeout uses 30s; a nil logger is a no-op.
func New(provider llm.Provider, timeout time.Duration, log *zap.Logger) *Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{provider: provider, timeout: timeout, log: log.Named("gateway")}
}

// Chat sends the history verbatim and returns the model's raw text.
// Failures are returned wrapped in ErrChatFailed.
func (g *Gateway) Chat(ctx context.Context, system string, history []llm.Message, temperature float64, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.provider.Generate(llm.WithPurpose(ctx, llm.PurposeConversationTurn), llm.Request{
		System:      system,
		Messages:    history,
		Temperature: clampTemperature(temperature),
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrChatFailed, err)
	}
	return resp.Text(), nil
}

// GenerateJSON sends a one-shot prompt, recovers the JSON object from
// the reply and decodes it into v. Transport failures wrap
// ErrGenerationFailed; replies without usable JSON return llm.ErrNoJSON
// or *llm.ErrInvalidResponse.
func (g *Gateway) GenerateJSON(ctx context.Context, purpose, system, prompt string, schema *llm.Schema, temperature float64, maxTokens int, v any) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.provider.Generate(llm.WithPurpose(ctx, purpose), llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Schema:      schema,
		Temperature: clampTemperature(temperature),
		MaxTokens:   maxTokens,
	})
	if err != nil {
		var inv *llm.ErrInvalidResponse
		if errors.As(err, &inv) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return llm.DecodeJSON(resp.Text(), schema, v)
}

// HealthCheck reports whether the model answers a trivial prompt.
func (g *Gateway) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.provider.Generate(llm.WithPurpose(ctx, llm.PurposeHealthCheck), llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "Reply with the single word OK."}},
		MaxTokens: 5,
	})
	if err != nil {
		g.log.Warn("health check failed", zap.Error(err))
		return false
	}
	return true
}

func clampTemperature(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}
