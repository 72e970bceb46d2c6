package llm

import (
	"context"
	"encoding/json"
)

// Provider is the transport to a hosted language model. Everything in
// speakquest that talks to a model goes through one of these.
type Provider interface {
	// Generate sends a single synchronous request. When req.Schema is set
	// the provider asks for structured output where the SDK supports it and
	// validates the reply; otherwise Content holds the raw reply text.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes one round-trip to the model.
type Request struct {
	// System is the system prompt.
	System string

	// Messages is the ordered chat history. Conversation turns alternate
	// user/assistant; one-shot generation sends a single user message.
	Messages []Message

	// Schema, when set, is the JSON Schema the reply must satisfy.
	Schema *Schema

	// MaxTokens caps the reply length.
	MaxTokens int

	// Temperature in [0,1]. Zero leaves the provider default.
	Temperature float64
}

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema names a JSON Schema definition sent with a request.
type Schema struct {
	// Name is kebab-case, e.g. "conversation-evaluation". Used as the
	// schema name for OpenAI and as the compile cache key.
	Name string

	Description string

	Definition map[string]any
}

// Response holds the model's output.
type Response struct {
	// Content is the reply body: validated JSON when a Schema was sent,
	// otherwise the raw text bytes.
	Content json.RawMessage

	Usage Usage

	// Model is the model that actually served the request.
	Model string

	// StopReason is normalized to "end", "max_tokens" or "error".
	StopReason string
}

// Text returns the reply as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Content)
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// defaultMaxTokens applies when a Request leaves MaxTokens at zero.
const defaultMaxTokens = 1024

func maxTokensFor(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

// finishContent turns raw reply text into Response content. Without a
// schema the text passes through untouched. With one, the JSON object is
// extracted (models love code fences even in JSON mode) and validated.
func finishContent(req Request, text, stopReason string) (json.RawMessage, error) {
	if req.Schema == nil {
		return json.RawMessage(text), nil
	}
	if stopReason == "max_tokens" {
		return nil, &ErrMaxTokensExceeded{Content: json.RawMessage(text)}
	}
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, &ErrInvalidResponse{Content: json.RawMessage(text), Err: err}
	}
	if err := validateResponse(req.Schema, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// resolveModel maps a short model name to the vendor's model ID. Unknown
// names pass through so full IDs work too.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
