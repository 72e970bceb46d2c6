package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON recovers a JSON object from a model reply. It tries, in
// order: the whole reply, the first fenced code block, and the first
// balanced {...} span. It returns ErrNoJSON when the reply contains no
// object-shaped text at all.
func ExtractJSON(reply string) (json.RawMessage, error) {
	text := strings.TrimSpace(reply)
	if text == "" {
		return nil, ErrNoJSON
	}

	if strings.HasPrefix(text, "{") && json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}

	if block, ok := fencedBlock(text); ok {
		block = strings.TrimSpace(block)
		if json.Valid([]byte(block)) && strings.HasPrefix(block, "{") {
			return json.RawMessage(block), nil
		}
	}

	span, ok := balancedObject(text)
	if !ok {
		return nil, ErrNoJSON
	}
	if !json.Valid([]byte(span)) {
		return nil, &ErrInvalidResponse{
			Content: json.RawMessage(span),
			Err:     fmt.Errorf("object span is not valid JSON"),
		}
	}
	return json.RawMessage(span), nil
}

// DecodeJSON extracts a JSON object from reply, validates it against
// schema (when non-nil) and unmarshals it into v.
func DecodeJSON(reply string, schema *Schema, v any) error {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return err
	}
	if err := validateResponse(schema, raw); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(v); err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// fencedBlock returns the body of the first ``` fenced block, without the
// language tag.
func fencedBlock(text string) (string, bool) {
	const fence = "```"
	start := strings.Index(text, fence)
	if start < 0 {
		return "", false
	}
	body := text[start+len(fence):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.Contains(body[:nl], "{") {
		body = body[nl+1:]
	}
	end := strings.Index(body, fence)
	if end < 0 {
		return "", false
	}
	return body[:end], true
}

// balancedObject returns the first {...} span whose braces balance,
// ignoring braces inside string literals.
func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
