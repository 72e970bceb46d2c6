package llm

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScoreSchema() *Schema {
	return &Schema{
		Name: "test-score",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"score": map[string]any{"type": "integer", "minimum": 0, "maximum": 10},
			},
			"required": []any{"score"},
		},
	}
}

func testEvalSchema() *Schema {
	return &Schema{
		Name: "test-eval",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"quality": map[string]any{"type": "string", "enum": []any{"excellent", "good", "needs_work"}},
				"scores": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"fluency": map[string]any{"type": "number"},
					},
					"required": []any{"fluency"},
				},
			},
			"required": []any{"quality", "scores"},
		},
	}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		schema  *Schema
		raw     string
		wantErr bool
	}{
		{"valid", testScoreSchema(), `{"score":4}`, false},
		{"missing required", testScoreSchema(), `{}`, true},
		{"wrong type", testScoreSchema(), `{"score":"4"}`, true},
		{"out of range", testScoreSchema(), `{"score":11}`, true},
		{"malformed", testScoreSchema(), `{"score":`, true},
		{"nil schema", nil, `not even json`, false},
		{"nested valid", testEvalSchema(), `{"quality":"good","scores":{"fluency":72.5}}`, false},
		{"nested missing", testEvalSchema(), `{"quality":"good","scores":{}}`, true},
		{"bad enum", testEvalSchema(), `{"quality":"great","scores":{"fluency":1}}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(tt.schema, json.RawMessage(tt.raw))
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var inv *ErrInvalidResponse
			require.True(t, errors.As(err, &inv), "got %T", err)
			assert.Equal(t, tt.raw, string(inv.Content))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"padded", "\n  {\"a\":1}  \n", `{"a":1}`},
		{"json fence", "Sure!\n```json\n{\"a\":1}\n```\nDone.", `{"a":1}`},
		{"plain fence", "```\n{\"a\":[1,2]}\n```", `{"a":[1,2]}`},
		{"prose around", `The evaluation is {"a":{"b":2}} as requested.`, `{"a":{"b":2}}`},
		{"brace in string", `result: {"text":"use } carefully","n":1} end`, `{"text":"use } carefully","n":1}`},
		{"escaped quote", `x {"text":"say \"hi\" {","n":2}`, `{"text":"say \"hi\" {","n":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.reply)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestExtractJSON_Failures(t *testing.T) {
	_, err := ExtractJSON("I cannot help with that.")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ExtractJSON("")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ExtractJSON(`here {"a": 1,} oops`)
	var inv *ErrInvalidResponse
	assert.True(t, errors.As(err, &inv))

	_, err = ExtractJSON(`{"a": 1`)
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Score int `json:"score"`
	}
	require.NoError(t, DecodeJSON("```json\n{\"score\": 6}\n```", testScoreSchema(), &out))
	assert.Equal(t, 6, out.Score)

	err := DecodeJSON(`{"score": 60}`, testScoreSchema(), &out)
	var inv *ErrInvalidResponse
	assert.True(t, errors.As(err, &inv))
}
