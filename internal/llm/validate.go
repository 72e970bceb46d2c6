package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaRegistry compiles each named Schema once. Reply schemas are
// package-level values, so the name identifies the definition.
type schemaRegistry struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

var schemas = &schemaRegistry{compiled: map[string]*jsonschema.Schema{}}

// validateResponse checks raw JSON against schema. A nil schema passes.
// Failures are reported as *ErrInvalidResponse.
func validateResponse(schema *Schema, raw json.RawMessage) error {
	if schema == nil {
		return nil
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	compiled, err := schemas.get(schema)
	if err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("compile schema %q: %w", schema.Name, err)}
	}
	if err := compiled.Validate(instance); err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("schema %q: %w", schema.Name, err)}
	}
	return nil
}

func (r *schemaRegistry) get(schema *Schema) (*jsonschema.Schema, error) {
	r.mu.RLock()
	c, ok := r.compiled[schema.Name]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.compiled[schema.Name]; ok {
		return c, nil
	}

	def, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal definition: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(def))
	if err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	loc := "schema://" + schema.Name + ".json"
	if err := compiler.AddResource(loc, doc); err != nil {
		return nil, err
	}
	if c, err = compiler.Compile(loc); err != nil {
		return nil, err
	}
	r.compiled[schema.Name] = c
	return c, nil
}
