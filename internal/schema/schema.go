// Package schema validates JSON documents against full JSON Schema, for
// callers that opt into strict validation beyond the client's built-in
// subset checks.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	mu       sync.Mutex
	compiled = map[string]*jsonschema.Schema{}
)

// Validate checks doc against schemaJSON. Compiled schemas are cached by
// their exact bytes, so repeated calls for the same tool compile once.
func Validate(schemaJSON, doc json.RawMessage) error {
	if len(schemaJSON) == 0 {
		return nil
	}
	s, err := compile(schemaJSON)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return s.Validate(v)
}

func compile(schemaJSON json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaJSON)
	mu.Lock()
	defer mu.Unlock()
	if s, ok := compiled[key]; ok {
		return s, nil
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("schema resource: %w", err)
	}
	s, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	compiled[key] = s
	return s, nil
}
