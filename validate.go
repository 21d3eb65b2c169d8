package mcp

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// inputSchema is the constrained JSON-Schema shape tool definitions declare:
// an object schema with per-property primitive types.
type inputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]propertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

type propertySchema struct {
	Type string `json:"type"`
}

// ValidateArguments checks candidate tool arguments against the tool's
// declared input schema. It is pure: no I/O, first failure wins, and the
// checks run in a fixed order — schema shape, required, unknown, per-value
// type.
func ValidateArguments(tool ToolDefinition, args map[string]any) error {
	var schema inputSchema
	if len(tool.InputSchema) > 0 {
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			return &ValidationError{Tool: tool.Name, Message: fmt.Sprintf("invalid input schema: %v", err)}
		}
	}

	if schema.Type != "" && schema.Type != "object" {
		return &ValidationError{
			Tool:    tool.Name,
			Message: fmt.Sprintf("unsupported schema type %q, expected %q", schema.Type, "object"),
		}
	}

	var missing []string
	for _, name := range schema.Required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Tool: tool.Name, Missing: missing}
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(schema.Properties) > 0 {
		var unknown []string
		for _, name := range names {
			if _, ok := schema.Properties[name]; !ok {
				unknown = append(unknown, name)
			}
		}
		if len(unknown) > 0 {
			return &ValidationError{Tool: tool.Name, Unknown: unknown}
		}
	}

	for _, name := range names {
		prop, ok := schema.Properties[name]
		if !ok || prop.Type == "" {
			continue
		}
		if err := checkArgumentType(tool.Name, name, args[name], prop.Type); err != nil {
			return err
		}
	}
	return nil
}

func checkArgumentType(tool, name string, value any, declared string) error {
	got := jsonKind(value)

	if got == "null" {
		if declared == "null" {
			return nil
		}
		return &ValidationError{Tool: tool, Param: name, Want: declared, Got: "null"}
	}

	switch declared {
	case "string", "integer", "boolean", "array", "object", "null":
		if got == declared {
			return nil
		}
	case "number":
		// number admits both integral and floating forms.
		if got == "integer" || got == "number" {
			return nil
		}
	default:
		return &ValidationError{
			Tool:    tool,
			Message: fmt.Sprintf("unsupported parameter type %q for parameter %q", declared, name),
		}
	}
	return &ValidationError{Tool: tool, Param: name, Want: declared, Got: got}
}

// jsonKind maps a runtime Go value to its JSON kind. Numbers decoded from
// JSON arrive as float64; integral floats classify as "integer" so that
// declared integers accept them.
func jsonKind(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32:
		return floatKind(float64(v))
	case float64:
		return floatKind(v)
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return "integer"
		}
		return "number"
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "null"
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func floatKind(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return "integer"
	}
	return "number"
}
