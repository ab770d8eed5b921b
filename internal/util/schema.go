// Package util holds small internal helpers shared across packages: a
// minimal JSON-Schema subset validator for capability arguments and a
// reflection-based schema builder for struct-shaped argument types.
package util

import (
	"fmt"
	"reflect"
	"strings"
)

// ValidationError reports an argument that failed schema validation.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateArgs checks args against a minimal JSON-Schema object: required
// fields must be present, typed properties must match, enum properties must
// hold one of the listed values. Extra fields are allowed.
func ValidateArgs(args map[string]any, schema map[string]any) error {
	for _, req := range requiredFields(schema) {
		if _, ok := args[req]; !ok {
			return &ValidationError{Field: req, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for field, value := range args {
		prop, ok := properties[field].(map[string]any)
		if !ok {
			continue
		}
		expected, _ := prop["type"].(string)
		if !matchesType(value, expected) {
			return &ValidationError{
				Field:   field,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expected, value),
			}
		}
		if enum, ok := prop["enum"].([]any); ok && !inEnum(value, enum) {
			return &ValidationError{
				Field:   field,
				Value:   value,
				Message: "value not in enum",
			}
		}
	}

	return nil
}

// requiredFields tolerates both []string (hand-written schemas) and []any
// (schemas round-tripped through JSON).
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		fields := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				fields = append(fields, s)
			}
		}
		return fields
	default:
		return nil
	}
}

func inEnum(value any, enum []any) bool {
	for _, e := range enum {
		if value == e {
			return true
		}
	}
	return false
}

func matchesType(value any, expected string) bool {
	if value == nil {
		return true
	}
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON numbers decode as float64
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

// SchemaFromStruct derives a JSON-Schema object from a struct using
// reflection. Fields tagged `json:"-"` are skipped; pointer fields and
// fields with omitempty are optional; `description` tags are carried over.
func SchemaFromStruct(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	properties := make(map[string]any)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		tagParts := strings.Split(jsonTag, ",")
		if tagParts[0] != "" {
			name = tagParts[0]
		}

		fieldSchema := map[string]any{"type": jsonType(field.Type)}
		if desc := field.Tag.Get("description"); desc != "" {
			fieldSchema["description"] = desc
		}
		properties[name] = fieldSchema

		optional := field.Type.Kind() == reflect.Ptr
		for _, p := range tagParts[1:] {
			if strings.TrimSpace(p) == "omitempty" {
				optional = true
			}
		}
		if !optional {
			required = append(required, name)
		}
	}

	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "string"
	}
}
