package workflow

import (
	"strings"

	"blindmark/watermark"
)

// Field is one required input checked by a Gate
type Field struct {
	Name  string
	Value any
}

// ValidationError is a missing or empty required input, detected before any request
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Gate checks required inputs and reports failures with a single workflow message
type Gate struct {
	Message string
}

// Validate returns a *ValidationError naming the first invalid field, or nil.
// A value is invalid when it is nil, an empty file selection, or a blank string.
func (g Gate) Validate(fields ...Field) error {
	for _, f := range fields {
		if empty(f.Value) {
			return &ValidationError{Field: f.Name, Message: g.Message}
		}
	}
	return nil
}

func empty(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case *watermark.File:
		return v.Empty()
	case []byte:
		return len(v) == 0
	default:
		return false
	}
}
