package message

import "fmt"

// ValidationError reports content that cannot be turned into provider
// messages. Nothing is sent when one is returned.
type ValidationError struct {
	Index   int    `json:"index"` // position of the offending unit, -1 for the whole payload
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid message content: %s", e.Message)
	}
	if e.Field == "" {
		return fmt.Sprintf("invalid message %d: %s", e.Index, e.Message)
	}
	return fmt.Sprintf("invalid message %d: %s: %s", e.Index, e.Field, e.Message)
}

func invalid(index int, field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Index: index, Field: field, Message: fmt.Sprintf(format, args...)}
}
