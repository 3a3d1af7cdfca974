package line

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ErrorDetail is one entry of the provider's "details" array.
type ErrorDetail struct {
	Message  string `json:"message"`
	Property string `json:"property"`
}

// APIError is a non-2xx response from the Messaging API.
type APIError struct {
	StatusCode int
	Message    string
	Details    []ErrorDetail
	RequestID  string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.Details) > 0 {
		parts := make([]string, 0, len(e.Details))
		for _, d := range e.Details {
			if d.Property != "" {
				parts = append(parts, d.Property+": "+d.Message)
			} else {
				parts = append(parts, d.Message)
			}
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	return fmt.Sprintf("line api error (status %d): %s", e.StatusCode, msg)
}

// Temporary reports whether the failure is worth retrying in a later execution.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Line-Request-Id"),
	}
	var parsed struct {
		Message string        `json:"message"`
		Details []ErrorDetail `json:"details"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Message = parsed.Message
		apiErr.Details = parsed.Details
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
