package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrCircuitOpen = errors.New("backend circuit breaker open")
	ErrNoAddress   = errors.New("no wallet address found in user info")
)

// APIError is a reply from the backend that signals failure, either through a
// non-2xx status or a "success": false body.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Message extracts the human-readable part of err, falling back to def.
func Message(err error, def string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return def
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{
		Status:  status,
		Message: messageFromBody(body),
		Body:    body,
	}
}

// messageFromBody pulls "error" or "message" out of a JSON body. The backend
// sometimes nests the error as an object.
func messageFromBody(body []byte) string {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return strings.TrimSpace(string(body))
	}

	if len(env.Error) > 0 && string(env.Error) != "null" {
		var s string
		if err := json.Unmarshal(env.Error, &s); err == nil {
			return s
		}

		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		return string(env.Error)
	}

	return env.Message
}

// countsAsFailure decides what trips the breaker: transport errors and 5xx.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return true
}
