package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldError is a single field-scoped validation failure reported by the
// backend or by client-side request validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level messages. It is never retryable until
// the offending fields change.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldMap returns the errors keyed by field name, keeping the first message
// per field.
func (e *ValidationError) FieldMap() map[string]string {
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, ok := m[f.Field]; !ok {
			m[f.Field] = f.Message
		}
	}
	return m
}

// RateLimitError signals a 429. RetryAfter is zero when the server gave no
// hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// NetworkError wraps a transport failure or a 5xx that survived retries.
type NetworkError struct {
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError means the session is invalid. The caller should direct the user
// back to login rather than retry.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "authentication failed"
	}
	return "authentication failed: " + e.Reason
}

// ConflictError means the referenced slot or entry is no longer available.
// Retrying the same request cannot succeed; suggestions must be re-requested.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message == "" {
		return "conflict: resource no longer available"
	}
	return "conflict: " + e.Message
}

// UnknownError is the catch-all for responses that fit no other kind.
type UnknownError struct {
	Status int
	Body   string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unexpected API error (status %d): %s", e.Status, e.Body)
}

// errorBody is the backend's structured error envelope.
type errorBody struct {
	Error struct {
		Code    string       `json:"code"`
		Message string       `json:"message"`
		Details []FieldError `json:"details"`
	} `json:"error"`
}

// retryAfterHint reads a delay from Retry-After or X-RateLimit-Reset style
// headers. Returns zero when neither is usable.
func retryAfterHint(get func(string) string) time.Duration {
	if v := get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := time.Parse(time.RFC1123, v); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}
	if v := get("X-RateLimit-Reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Until(time.Unix(unix, 0)); d > 0 {
				return d
			}
		}
	}
	return 0
}
