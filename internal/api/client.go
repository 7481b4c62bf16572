package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.taskie.app/v1"

// TokenProvider supplies a bearer token for each request. Implementations
// refresh expired tokens transparently.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type Client struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, tokens TokenProvider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Do sends a JSON request and decodes the JSON response into out (which may
// be nil). Transport failures and 5xx responses are retried with exponential
// backoff; every other non-2xx response is decoded into a typed error
// immediately.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	url := c.baseURL + path
	c.logger.Debug("taskie API request", "method", method, "path", path)

	var resp *http.Response
	maxRetries := 3
	requestStart := time.Now()
	for attempt := 0; attempt <= maxRetries; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.tokens != nil {
			token, err := c.tokens.Token(ctx)
			if err != nil {
				return &AuthError{Reason: err.Error()}
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return &NetworkError{Err: ctx.Err(), Retryable: false}
			}
			if attempt == maxRetries {
				c.logger.Error("API request transport error", "method", method, "path", path, "error", err, "elapsed", time.Since(requestStart))
				return &NetworkError{Err: err, Retryable: true}
			}
			c.logger.Debug("API request transport error, retrying", "method", method, "path", path, "attempt", attempt+1, "error", err)
			time.Sleep(backoff(attempt))
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				c.logger.Error("API request failed after retries", "method", method, "path", path, "status", resp.StatusCode, "attempts", maxRetries+1, "elapsed", time.Since(requestStart))
				return &NetworkError{Err: fmt.Errorf("server returned status %d", resp.StatusCode), Retryable: true}
			}
			c.logger.Debug("API request retryable error", "method", method, "path", path, "status", resp.StatusCode, "attempt", attempt+1)
			time.Sleep(backoff(attempt))
			continue
		}
		break
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: fmt.Errorf("reading response: %w", err), Retryable: true}
	}

	c.logger.Debug("taskie API response", "method", method, "path", path, "status", resp.StatusCode, "bytes", len(respBody), "elapsed", time.Since(requestStart))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeError(resp.StatusCode, respBody, resp.Header.Get)
		c.logger.Error("API request failed", "method", method, "path", path, "status", resp.StatusCode, "error", apiErr)
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}

// decodeError maps a non-2xx response onto the error taxonomy.
func decodeError(status int, body []byte, header func(string) string) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Reason: eb.Error.Message}
	case status == http.StatusConflict:
		return &ConflictError{Message: eb.Error.Message}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfterHint(header)}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		fields := eb.Error.Details
		if len(fields) == 0 && eb.Error.Message != "" {
			fields = []FieldError{{Field: "request", Message: eb.Error.Message}}
		}
		return &ValidationError{Fields: fields}
	default:
		return &UnknownError{Status: status, Body: truncate(string(body), 200)}
	}
}

// Retryable reports whether err is worth retrying as-is. Validation,
// auth and conflict errors need user action first.
func Retryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Retryable
	}
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
