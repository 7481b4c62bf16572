package suggest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danchu1411/taskie-cli/internal/api"
)

// AcceptState is the lifecycle of submitting one chosen slot.
type AcceptState int

const (
	AcceptIdle AcceptState = iota
	AcceptSubmitting
	AcceptSucceeded
	AcceptFailed
)

func (s AcceptState) String() string {
	switch s {
	case AcceptIdle:
		return "idle"
	case AcceptSubmitting:
		return "submitting"
	case AcceptSucceeded:
		return "succeeded"
	case AcceptFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrAcceptInFlight is returned when a confirm arrives while a submission is
// already outstanding. Callers treat it as a no-op.
var ErrAcceptInFlight = errors.New("an accept submission is already in progress")

// ErrAcceptDone is returned when a confirm arrives after the flow already
// succeeded.
var ErrAcceptDone = errors.New("the slot was already accepted")

const (
	defaultMaxAutoRetries = 2
	defaultRetryBackoff   = 2 * time.Second
	maxHonoredRetryAfter  = 30 * time.Second
)

// AcceptFlow drives Idle → Submitting → Succeeded | Failed. Exactly one
// submission may be outstanding; transient failures are retried
// automatically with backoff, honoring any rate-limit hint, while conflict
// and validation failures surface immediately.
type AcceptFlow struct {
	acceptor Acceptor
	logger   *slog.Logger

	// Sleep is injectable for tests; defaults to a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	state   AcceptState
	entryID string
	err     error
	idemKey string
}

func NewAcceptFlow(acceptor Acceptor, logger *slog.Logger) *AcceptFlow {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AcceptFlow{
		acceptor: acceptor,
		logger:   logger,
		Sleep:    sleepCtx,
	}
}

func (f *AcceptFlow) State() AcceptState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// EntryID returns the created schedule entry identifier once the flow has
// succeeded.
func (f *AcceptFlow) EntryID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entryID
}

// Err returns the failure of the last submission, if any.
func (f *AcceptFlow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Retryable reports whether the failed flow offers a manual retry. Conflict
// and validation failures do not: the former requires re-requesting
// suggestions, the latter changed input.
func (f *AcceptFlow) Retryable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == AcceptFailed && api.Retryable(f.err)
}

// NeedsResuggest reports whether the failure means the chosen slot is gone
// and the user must go back and request fresh suggestions.
func (f *AcceptFlow) NeedsResuggest() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	var conflict *api.ConflictError
	return f.state == AcceptFailed && errors.As(f.err, &conflict)
}

// Reset returns a failed flow to Idle so a manual retry can re-enter
// Submitting. Succeeded flows are terminal.
func (f *AcceptFlow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == AcceptFailed {
		f.state = AcceptIdle
		f.err = nil
	}
}

// Submit runs one submission to completion and returns the new schedule
// entry ID. A call while Submitting returns ErrAcceptInFlight without
// touching state; a call after success returns ErrAcceptDone.
func (f *AcceptFlow) Submit(ctx context.Context, slot SuggestedSlot, req SuggestionRequest) (string, error) {
	f.mu.Lock()
	switch f.state {
	case AcceptSubmitting:
		f.mu.Unlock()
		return "", ErrAcceptInFlight
	case AcceptSucceeded:
		f.mu.Unlock()
		return "", ErrAcceptDone
	}
	f.state = AcceptSubmitting
	f.err = nil
	// One key per flow, never per attempt. It survives Reset so a manual
	// retry of the same slot cannot double-book an attempt that timed out
	// after the server committed it.
	if f.idemKey == "" {
		f.idemKey = uuid.NewString()
	}
	idemKey := f.idemKey
	f.mu.Unlock()

	entryID, err := f.submitWithRetry(ctx, slot, req, idemKey)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = AcceptFailed
		f.err = err
		return "", err
	}
	f.state = AcceptSucceeded
	f.entryID = entryID
	return entryID, nil
}

func (f *AcceptFlow) submitWithRetry(ctx context.Context, slot SuggestedSlot, req SuggestionRequest, idemKey string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= defaultMaxAutoRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(lastErr, attempt)
			f.logger.Debug("retrying accept", "attempt", attempt, "delay", delay)
			if err := f.Sleep(ctx, delay); err != nil {
				return "", lastErr
			}
		}

		entryID, err := f.acceptor.Accept(ctx, slot, req, idemKey)
		if err == nil {
			return entryID, nil
		}
		lastErr = err

		if !api.Retryable(err) {
			f.logger.Debug("accept failed, not retryable", "error", err)
			return "", err
		}
		f.logger.Debug("accept failed, retryable", "attempt", attempt, "error", err)
	}
	return "", lastErr
}

// retryDelay picks the wait before the next automatic attempt, honoring a
// rate-limit hint when present but never waiting unreasonably long.
func retryDelay(err error, attempt int) time.Duration {
	var rl *api.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		if rl.RetryAfter > maxHonoredRetryAfter {
			return maxHonoredRetryAfter
		}
		return rl.RetryAfter
	}
	return defaultRetryBackoff * time.Duration(attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
