package suggest

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/danchu1411/taskie-cli/internal/api"
)

// minLeadTime is how far from "now" the first mock slot may start.
const minLeadTime = 30 * time.Minute

// MockEngine simulates the suggestion service without any network I/O. It
// is deterministic for a given request and seed; different seeds may yield
// different slot counts.
type MockEngine struct {
	Seed int64

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time

	// FailWith, when set, makes Suggest return that error after request
	// validation passes. Use the Simulated* constructors to exercise each
	// failure kind.
	FailWith error
}

func NewMockEngine(seed int64) *MockEngine {
	return &MockEngine{Seed: seed}
}

func (m *MockEngine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

var mockReasons = []string{
	"your mornings this week are mostly free",
	"fits between existing schedule entries",
	"leaves a comfortable buffer before the deadline",
	"matches the hours you usually complete tasks in",
	"the calendar shows no conflicts in this window",
}

func (m *MockEngine) Suggest(ctx context.Context, req SuggestionRequest) (*SuggestionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &api.NetworkError{Err: err}
	}

	now := m.now()
	if fe := ValidateRequest(req, now); fe.HasErrors() {
		return nil, requestError(fe)
	}
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	earliest := roundUpToStep(now.Add(minLeadTime))
	latestStart := req.Deadline.Add(-duration)
	deadlineFits := !latestStart.Before(earliest)
	if w := req.PreferredWindow; w != nil {
		if ws := roundUpToStep(w.Start); ws.After(earliest) {
			earliest = ws
		}
		if we := w.End.Add(-duration); we.Before(latestStart) {
			latestStart = we
		}
	}

	if latestStart.Before(earliest) {
		// When only the preferred window is too short, offer a shortened
		// block inside it instead of giving up.
		if req.PreferredWindow != nil && deadlineFits {
			if slot, ok := shortenedSlot(req, earliest); ok {
				resp := &SuggestionResponse{
					Slots:      []SuggestedSlot{slot},
					Confidence: slot.Confidence,
				}
				if err := resp.Normalize(); err != nil {
					return nil, fmt.Errorf("normalizing mock response: %w", err)
				}
				return resp, nil
			}
		}
		return &SuggestionResponse{
			Slots: nil,
			FallbackAutoMode: FallbackAutoMode{
				Enabled: true,
				Reason:  "the deadline is too tight for a block of this length",
			},
		}, nil
	}

	rng := rand.New(rand.NewSource(m.Seed ^ requestFingerprint(req)))
	count := 1 + rng.Intn(3)

	span := latestStart.Sub(earliest)
	resp := &SuggestionResponse{}
	var total float64
	for i := 0; i < count; i++ {
		offset := time.Duration(0)
		if count > 1 {
			offset = span * time.Duration(i) / time.Duration(count-1)
		}
		start := roundUpToStep(earliest.Add(offset))
		if start.After(latestStart) {
			start = roundDownToStep(latestStart)
		}
		if start.Before(earliest) {
			start = earliest
		}

		confidence := 0.92 - 0.2*float64(i) - rng.Float64()*0.05
		if confidence < 0.05 {
			confidence = 0.05
		}
		total += confidence

		resp.Slots = append(resp.Slots, SuggestedSlot{
			ID:               uuid.NewString(),
			StartAt:          start,
			SuggestedStartAt: start.Format(time.RFC3339),
			PlannedMinutes:   req.DurationMinutes,
			Confidence:       confidence,
			Reason:           mockReasons[rng.Intn(len(mockReasons))],
		})
	}
	resp.Confidence = total / float64(count)

	if err := resp.Normalize(); err != nil {
		return nil, fmt.Errorf("normalizing mock response: %w", err)
	}
	return resp, nil
}

// shortenedSlot fits the longest step-aligned block the preferred window
// still holds, marking the cut in the slot metadata. Returns false when not
// even the minimum block length fits.
func shortenedSlot(req SuggestionRequest, start time.Time) (SuggestedSlot, bool) {
	end := req.PreferredWindow.End
	if req.Deadline.Before(end) {
		end = req.Deadline
	}
	available := int(end.Sub(start) / time.Minute)
	shortened := available / DurationStepMinutes * DurationStepMinutes
	if shortened < MinDurationMinutes {
		return SuggestedSlot{}, false
	}
	if shortened > req.DurationMinutes {
		shortened = req.DurationMinutes
	}

	return SuggestedSlot{
		ID:               uuid.NewString(),
		StartAt:          start,
		SuggestedStartAt: start.Format(time.RFC3339),
		PlannedMinutes:   shortened,
		Confidence:       0.55,
		Reason: fmt.Sprintf("your preferred window only fits %d of the requested %d minutes",
			shortened, req.DurationMinutes),
		Metadata: &SlotMetadata{AdjustedDuration: shortened},
	}, true
}

// requestFingerprint hashes the request fields that should influence the
// simulated variation, so identical inputs always produce identical output.
func requestFingerprint(req SuggestionRequest) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d", req.Title, req.DurationMinutes, req.Deadline.Unix())
	return int64(h.Sum64())
}

func roundUpToStep(t time.Time) time.Time {
	step := DurationStepMinutes * time.Minute
	rounded := t.Truncate(step)
	if rounded.Before(t) {
		rounded = rounded.Add(step)
	}
	return rounded
}

func roundDownToStep(t time.Time) time.Time {
	return t.Truncate(DurationStepMinutes * time.Minute)
}

// SimulatedValidationError builds the field-scoped failure the backend
// would return for a bad request.
func SimulatedValidationError(field, message string) error {
	return &api.ValidationError{Fields: []api.FieldError{{Field: field, Message: message}}}
}

// SimulatedRateLimit builds a rate-limit failure with a retry-after hint.
func SimulatedRateLimit(retryAfter time.Duration) error {
	return &api.RateLimitError{RetryAfter: retryAfter}
}

// SimulatedNetworkError builds a retryable transient transport failure.
func SimulatedNetworkError() error {
	return &api.NetworkError{Err: fmt.Errorf("simulated connection reset"), Retryable: true}
}

// SimulatedAuthError builds an invalid-session failure.
func SimulatedAuthError() error {
	return &api.AuthError{Reason: "simulated expired session"}
}

// SimulatedConflict builds a slot-no-longer-available failure.
func SimulatedConflict() error {
	return &api.ConflictError{Message: "the selected slot was claimed by another schedule change"}
}

// MockAcceptor simulates the accept service. FailWith injects a failure for
// the next call; FailTimes limits how many calls fail before succeeding,
// with zero meaning every call fails while FailWith is set.
type MockAcceptor struct {
	FailWith  error
	FailTimes int

	calls int
	keys  []string
}

func NewMockAcceptor() *MockAcceptor {
	return &MockAcceptor{}
}

// Calls reports how many accept attempts were made.
func (a *MockAcceptor) Calls() int { return a.calls }

// Keys reports the idempotency key of every attempt, in order.
func (a *MockAcceptor) Keys() []string { return a.keys }

func (a *MockAcceptor) Accept(ctx context.Context, slot SuggestedSlot, req SuggestionRequest, idempotencyKey string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &api.NetworkError{Err: err}
	}
	a.calls++
	a.keys = append(a.keys, idempotencyKey)
	if a.FailWith != nil {
		if a.FailTimes == 0 || a.calls <= a.FailTimes {
			return "", a.FailWith
		}
	}
	return "sched_" + uuid.NewString(), nil
}
