package suggest

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MinDurationMinutes and MaxDurationMinutes bound a plannable block.
	MinDurationMinutes = 15
	MaxDurationMinutes = 180
	// DurationStepMinutes is the granularity of plannable blocks.
	DurationStepMinutes = 15

	// MaxTitleLen and MaxDescriptionLen mirror the backend's field limits.
	MaxTitleLen       = 120
	MaxDescriptionLen = 500

	// maxFutureHorizon caps how far ahead a suggested start may land.
	maxFutureHorizon = 365 * 24 * time.Hour
)

// TimeWindow is a half-open preference window for slot placement.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SuggestionRequest is the manual input that drives a suggestion call.
// It is treated as immutable once submitted to an engine.
type SuggestionRequest struct {
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	DurationMinutes int         `json:"duration_minutes"`
	Deadline        time.Time   `json:"deadline"`
	PreferredWindow *TimeWindow `json:"preferred_window,omitempty"`
	TargetTaskID    string      `json:"target_task_id,omitempty"`
}

// SlotMetadata carries optional per-slot annotations from the engine.
type SlotMetadata struct {
	AdjustedDuration int `json:"adjusted_duration,omitempty"`
}

// SuggestedSlot is one candidate time window. Slots are immutable once
// returned by an engine; ID and StartAt are filled in client-side when a
// response is normalized so later selection and comparison have stable
// handles.
type SuggestedSlot struct {
	ID               string        `json:"-"`
	StartAt          time.Time     `json:"-"`
	SuggestedStartAt string        `json:"suggested_start_at"`
	PlannedMinutes   int           `json:"planned_minutes"`
	Confidence       float64       `json:"confidence"`
	Reason           string        `json:"reason"`
	Metadata         *SlotMetadata `json:"metadata,omitempty"`
}

// Duration returns the planned block length.
func (s SuggestedSlot) Duration() time.Duration {
	return time.Duration(s.PlannedMinutes) * time.Minute
}

// EndAt returns the slot's end time.
func (s SuggestedSlot) EndAt() time.Time {
	return s.StartAt.Add(s.Duration())
}

// ConfidenceTier discretizes a [0,1] confidence score for display.
type ConfidenceTier int

const (
	TierLow ConfidenceTier = iota
	TierMedium
	TierHigh
)

func (t ConfidenceTier) String() string {
	switch t {
	case TierLow:
		return "Low"
	case TierMedium:
		return "Medium"
	case TierHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Tier maps the slot's confidence onto a display tier.
func (s SuggestedSlot) Tier() ConfidenceTier {
	switch {
	case s.Confidence < 0.34:
		return TierLow
	case s.Confidence < 0.67:
		return TierMedium
	default:
		return TierHigh
	}
}

// FallbackAutoMode signals that no usable slots were found and the caller
// should offer the automatic scheduling path instead.
type FallbackAutoMode struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

// SuggestionResponse is the full result of one suggestion call. Slots keep
// the engine's own ranking order; the client never reorders them unless the
// user applies a sort.
type SuggestionResponse struct {
	Slots            []SuggestedSlot  `json:"suggested_slots"`
	Confidence       float64          `json:"confidence"`
	FallbackAutoMode FallbackAutoMode `json:"fallback_auto_mode"`
}

// Empty reports whether the response carries no usable slots. This is a
// valid outcome, not an error.
func (r *SuggestionResponse) Empty() bool {
	return len(r.Slots) == 0
}

// Normalize assigns client-side slot IDs, parses slot start times, and
// enforces the fallback contract for empty responses. Engines call it before
// handing a response to the caller.
func (r *SuggestionResponse) Normalize() error {
	for i := range r.Slots {
		slot := &r.Slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.StartAt.IsZero() {
			t, err := time.Parse(time.RFC3339, slot.SuggestedStartAt)
			if err != nil {
				return err
			}
			slot.StartAt = t
		}
	}
	if len(r.Slots) == 0 && !r.FallbackAutoMode.Enabled {
		r.FallbackAutoMode = FallbackAutoMode{
			Enabled: true,
			Reason:  "no suitable slots were found",
		}
	}
	return nil
}

// SlotByID returns the slot with the given client-side ID, if present.
func (r *SuggestionResponse) SlotByID(id string) (SuggestedSlot, bool) {
	for _, s := range r.Slots {
		if s.ID == id {
			return s, true
		}
	}
	return SuggestedSlot{}, false
}
