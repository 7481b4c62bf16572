package suggest

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danchu1411/taskie-cli/internal/api"
)

// FieldErrors maps field names to human-readable messages. It merges
// client-side validation results with server-returned field errors; editing
// a field clears only that field's entry.
type FieldErrors map[string]string

func (fe FieldErrors) Set(field, message string) {
	fe[field] = message
}

func (fe FieldErrors) Clear(field string) {
	delete(fe, field)
}

// Merge copies messages from other, overwriting existing entries per field.
func (fe FieldErrors) Merge(other map[string]string) {
	for field, msg := range other {
		fe[field] = msg
	}
}

func (fe FieldErrors) HasErrors() bool {
	return len(fe) > 0
}

// ValidateTitle checks the request title field.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return fmt.Errorf("title must be at most %d characters", MaxTitleLen)
	}
	return nil
}

// ValidateDescription checks the optional description field.
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLen {
		return fmt.Errorf("description must be at most %d characters", MaxDescriptionLen)
	}
	return nil
}

// ValidateDuration checks that minutes is a multiple of the planning step
// within the plannable range.
func ValidateDuration(minutes int) error {
	if minutes < MinDurationMinutes || minutes > MaxDurationMinutes {
		return fmt.Errorf("duration must be between %d and %d minutes", MinDurationMinutes, MaxDurationMinutes)
	}
	if minutes%DurationStepMinutes != 0 {
		return fmt.Errorf("duration must be a multiple of %d minutes", DurationStepMinutes)
	}
	return nil
}

// ValidateDeadline checks that the deadline is set and strictly in the
// future relative to now.
func ValidateDeadline(deadline time.Time, now time.Time) error {
	if deadline.IsZero() {
		return fmt.Errorf("deadline is required")
	}
	if !deadline.After(now) {
		return fmt.Errorf("deadline must be in the future")
	}
	return nil
}

// ValidatePreferredWindow checks the optional preference window ordering.
func ValidatePreferredWindow(window *TimeWindow) error {
	if window == nil {
		return nil
	}
	if window.Start.IsZero() || window.End.IsZero() {
		return fmt.Errorf("preferred window must have both start and end")
	}
	if !window.Start.Before(window.End) {
		return fmt.Errorf("preferred window start must be before its end")
	}
	return nil
}

// ValidateRequest runs all field validators and returns the failures keyed
// by field name. An empty map means the request is valid.
func ValidateRequest(req SuggestionRequest, now time.Time) FieldErrors {
	fe := FieldErrors{}
	if err := ValidateTitle(req.Title); err != nil {
		fe.Set("title", err.Error())
	}
	if err := ValidateDescription(req.Description); err != nil {
		fe.Set("description", err.Error())
	}
	if err := ValidateDuration(req.DurationMinutes); err != nil {
		fe.Set("duration_minutes", err.Error())
	}
	if err := ValidateDeadline(req.Deadline, now); err != nil {
		fe.Set("deadline", err.Error())
	}
	if err := ValidatePreferredWindow(req.PreferredWindow); err != nil {
		fe.Set("preferred_window", err.Error())
	}
	return fe
}

// requestError converts field failures into the shared validation error type
// so engines fail fast with the same shape the backend produces.
func requestError(fe FieldErrors) *api.ValidationError {
	fields := make([]api.FieldError, 0, len(fe))
	for field, msg := range fe {
		fields = append(fields, api.FieldError{Field: field, Message: msg})
	}
	return &api.ValidationError{Fields: fields}
}

// noOffsetLayouts parse timestamps that are syntactically fine but carry no
// timezone information, which we reject explicitly.
var noOffsetLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ValidateSuggestedStartAt checks a suggested start timestamp string. Each
// failure mode produces a distinct, human-readable message.
func ValidateSuggestedStartAt(value string, now time.Time) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("suggested start time is required")
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		for _, layout := range noOffsetLayouts {
			if _, perr := time.Parse(layout, value); perr == nil {
				return fmt.Errorf("suggested start time must include an explicit timezone offset")
			}
		}
		return fmt.Errorf("suggested start time is not a valid timestamp: %q", value)
	}

	if !t.After(now) {
		return fmt.Errorf("suggested start time must be in the future")
	}
	if t.After(now.Add(maxFutureHorizon)) {
		return fmt.Errorf("suggested start time is more than a year in the future")
	}
	// Defensive bound; time.Parse never produces an hour outside this range.
	if h := t.Hour(); h < 0 || h > 23 {
		return fmt.Errorf("suggested start time has an out-of-range hour: %d", h)
	}
	return nil
}

// ValidateResponse checks a full suggestion response, collecting every
// problem rather than stopping at the first so callers can show all of them
// at once.
func ValidateResponse(resp *SuggestionResponse, now time.Time) []error {
	var errs []error
	if resp == nil {
		return []error{fmt.Errorf("suggestion response is missing")}
	}
	if len(resp.Slots) == 0 {
		errs = append(errs, fmt.Errorf("response must contain at least one suggested slot"))
	}
	for i, slot := range resp.Slots {
		if err := ValidateSuggestedStartAt(slot.SuggestedStartAt, now); err != nil {
			errs = append(errs, fmt.Errorf("slot %d: %w", i, err))
		}
		// Unlike form input, slot durations are not held to the 15-minute
		// step: an engine may shorten a block to fit a tight window.
		if slot.PlannedMinutes < MinDurationMinutes || slot.PlannedMinutes > MaxDurationMinutes {
			errs = append(errs, fmt.Errorf("slot %d: planned minutes must be between %d and %d",
				i, MinDurationMinutes, MaxDurationMinutes))
		}
		if slot.Confidence < 0 || slot.Confidence > 1 {
			errs = append(errs, fmt.Errorf("slot %d: confidence %.2f is outside [0,1]", i, slot.Confidence))
		}
		if strings.TrimSpace(slot.Reason) == "" {
			errs = append(errs, fmt.Errorf("slot %d: reason must not be empty", i))
		}
	}
	return errs
}
