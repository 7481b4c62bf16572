package suggest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/danchu1411/taskie-cli/internal/api"
)

// BackendEngine generates suggestions by calling the Taskie API.
type BackendEngine struct {
	client *api.Client
	logger *slog.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewBackendEngine(client *api.Client, logger *slog.Logger) *BackendEngine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BackendEngine{client: client, logger: logger}
}

func (e *BackendEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *BackendEngine) Suggest(ctx context.Context, req SuggestionRequest) (*SuggestionResponse, error) {
	if fe := ValidateRequest(req, e.now()); fe.HasErrors() {
		return nil, requestError(fe)
	}

	var resp SuggestionResponse
	if err := e.client.Do(ctx, http.MethodPost, "/ai/suggest", req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Normalize(); err != nil {
		return nil, fmt.Errorf("normalizing suggestion response: %w", err)
	}

	e.logger.Debug("suggestion response",
		"slots", len(resp.Slots),
		"confidence", resp.Confidence,
		"fallback", resp.FallbackAutoMode.Enabled,
	)
	return &resp, nil
}

// acceptRequest is the wire body for committing a chosen slot.
type acceptRequest struct {
	TargetTaskID     string `json:"target_task_id,omitempty"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	SuggestedStartAt string `json:"suggested_start_at"`
	PlannedMinutes   int    `json:"planned_minutes"`
	IdempotencyKey   string `json:"idempotency_key"`
}

type acceptResponse struct {
	ScheduleEntryID string `json:"schedule_entry_id"`
}

// BackendAcceptor commits a chosen slot against the Taskie API.
type BackendAcceptor struct {
	client *api.Client
	logger *slog.Logger
}

func NewBackendAcceptor(client *api.Client, logger *slog.Logger) *BackendAcceptor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BackendAcceptor{client: client, logger: logger}
}

func (a *BackendAcceptor) Accept(ctx context.Context, slot SuggestedSlot, req SuggestionRequest, idempotencyKey string) (string, error) {
	body := acceptRequest{
		TargetTaskID:     req.TargetTaskID,
		Title:            req.Title,
		Description:      req.Description,
		SuggestedStartAt: slot.SuggestedStartAt,
		PlannedMinutes:   slot.PlannedMinutes,
		IdempotencyKey:   idempotencyKey,
	}

	var resp acceptResponse
	if err := a.client.Do(ctx, http.MethodPatch, "/schedule-entries/accept", body, &resp); err != nil {
		return "", err
	}
	if resp.ScheduleEntryID == "" {
		return "", &api.UnknownError{Status: http.StatusOK, Body: "accept response missing schedule_entry_id"}
	}

	a.logger.Debug("slot accepted", "entry_id", resp.ScheduleEntryID, "start", slot.SuggestedStartAt)
	return resp.ScheduleEntryID, nil
}
