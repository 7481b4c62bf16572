package suggest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/danchu1411/taskie-cli/internal/api"
)

// Step identifies the wizard step a session is on.
type Step int

const (
	StepInput Step = iota
	StepSuggestions
)

var (
	// ErrSuggestInFlight is returned when a submit arrives while a
	// suggestion call is already outstanding; requests are rejected, never
	// queued.
	ErrSuggestInFlight = errors.New("a suggestion request is already in progress")

	// ErrSessionClosed is returned for any operation after Close.
	ErrSessionClosed = errors.New("the session has been closed")

	// ErrStaleResponse marks a result that arrived for a superseded
	// request generation and was discarded.
	ErrStaleResponse = errors.New("suggestion response arrived for a superseded request")

	// ErrNoSlotSelected is returned when Accept is called without a
	// primary selection.
	ErrNoSlotSelected = errors.New("no slot is selected")

	// ErrUnknownSlot is returned when the selected slot ID does not belong
	// to the current response.
	ErrUnknownSlot = errors.New("the selected slot does not belong to the current suggestions")
)

// Callbacks is the session's only contract with its host: success hands
// over the created schedule entry ID, close signals that all session state
// was discarded.
type Callbacks struct {
	OnSuccess func(scheduleEntryID string)
	OnClose   func()
}

// Session owns the state of one open/close cycle of the suggestions wizard:
// the current step, the submitted request, the ingested slots, selection
// state, and field errors. Engines are injected at construction; an
// in-flight call always resolves against the services it started with.
// All methods are safe for concurrent use.
type Session struct {
	services  Services
	callbacks Callbacks
	logger    *slog.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time

	mu          sync.Mutex
	step        Step
	request     *SuggestionRequest
	response    *SuggestionResponse
	selection   *Selection
	fieldErrors FieldErrors
	accept      *AcceptFlow
	generation  uint64
	inFlight    bool
	closed      bool
}

func NewSession(services Services, callbacks Callbacks, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		services:    services,
		callbacks:   callbacks,
		logger:      logger,
		step:        StepInput,
		selection:   NewSelection(),
		fieldErrors: FieldErrors{},
		accept:      NewAcceptFlow(services.Acceptor, logger),
	}
}

func (s *Session) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Response returns the current suggestion response, nil while on the input
// step.
func (s *Session) Response() *SuggestionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.response
}

// Request returns the request the current suggestions were generated for.
func (s *Session) Request() *SuggestionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.request
}

// Selection returns the slot selection state for the suggestions step. The
// caller drives it from a single goroutine (the UI event loop).
func (s *Session) Selection() *Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// AcceptFlow exposes the accept lifecycle for the suggestions step.
func (s *Session) AcceptFlow() *AcceptFlow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accept
}

// FieldErrors returns a snapshot of the current field error set.
func (s *Session) FieldErrors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.fieldErrors))
	for k, v := range s.fieldErrors {
		out[k] = v
	}
	return out
}

// ClearFieldError drops the error for one field. Called when the user edits
// that field; other fields keep their errors, whether client- or
// server-origin.
func (s *Session) ClearFieldError(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fieldErrors.Clear(field)
}

// Submit validates the request and runs one suggestion call. On success the
// session advances to the suggestions step with fresh selection state; on
// failure it stays on the input step with field errors merged in. A second
// submit while one is outstanding returns ErrSuggestInFlight.
func (s *Session) Submit(ctx context.Context, req SuggestionRequest) (*SuggestionResponse, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrSuggestInFlight
	}

	if fe := ValidateRequest(req, s.now()); fe.HasErrors() {
		s.fieldErrors.Merge(fe)
		s.mu.Unlock()
		return nil, requestError(fe)
	}

	s.generation++
	gen := s.generation
	s.inFlight = true
	engine := s.services.Engine
	s.mu.Unlock()

	resp, err := engine.Suggest(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		s.inFlight = false
	}
	if s.closed || gen != s.generation {
		// The session moved on while the call was outstanding; its result
		// must not mutate state.
		s.logger.Debug("dropping stale suggestion response", "generation", gen)
		if err != nil {
			return nil, err
		}
		return nil, ErrStaleResponse
	}

	if err != nil {
		var valErr *api.ValidationError
		if errors.As(err, &valErr) {
			s.fieldErrors.Merge(valErr.FieldMap())
		}
		return nil, err
	}

	reqCopy := req
	s.request = &reqCopy
	s.response = resp
	s.selection.Reset()
	s.accept = NewAcceptFlow(s.services.Acceptor, s.logger)
	s.fieldErrors = FieldErrors{}
	s.step = StepSuggestions
	return resp, nil
}

// Accept submits the currently selected slot. The slot is looked up in the
// session's own response, so only slots the session actually received can
// ever reach the acceptor. On success the host's OnSuccess callback fires.
func (s *Session) Accept(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	if s.step != StepSuggestions || s.response == nil || s.request == nil {
		s.mu.Unlock()
		return "", ErrNoSlotSelected
	}
	slotID := s.selection.SelectedSlotID()
	if slotID == "" {
		s.mu.Unlock()
		return "", ErrNoSlotSelected
	}
	slot, ok := s.response.SlotByID(slotID)
	if !ok {
		s.mu.Unlock()
		return "", ErrUnknownSlot
	}
	flow := s.accept
	req := *s.request
	gen := s.generation
	s.mu.Unlock()

	entryID, err := flow.Submit(ctx, slot, req)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	stale := s.closed || gen != s.generation
	onSuccess := s.callbacks.OnSuccess
	s.mu.Unlock()
	if !stale && onSuccess != nil {
		onSuccess(entryID)
	}
	return entryID, nil
}

// Back returns from the suggestions step to the input step so the user can
// edit and re-request. The suggestion list and selection state are
// discarded; any outstanding call becomes stale.
func (s *Session) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.step != StepSuggestions {
		return
	}
	s.generation++
	s.inFlight = false
	s.step = StepInput
	s.response = nil
	s.selection.Reset()
	s.accept = NewAcceptFlow(s.services.Acceptor, s.logger)
}

// Close discards all in-memory state for the session. Results of any
// outstanding calls are dropped. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.inFlight = false
	s.response = nil
	s.request = nil
	s.selection.Reset()
	s.fieldErrors = FieldErrors{}
	onClose := s.callbacks.OnClose
	s.mu.Unlock()

	if onClose != nil {
		onClose()
	}
}
