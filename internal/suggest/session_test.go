package suggest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danchu1411/taskie-cli/internal/api"
)

// stubEngine returns a canned response or error. When block is set, Suggest
// waits for release so tests can interleave other session calls.
type stubEngine struct {
	resp *SuggestionResponse
	err  error

	block   bool
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func newStubEngine(resp *SuggestionResponse, err error) *stubEngine {
	return &stubEngine{
		resp:    resp,
		err:     err,
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (e *stubEngine) Suggest(ctx context.Context, req SuggestionRequest) (*SuggestionResponse, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	select {
	case e.started <- struct{}{}:
	default:
	}
	if e.block {
		select {
		case <-e.release:
		case <-ctx.Done():
			return nil, &api.NetworkError{Err: ctx.Err()}
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.resp, nil
}

func (e *stubEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func cannedResponse(t *testing.T) *SuggestionResponse {
	t.Helper()
	resp := &SuggestionResponse{
		Slots: []SuggestedSlot{
			{
				ID:               "slot-a",
				SuggestedStartAt: testNow.Add(4 * time.Hour).Format(time.RFC3339),
				PlannedMinutes:   60,
				Confidence:       0.85,
				Reason:           "morning is free",
			},
			{
				ID:               "slot-b",
				SuggestedStartAt: testNow.Add(8 * time.Hour).Format(time.RFC3339),
				PlannedMinutes:   60,
				Confidence:       0.6,
				Reason:           "after the standup",
			},
		},
		Confidence: 0.7,
	}
	require.NoError(t, resp.Normalize())
	return resp
}

func newTestSession(engine Engine, acceptor Acceptor, cb Callbacks) *Session {
	s := NewSession(Services{Engine: engine, Acceptor: acceptor}, cb, nil)
	s.Now = func() time.Time { return testNow }
	return s
}

func TestSession_StartsOnInputStep(t *testing.T) {
	s := newTestSession(newStubEngine(nil, nil), NewMockAcceptor(), Callbacks{})
	assert.Equal(t, StepInput, s.Step())
	assert.False(t, s.Closed())
	assert.Nil(t, s.Response())
	assert.Empty(t, s.FieldErrors())
}

func TestSession_SubmitInvalidStaysOnInput(t *testing.T) {
	engine := newStubEngine(cannedResponse(t), nil)
	s := newTestSession(engine, NewMockAcceptor(), Callbacks{})

	req := validRequest()
	req.Title = ""
	_, err := s.Submit(context.Background(), req)

	var valErr *api.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, StepInput, s.Step())
	assert.Contains(t, s.FieldErrors(), "title")
	assert.Zero(t, engine.Calls(), "invalid requests never reach the engine")
}

func TestSession_SubmitAdvancesToSuggestions(t *testing.T) {
	engine := newStubEngine(cannedResponse(t), nil)
	s := newTestSession(engine, NewMockAcceptor(), Callbacks{})

	req := validRequest()
	resp, err := s.Submit(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, StepSuggestions, s.Step())
	assert.Equal(t, resp, s.Response())
	require.NotNil(t, s.Request())
	assert.Equal(t, req.Title, s.Request().Title)
	assert.Empty(t, s.FieldErrors())
	assert.Empty(t, s.Selection().SelectedSlotID())
}

func TestSession_SubmitRejectsConcurrentRequests(t *testing.T) {
	engine := newStubEngine(cannedResponse(t), nil)
	engine.block = true
	s := newTestSession(engine, NewMockAcceptor(), Callbacks{})

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), validRequest())
		done <- err
	}()
	<-engine.started

	_, err := s.Submit(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrSuggestInFlight)

	close(engine.release)
	require.NoError(t, <-done)
	assert.Equal(t, StepSuggestions, s.Step())
	assert.Equal(t, 1, engine.Calls())
}

func TestSession_ServerFieldErrorsMerge(t *testing.T) {
	engine := newStubEngine(nil, SimulatedValidationError("deadline", "the backend wants more lead time"))
	s := newTestSession(engine, NewMockAcceptor(), Callbacks{})

	_, err := s.Submit(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, StepInput, s.Step())
	assert.Equal(t, "the backend wants more lead time", s.FieldErrors()["deadline"])
}

func TestSession_ClearFieldErrorIsPerField(t *testing.T) {
	engine := newStubEngine(cannedResponse(t), nil)
	s := newTestSession(engine, NewMockAcceptor(), Callbacks{})

	req := validRequest()
	req.Title = ""
	req.DurationMinutes = 7
	_, err := s.Submit(context.Background(), req)
	require.Error(t, err)
	require.Len(t, s.FieldErrors(), 2)

	s.ClearFieldError("title")
	fe := s.FieldErrors()
	assert.NotContains(t, fe, "title")
	assert.Contains(t, fe, "duration_minutes")
}

func TestSession_CloseDropsInFlightResult(t *testing.T) {
	engine := newStubEngine(cannedResponse(t), nil)
	engine.block = true
	var closed bool
	s := newTestSession(engine, NewMockAcceptor(), Callbacks{OnClose: func() { closed = true }})

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), validRequest())
		done <- err
	}()
	<-engine.started

	s.Close()
	close(engine.release)

	assert.ErrorIs(t, <-done, ErrStaleResponse)
	assert.True(t, s.Closed())
	assert.True(t, closed)
	assert.Nil(t, s.Response())
}

func TestSession_BackSupersedesInFlightRequest(t *testing.T) {
	fast := newStubEngine(cannedResponse(t), nil)
	s := newTestSession(fast, NewMockAcceptor(), Callbacks{})
	_, err := s.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	require.Equal(t, StepSuggestions, s.Step())
	<-fast.started // drain the first call's signal

	// Start a second request against the same engine, now blocking, and
	// supersede it with Back before releasing it.
	fast.block = true
	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), validRequest())
		done <- err
	}()
	<-fast.started

	s.Back()
	assert.Equal(t, StepInput, s.Step())
	assert.Nil(t, s.Response())

	close(fast.release)
	assert.ErrorIs(t, <-done, ErrStaleResponse)

	// The dropped result must not resurrect the suggestions step.
	assert.Equal(t, StepInput, s.Step())
	assert.Nil(t, s.Response())
}

func TestSession_AcceptRequiresSelection(t *testing.T) {
	engine := newStubEngine(cannedResponse(t), nil)
	s := newTestSession(engine, NewMockAcceptor(), Callbacks{})

	// On the input step there is nothing to accept.
	_, err := s.Accept(context.Background())
	assert.ErrorIs(t, err, ErrNoSlotSelected)

	_, err = s.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	_, err = s.Accept(context.Background())
	assert.ErrorIs(t, err, ErrNoSlotSelected)
}

func TestSession_AcceptRejectsUnknownSlot(t *testing.T) {
	engine := newStubEngine(cannedResponse(t), nil)
	s := newTestSession(engine, NewMockAcceptor(), Callbacks{})

	_, err := s.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	s.Selection().Choose("not-a-slot")
	_, err = s.Accept(context.Background())
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestSession_AcceptFiresOnSuccess(t *testing.T) {
	engine := newStubEngine(cannedResponse(t), nil)
	var gotEntryID string
	s := newTestSession(engine, NewMockAcceptor(), Callbacks{
		OnSuccess: func(id string) { gotEntryID = id },
	})

	_, err := s.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	s.Selection().Choose("slot-a")
	entryID, err := s.Accept(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, entryID)
	assert.Equal(t, entryID, gotEntryID)
	assert.Equal(t, AcceptSucceeded, s.AcceptFlow().State())
}

func TestSession_AcceptFailureKeepsSuggestions(t *testing.T) {
	engine := newStubEngine(cannedResponse(t), nil)
	acceptor := NewMockAcceptor()
	acceptor.FailWith = SimulatedConflict()
	s := newTestSession(engine, acceptor, Callbacks{})

	_, err := s.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	s.Selection().Choose("slot-b")
	_, err = s.Accept(context.Background())
	require.Error(t, err)

	assert.Equal(t, StepSuggestions, s.Step())
	assert.Equal(t, AcceptFailed, s.AcceptFlow().State())
	assert.True(t, s.AcceptFlow().NeedsResuggest())
}

func TestSession_BackResetsSelectionAndAccept(t *testing.T) {
	engine := newStubEngine(cannedResponse(t), nil)
	acceptor := NewMockAcceptor()
	acceptor.FailWith = SimulatedNetworkError()
	s := newTestSession(engine, acceptor, Callbacks{})
	s.AcceptFlow().Sleep = func(ctx context.Context, d time.Duration) error { return nil }

	_, err := s.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	s.Selection().Choose("slot-a")

	s.Back()
	assert.Equal(t, StepInput, s.Step())
	assert.Nil(t, s.Response())
	assert.Empty(t, s.Selection().SelectedSlotID())
	assert.Equal(t, AcceptIdle, s.AcceptFlow().State())
}

func TestSession_BackFromInputIsNoOp(t *testing.T) {
	s := newTestSession(newStubEngine(nil, nil), NewMockAcceptor(), Callbacks{})
	s.Back()
	assert.Equal(t, StepInput, s.Step())
	assert.False(t, s.Closed())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	var closes int
	s := newTestSession(newStubEngine(nil, nil), NewMockAcceptor(), Callbacks{
		OnClose: func() { closes++ },
	})

	s.Close()
	s.Close()
	assert.Equal(t, 1, closes)
	assert.True(t, s.Closed())
}

func TestSession_OperationsAfterClose(t *testing.T) {
	s := newTestSession(newStubEngine(cannedResponse(t), nil), NewMockAcceptor(), Callbacks{})
	s.Close()

	_, err := s.Submit(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = s.Accept(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_FreshSubmitResetsPreviousState(t *testing.T) {
	engine := newStubEngine(cannedResponse(t), nil)
	s := newTestSession(engine, NewMockAcceptor(), Callbacks{})

	_, err := s.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	s.Selection().Choose("slot-a")
	s.Selection().SetSort(SortConfidenceDesc)

	// Re-submitting replaces the slot list and wipes selection state.
	_, err = s.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Empty(t, s.Selection().SelectedSlotID())
	assert.Equal(t, SortServiceOrder, s.Selection().Sort())
	assert.Equal(t, AcceptIdle, s.AcceptFlow().State())
}
