package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/danchu1411/taskie-cli/internal/api"
	"github.com/danchu1411/taskie-cli/internal/calendar"
	"github.com/danchu1411/taskie-cli/internal/notify"
	"github.com/danchu1411/taskie-cli/internal/store"
	"github.com/danchu1411/taskie-cli/internal/suggest"
)

type viewState int

const (
	formView viewState = iota
	loadingView
	suggestionsView
	acceptingView
	failedView
	doneView
)

// Result is what the wizard hands back to the command that launched it.
type Result struct {
	Canceled        bool
	ScheduleEntryID string
}

type suggestMsg struct {
	resp *suggest.SuggestionResponse
	err  error
}

type acceptMsg struct {
	entryID string
	err     error
}

// Wizard is the two-step suggestions flow: input form, then slot
// selection and accept. All suggestion and accept semantics live in the
// session; the wizard only translates key presses and renders state.
type Wizard struct {
	state       viewState
	session     *suggest.Session
	form        formModel
	suggestions suggestionsModel
	spinner     spinner.Model
	busy        []calendar.BusyWindow
	db          *store.DB
	engineName  string
	notifyUser  bool
	logger      *slog.Logger

	pendingSlot *suggest.SuggestedSlot
	formError   string
	acceptError error
	result      *Result
}

func NewWizard(
	session *suggest.Session,
	busy []calendar.BusyWindow,
	db *store.DB,
	engineName string,
	notifyUser bool,
	prefillTitle string,
	prefillDuration int,
	logger *slog.Logger,
) *Wizard {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := spinner.New()
	s.Spinner = spinner.Dot

	w := &Wizard{
		state:      formView,
		session:    session,
		spinner:    s,
		busy:       busy,
		db:         db,
		engineName: engineName,
		notifyUser: notifyUser,
		logger:     logger,
	}
	w.form = newFormModel(prefillTitle, prefillDuration, session.ClearFieldError)
	return w
}

func (w *Wizard) Init() tea.Cmd {
	return tea.Batch(w.form.title.Focus(), w.spinner.Tick)
}

func (w *Wizard) GetResult() *Result {
	return w.result
}

func (w *Wizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return w.cancel()
		}
	case suggestMsg:
		return w.handleSuggest(msg)
	case acceptMsg:
		return w.handleAccept(msg)
	}

	switch w.state {
	case formView:
		return w.updateForm(msg)
	case loadingView, acceptingView:
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd
	case suggestionsView:
		return w.updateSuggestions(msg)
	case failedView:
		return w.updateFailed(msg)
	case doneView:
		if _, ok := msg.(tea.KeyMsg); ok {
			return w, tea.Quit
		}
	}
	return w, nil
}

func (w *Wizard) cancel() (tea.Model, tea.Cmd) {
	w.session.Close()
	w.result = &Result{Canceled: true}
	return w, tea.Quit
}

func (w *Wizard) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return w.cancel()
		case "enter":
			// The description textarea keeps enter for newlines.
			if w.form.focus != fieldDescription {
				return w.submitForm()
			}
		}
	}

	var cmd tea.Cmd
	w.form, cmd = w.form.Update(msg)
	return w, cmd
}

func (w *Wizard) submitForm() (tea.Model, tea.Cmd) {
	w.formError = ""
	req, parseErrs := w.form.Request(time.Now())
	if len(parseErrs) > 0 {
		w.form.setErrors(parseErrs)
		return w, nil
	}

	w.state = loadingView
	return w, tea.Batch(w.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		resp, err := w.session.Submit(ctx, req)
		return suggestMsg{resp: resp, err: err}
	})
}

func (w *Wizard) handleSuggest(msg suggestMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if errors.Is(msg.err, suggest.ErrStaleResponse) || errors.Is(msg.err, suggest.ErrSessionClosed) {
			return w, nil
		}
		// A failed call keeps the user on the input step.
		w.state = formView
		w.form.setErrors(w.session.FieldErrors())
		var valErr *api.ValidationError
		if !errors.As(msg.err, &valErr) {
			w.formError = userMessage(msg.err)
		}
		return w, nil
	}

	w.state = suggestionsView
	w.suggestions = newSuggestionsModel(w.session, w.busy)
	return w, nil
}

func (w *Wizard) updateSuggestions(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return w, nil
	}

	switch keyMsg.String() {
	case "up", "k":
		w.suggestions.moveCursor(-1)
	case "down", "j":
		w.suggestions.moveCursor(1)
	case "enter":
		w.suggestions.choose()
	case "c":
		w.suggestions.toggleCompare()
	case "s":
		w.suggestions.cycleSort()
	case "f":
		w.suggestions.cycleTierFilter()
	case "a":
		return w.confirmAccept()
	case "b":
		return w.backToForm()
	case "q", "esc":
		return w.cancel()
	}
	return w, nil
}

func (w *Wizard) backToForm() (tea.Model, tea.Cmd) {
	prefillTitle := ""
	prefillDuration := 0
	if req := w.session.Request(); req != nil {
		prefillTitle = req.Title
		prefillDuration = req.DurationMinutes
	}
	w.session.Back()
	w.state = formView
	w.form = newFormModel(prefillTitle, prefillDuration, w.session.ClearFieldError)
	return w, w.form.title.Focus()
}

func (w *Wizard) confirmAccept() (tea.Model, tea.Cmd) {
	resp := w.session.Response()
	slotID := w.session.Selection().SelectedSlotID()
	if resp == nil || slotID == "" {
		w.suggestions.statusMsg = "select a slot first"
		return w, nil
	}
	slot, ok := resp.SlotByID(slotID)
	if !ok {
		return w, nil
	}
	w.pendingSlot = &slot

	w.state = acceptingView
	return w, tea.Batch(w.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()
		entryID, err := w.session.Accept(ctx)
		return acceptMsg{entryID: entryID, err: err}
	})
}

func (w *Wizard) handleAccept(msg acceptMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		// A duplicate confirm while one is outstanding changes nothing.
		if errors.Is(msg.err, suggest.ErrAcceptInFlight) {
			return w, nil
		}
		w.state = failedView
		w.acceptError = msg.err
		return w, nil
	}

	w.recordAccepted(msg.entryID)
	w.result = &Result{ScheduleEntryID: msg.entryID}
	w.state = doneView
	return w, nil
}

// recordAccepted writes the accepted slot to the local history and notifies
// the user. Both are best effort; the entry already exists server-side.
func (w *Wizard) recordAccepted(entryID string) {
	req := w.session.Request()
	slot := w.pendingSlot
	if req == nil || slot == nil {
		return
	}

	if w.db != nil {
		_, err := w.db.InsertAccepted(&store.AcceptedEntry{
			EntryID:    entryID,
			TaskID:     req.TargetTaskID,
			Title:      req.Title,
			StartTime:  slot.StartAt,
			Minutes:    slot.PlannedMinutes,
			Confidence: slot.Confidence,
			Tier:       slot.Tier().String(),
			Engine:     w.engineName,
			Reason:     slot.Reason,
		})
		if err != nil {
			w.logger.Warn("recording accepted entry locally", "entry_id", entryID, "error", err)
		}
	}
	if w.notifyUser {
		if err := notify.Send("taskie", req.Title+" scheduled for "+slot.StartAt.Local().Format("Mon Jan 2 15:04")); err != nil {
			w.logger.Debug("desktop notification failed", "error", err)
		}
	}
}

func (w *Wizard) updateFailed(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return w, nil
	}

	flow := w.session.AcceptFlow()
	switch keyMsg.String() {
	case "r":
		if !flow.Retryable() {
			return w, nil
		}
		flow.Reset()
		w.state = suggestionsView
		return w.confirmAccept()
	case "b":
		if flow.NeedsResuggest() {
			return w.backToForm()
		}
		w.state = suggestionsView
		return w, nil
	case "q", "esc":
		return w.cancel()
	}
	return w, nil
}

func (w *Wizard) View() string {
	switch w.state {
	case formView:
		view := w.form.View()
		if w.formError != "" {
			view += "\n" + errorStyle.Render("Error: ") + w.formError
		}
		return view
	case loadingView:
		return w.spinner.View() + " Finding good time slots..."
	case suggestionsView:
		return w.suggestions.View()
	case acceptingView:
		return w.spinner.View() + " Booking the slot..."
	case failedView:
		return w.failedViewRender()
	case doneView:
		return boxStyle.Render(
			successStyle.Render("Slot accepted!") + "\n" +
				"Schedule entry " + w.result.ScheduleEntryID + " was created.\n" +
				helpStyle.Render("Press any key to exit"),
		)
	}
	return ""
}

func (w *Wizard) failedViewRender() string {
	flow := w.session.AcceptFlow()
	body := errorStyle.Render("Could not accept the slot") + "\n" +
		userMessage(w.acceptError) + "\n\n"

	switch {
	case flow.NeedsResuggest():
		body += helpStyle.Render("[b]ack to request fresh suggestions • [q]uit")
	case flow.Retryable():
		body += helpStyle.Render("[r]etry • [b]ack to suggestions • [q]uit")
	default:
		body += helpStyle.Render("[b]ack to suggestions • [q]uit")
	}
	return boxStyle.Render(body)
}

// userMessage maps the error taxonomy onto actionable wording.
func userMessage(err error) string {
	var (
		valErr  *api.ValidationError
		rlErr   *api.RateLimitError
		netErr  *api.NetworkError
		authErr *api.AuthError
		cfErr   *api.ConflictError
	)
	switch {
	case errors.As(err, &valErr):
		return valErr.Error()
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return "The service is busy. Try again in " + rlErr.RetryAfter.String() + "."
		}
		return "The service is busy. Try again in a moment."
	case errors.As(err, &netErr):
		return "Could not reach the Taskie service. Check your connection and retry."
	case errors.As(err, &authErr):
		return "Your session has expired. Run 'taskie login' to sign in again."
	case errors.As(err, &cfErr):
		return "That slot is no longer available; someone or something else claimed the time."
	case err == nil:
		return ""
	default:
		return "Something went wrong. If this keeps happening, contact support. (" + err.Error() + ")"
	}
}
