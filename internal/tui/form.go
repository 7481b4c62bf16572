package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tj/go-naturaldate"

	"github.com/danchu1411/taskie-cli/internal/suggest"
)

const (
	fieldTitle = iota
	fieldDescription
	fieldDuration
	fieldDeadline
	fieldCount
)

// fieldNames map form positions onto the error keys the validation layer
// and the backend use.
var fieldNames = [fieldCount]string{
	"title",
	"description",
	"duration_minutes",
	"deadline",
}

// formModel collects the manual suggestion request: title, optional
// description, duration in minutes, and a deadline in natural language
// ("tomorrow 5pm") or RFC3339.
type formModel struct {
	title       textinput.Model
	description textarea.Model
	duration    textinput.Model
	deadline    textinput.Model
	focus       int

	// onEdit fires with the field name whenever its content changes, so the
	// session can clear that field's error without touching the others.
	onEdit func(field string)

	errors map[string]string
}

func newFormModel(prefillTitle string, prefillDuration int, onEdit func(string)) formModel {
	title := textinput.New()
	title.Placeholder = "What do you need to do?"
	title.CharLimit = suggest.MaxTitleLen
	title.Width = 56
	title.Focus()
	if prefillTitle != "" {
		title.SetValue(prefillTitle)
	}

	description := textarea.New()
	description.Placeholder = "Optional details..."
	description.CharLimit = suggest.MaxDescriptionLen
	description.SetWidth(56)
	description.SetHeight(2)
	description.ShowLineNumbers = false

	duration := textinput.New()
	duration.Placeholder = "60"
	duration.CharLimit = 3
	duration.Width = 8
	if prefillDuration > 0 {
		duration.SetValue(strconv.Itoa(prefillDuration))
	}

	deadline := textinput.New()
	deadline.Placeholder = "tomorrow 5pm"
	deadline.CharLimit = 40
	deadline.Width = 28

	return formModel{
		title:       title,
		description: description,
		duration:    duration,
		deadline:    deadline,
		onEdit:      onEdit,
		errors:      map[string]string{},
	}
}

func (m formModel) Update(msg tea.Msg) (formModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "tab", "down":
			if m.focus != fieldDescription || keyMsg.String() == "tab" {
				return m.setFocus((m.focus + 1) % fieldCount)
			}
		case "shift+tab", "up":
			if m.focus != fieldDescription || keyMsg.String() == "shift+tab" {
				return m.setFocus((m.focus + fieldCount - 1) % fieldCount)
			}
		}
	}

	before := m.fieldValue(m.focus)
	var cmd tea.Cmd
	switch m.focus {
	case fieldTitle:
		m.title, cmd = m.title.Update(msg)
	case fieldDescription:
		m.description, cmd = m.description.Update(msg)
	case fieldDuration:
		m.duration, cmd = m.duration.Update(msg)
	case fieldDeadline:
		m.deadline, cmd = m.deadline.Update(msg)
	}
	if m.fieldValue(m.focus) != before {
		name := fieldNames[m.focus]
		delete(m.errors, name)
		if m.onEdit != nil {
			m.onEdit(name)
		}
	}
	return m, cmd
}

func (m formModel) setFocus(focus int) (formModel, tea.Cmd) {
	m.title.Blur()
	m.description.Blur()
	m.duration.Blur()
	m.deadline.Blur()
	m.focus = focus

	switch focus {
	case fieldTitle:
		return m, m.title.Focus()
	case fieldDescription:
		return m, m.description.Focus()
	case fieldDuration:
		return m, m.duration.Focus()
	default:
		return m, m.deadline.Focus()
	}
}

func (m formModel) fieldValue(field int) string {
	switch field {
	case fieldTitle:
		return m.title.Value()
	case fieldDescription:
		return m.description.Value()
	case fieldDuration:
		return m.duration.Value()
	default:
		return m.deadline.Value()
	}
}

// Request parses the form into a SuggestionRequest. Parse failures land in
// the returned field error map; the session's validators then run on top.
func (m formModel) Request(now time.Time) (suggest.SuggestionRequest, map[string]string) {
	errs := map[string]string{}
	req := suggest.SuggestionRequest{
		Title:       strings.TrimSpace(m.title.Value()),
		Description: strings.TrimSpace(m.description.Value()),
	}

	if v := strings.TrimSpace(m.duration.Value()); v == "" {
		errs["duration_minutes"] = "duration is required"
	} else if minutes, err := strconv.Atoi(v); err != nil {
		errs["duration_minutes"] = "duration must be a number of minutes"
	} else {
		req.DurationMinutes = minutes
	}

	if v := strings.TrimSpace(m.deadline.Value()); v == "" {
		errs["deadline"] = "deadline is required"
	} else if t, err := time.Parse(time.RFC3339, v); err == nil {
		req.Deadline = t
	} else if t, err := naturaldate.Parse(v, now, naturaldate.WithDirection(naturaldate.Future)); err == nil {
		req.Deadline = t
	} else {
		errs["deadline"] = fmt.Sprintf("could not understand %q; try 'tomorrow 5pm' or an RFC3339 timestamp", v)
	}

	return req, errs
}

func (m *formModel) setErrors(errs map[string]string) {
	m.errors = errs
}

func (m formModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("taskie / AI Scheduling"))
	sb.WriteString("\n")
	sb.WriteString(subtitleStyle.Render("Describe the task and when it must be done by."))
	sb.WriteString("\n")

	sb.WriteString(m.label(fieldTitle, "Title"))
	sb.WriteString(m.title.View())
	sb.WriteString(m.fieldError("title"))
	sb.WriteString("\n")

	sb.WriteString(m.label(fieldDescription, "Description"))
	sb.WriteString(m.description.View())
	sb.WriteString(m.fieldError("description"))
	sb.WriteString("\n")

	sb.WriteString(m.label(fieldDuration, "Duration (minutes, multiple of 15)"))
	sb.WriteString(m.duration.View())
	sb.WriteString(m.fieldError("duration_minutes"))
	sb.WriteString("\n")

	sb.WriteString(m.label(fieldDeadline, "Deadline"))
	sb.WriteString(m.deadline.View())
	sb.WriteString(m.fieldError("deadline"))
	sb.WriteString("\n")

	sb.WriteString(helpStyle.Render("Tab: next field • Enter: get suggestions • Esc: cancel"))
	return boxStyle.Render(sb.String())
}

func (m formModel) label(field int, text string) string {
	if field == m.focus {
		return highlightStyle.Render(text) + "\n"
	}
	return dimStyle.Render(text) + "\n"
}

func (m formModel) fieldError(name string) string {
	if msg, ok := m.errors[name]; ok {
		return "\n" + fieldErrorStyle.Render("  ✗ "+msg)
	}
	return ""
}
