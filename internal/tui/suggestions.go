package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/danchu1411/taskie-cli/internal/calendar"
	"github.com/danchu1411/taskie-cli/internal/suggest"
)

// tierFilters cycles through confidence filters: everything, High only,
// Medium and up.
var tierFilters = []struct {
	name   string
	filter *suggest.ConfidenceRange
}{
	{"all", nil},
	{"high only", &suggest.ConfidenceRange{Min: 0.67, Max: 1}},
	{"medium+", &suggest.ConfidenceRange{Min: 0.34, Max: 1}},
}

var sortCycle = []suggest.SlotSortOption{
	suggest.SortServiceOrder,
	suggest.SortConfidenceDesc,
	suggest.SortStartAsc,
	suggest.SortDurationAsc,
}

// suggestionsModel renders the suggestions step: the slot list after the
// user's filter and sort, the cursor, the comparison panel, and the
// fallback message when the engine found nothing.
type suggestionsModel struct {
	session   *suggest.Session
	busy      []calendar.BusyWindow
	cursor    int
	tierIdx   int
	sortIdx   int
	statusMsg string
}

func newSuggestionsModel(session *suggest.Session, busy []calendar.BusyWindow) suggestionsModel {
	return suggestionsModel{session: session, busy: busy}
}

// visibleSlots applies the current filter and sort to the session's slots.
// The underlying response list is never mutated.
func (m suggestionsModel) visibleSlots() []suggest.SuggestedSlot {
	resp := m.session.Response()
	if resp == nil {
		return nil
	}
	sel := m.session.Selection()
	slots := suggest.FilterSlots(resp.Slots, sel.Filter())
	return suggest.SortSlots(slots, sel.Sort())
}

func (m *suggestionsModel) cycleTierFilter() {
	m.tierIdx = (m.tierIdx + 1) % len(tierFilters)
	sel := m.session.Selection()
	f := sel.Filter()
	f.Confidence = tierFilters[m.tierIdx].filter
	sel.SetFilter(f)
	m.clampCursor()
	m.statusMsg = "filter: " + tierFilters[m.tierIdx].name
}

func (m *suggestionsModel) cycleSort() {
	m.sortIdx = (m.sortIdx + 1) % len(sortCycle)
	m.session.Selection().SetSort(sortCycle[m.sortIdx])
	m.statusMsg = "sort: " + sortCycle[m.sortIdx].String()
}

func (m *suggestionsModel) clampCursor() {
	if n := len(m.visibleSlots()); m.cursor >= n && n > 0 {
		m.cursor = n - 1
	} else if n == 0 {
		m.cursor = 0
	}
}

func (m *suggestionsModel) moveCursor(delta int) {
	slots := m.visibleSlots()
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(slots) {
		m.cursor = len(slots) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// choose records the slot under the cursor: primary selection in select
// mode, set toggle in compare mode.
func (m *suggestionsModel) choose() {
	slots := m.visibleSlots()
	if m.cursor < len(slots) {
		m.session.Selection().Choose(slots[m.cursor].ID)
	}
}

func (m *suggestionsModel) toggleCompare() {
	sel := m.session.Selection()
	if sel.Mode() == suggest.ModeCompare {
		sel.ExitCompareMode()
		m.statusMsg = "compare off"
	} else {
		sel.EnterCompareMode()
		m.statusMsg = "compare on: mark slots with enter"
	}
}

func (m suggestionsModel) View() string {
	resp := m.session.Response()
	if resp == nil {
		return ""
	}

	if resp.Empty() {
		msg := "No suitable slots were found."
		if reason := resp.FallbackAutoMode.Reason; reason != "" {
			msg += " " + reason + "."
		}
		return boxStyle.Render(
			warningStyle.Render("Nothing to suggest") + "\n\n" +
				msg + "\n" +
				"You can let Taskie auto-schedule this task instead.\n" +
				helpStyle.Render("[b]ack to edit • [q]uit"),
		)
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Suggested Slots"))
	sb.WriteString("\n")

	sel := m.session.Selection()
	slots := m.visibleSlots()
	if len(slots) == 0 {
		sb.WriteString(dimStyle.Render("No slots match the current filter."))
		sb.WriteString("\n")
	}

	compareIDs := map[string]bool{}
	for _, id := range sel.ComparisonIDs() {
		compareIDs[id] = true
	}

	for i, slot := range slots {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		marker := " "
		switch {
		case sel.Mode() == suggest.ModeCompare && compareIDs[slot.ID]:
			marker = "◆"
		case slot.ID == sel.SelectedSlotID():
			marker = "●"
		}

		line := fmt.Sprintf("%s%s %s  %3dmin  %s  %s",
			prefix,
			marker,
			slot.StartAt.Local().Format("Mon Jan 2 15:04"),
			slot.PlannedMinutes,
			renderTier(slot),
			slot.Reason,
		)
		if slot.Metadata != nil && slot.Metadata.AdjustedDuration > 0 {
			line += " " + dimStyle.Render("(shortened to fit your window)")
		}
		if conflicts := calendar.Conflicts(slot, m.busy); len(conflicts) > 0 {
			line += " " + warningStyle.Render(fmt.Sprintf("⚠ overlaps %q", conflicts[0].Summary))
		}

		switch {
		case i == m.cursor:
			line = highlightStyle.Render(line)
		case slot.ID == sel.SelectedSlotID():
			line = selectedStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if sel.Mode() == suggest.ModeCompare {
		sb.WriteString(m.comparisonPanel(resp))
	}

	if m.statusMsg != "" {
		sb.WriteString("\n")
		sb.WriteString(dimStyle.Render(m.statusMsg))
	}

	sb.WriteString("\n")
	if sel.Mode() == suggest.ModeCompare {
		sb.WriteString(helpStyle.Render("enter: mark • [c]ompare off • [b]ack • [q]uit"))
	} else {
		sb.WriteString(helpStyle.Render("enter: select • [a]ccept • [c]ompare • [s]ort • [f]ilter • [b]ack • [q]uit"))
	}
	return boxStyle.Render(sb.String())
}

func (m suggestionsModel) comparisonPanel(resp *suggest.SuggestionResponse) string {
	ids := m.session.Selection().ComparisonIDs()
	if len(ids) < 2 {
		return "\n" + dimStyle.Render("Mark at least two slots to compare them.")
	}

	var marked []suggest.SuggestedSlot
	for _, id := range ids {
		if slot, ok := resp.SlotByID(id); ok {
			marked = append(marked, slot)
		}
	}
	if len(marked) < 2 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(subtitleStyle.Render("Comparison"))
	sb.WriteString("\n")

	cmp := suggest.CompareSlots(marked[0], marked[1])
	sb.WriteString(fmt.Sprintf("  Time apart: %s\n", formatDelta(cmp.TimeDelta)))
	sb.WriteString(fmt.Sprintf("  Confidence delta: %+.0f%%\n", cmp.ConfidenceDelta*100))
	sb.WriteString("  " + successStyle.Render("→ "+cmp.Recommendation))

	if len(marked) > 2 {
		if best, ok := suggest.BestSlot(marked); ok {
			sb.WriteString(fmt.Sprintf("\n  Best of %d marked: %s",
				len(marked), best.StartAt.Local().Format("Mon Jan 2 15:04")))
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderTier(slot suggest.SuggestedSlot) string {
	label := fmt.Sprintf("%s %.0f%%", slot.Tier(), slot.Confidence*100)
	switch slot.Tier() {
	case suggest.TierHigh:
		return tierHighStyle.Render(label)
	case suggest.TierMedium:
		return tierMediumStyle.Render(label)
	default:
		return tierLowStyle.Render(label)
	}
}

func formatDelta(d time.Duration) string {
	if d >= 24*time.Hour {
		return fmt.Sprintf("%dd %s", int(d.Hours())/24, d%(24*time.Hour))
	}
	return d.String()
}
