package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"

	"github.com/danchu1411/taskie-cli/internal/suggest"
)

// BusyWindow is an existing commitment parsed from the user's calendar.
type BusyWindow struct {
	Summary string
	Start   time.Time
	End     time.Time
}

// FetchBusy retrieves and parses iCalendar events from a URL or file path,
// returning the windows that overlap the given range, sorted by start.
func FetchBusy(ctx context.Context, source string, from, to time.Time) ([]BusyWindow, error) {
	var r io.ReadCloser

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching calendar: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("calendar fetch returned status %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("opening calendar file: %w", err)
		}
		r = f
	}
	defer r.Close()

	dec := ical.NewDecoder(r)
	var busy []BusyWindow

	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing calendar: %w", err)
		}

		for _, component := range cal.Children {
			if component.Name != ical.CompEvent {
				continue
			}
			event := ical.Event{Component: component}

			start, err := event.DateTimeStart(nil)
			if err != nil {
				continue // skip malformed events
			}
			end, err := event.DateTimeEnd(nil)
			if err != nil {
				continue
			}

			if start.Before(to) && end.After(from) {
				summary, _ := event.Props.Text(ical.PropSummary)
				busy = append(busy, BusyWindow{
					Summary: summary,
					Start:   start,
					End:     end,
				})
			}
		}
	}

	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy, nil
}

// Conflicts returns the busy windows that overlap the given slot, so the
// wizard can flag suggestions that collide with existing commitments.
func Conflicts(slot suggest.SuggestedSlot, busy []BusyWindow) []BusyWindow {
	var out []BusyWindow
	slotEnd := slot.EndAt()
	for _, w := range busy {
		if w.Start.Before(slotEnd) && w.End.After(slot.StartAt) {
			out = append(out, w)
		}
	}
	return out
}

// FreeWindow finds the first gap of at least the given length between busy
// windows inside [from, to]. It can seed a request's preferred window.
func FreeWindow(busy []BusyWindow, from, to time.Time, length time.Duration) (*suggest.TimeWindow, bool) {
	cursor := from
	for _, w := range busy {
		if w.End.Before(cursor) {
			continue
		}
		if w.Start.Sub(cursor) >= length {
			return &suggest.TimeWindow{Start: cursor, End: w.Start}, true
		}
		if w.End.After(cursor) {
			cursor = w.End
		}
	}
	if to.Sub(cursor) >= length {
		return &suggest.TimeWindow{Start: cursor, End: to}, true
	}
	return nil, false
}
