package calendar

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danchu1411/taskie-cli/internal/suggest"
)

const testICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt-1\r\n" +
	"DTSTAMP:20260310T080000Z\r\n" +
	"DTSTART:20260311T100000Z\r\n" +
	"DTEND:20260311T110000Z\r\n" +
	"SUMMARY:Team standup\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt-2\r\n" +
	"DTSTAMP:20260310T080000Z\r\n" +
	"DTSTART:20260311T140000Z\r\n" +
	"DTEND:20260311T153000Z\r\n" +
	"SUMMARY:Design review\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt-3\r\n" +
	"DTSTAMP:20260310T080000Z\r\n" +
	"DTSTART:20260320T100000Z\r\n" +
	"DTEND:20260320T110000Z\r\n" +
	"SUMMARY:Far away\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func writeICS(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calendar.ics")
	require.NoError(t, os.WriteFile(path, []byte(testICS), 0644))
	return path
}

func TestFetchBusy_FromFile(t *testing.T) {
	from := time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	busy, err := FetchBusy(context.Background(), writeICS(t), from, to)
	require.NoError(t, err)
	require.Len(t, busy, 2, "events outside the range are dropped")

	assert.Equal(t, "Team standup", busy[0].Summary)
	assert.Equal(t, "Design review", busy[1].Summary)
	assert.True(t, busy[0].Start.Before(busy[1].Start), "sorted by start")
}

func TestFetchBusy_MissingFile(t *testing.T) {
	_, err := FetchBusy(context.Background(), "/nonexistent/calendar.ics", time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening calendar file")
}

func TestConflicts(t *testing.T) {
	busy := []BusyWindow{
		{Summary: "Standup", Start: mustTime(t, "2026-03-11T10:00:00Z"), End: mustTime(t, "2026-03-11T11:00:00Z")},
		{Summary: "Review", Start: mustTime(t, "2026-03-11T14:00:00Z"), End: mustTime(t, "2026-03-11T15:30:00Z")},
	}

	overlapping := suggest.SuggestedSlot{
		StartAt:        mustTime(t, "2026-03-11T10:30:00Z"),
		PlannedMinutes: 60,
	}
	hits := Conflicts(overlapping, busy)
	require.Len(t, hits, 1)
	assert.Equal(t, "Standup", hits[0].Summary)

	clear := suggest.SuggestedSlot{
		StartAt:        mustTime(t, "2026-03-11T11:00:00Z"),
		PlannedMinutes: 60,
	}
	assert.Empty(t, Conflicts(clear, busy), "touching windows do not overlap")
}

func TestFreeWindow(t *testing.T) {
	from := mustTime(t, "2026-03-11T09:00:00Z")
	to := mustTime(t, "2026-03-11T17:00:00Z")
	busy := []BusyWindow{
		{Start: mustTime(t, "2026-03-11T09:00:00Z"), End: mustTime(t, "2026-03-11T12:00:00Z")},
		{Start: mustTime(t, "2026-03-11T12:30:00Z"), End: mustTime(t, "2026-03-11T16:00:00Z")},
	}

	// The half-hour gap is too small for an hour-long block; the first
	// fitting window is after the last event.
	w, ok := FreeWindow(busy, from, to, time.Hour)
	require.True(t, ok)
	assert.True(t, w.Start.Equal(mustTime(t, "2026-03-11T16:00:00Z")))
	assert.True(t, w.End.Equal(to))

	// A 30-minute block fits in the midday gap.
	w, ok = FreeWindow(busy, from, to, 30*time.Minute)
	require.True(t, ok)
	assert.True(t, w.Start.Equal(mustTime(t, "2026-03-11T12:00:00Z")))
	assert.True(t, w.End.Equal(mustTime(t, "2026-03-11T12:30:00Z")))
}

func TestFreeWindow_NoGap(t *testing.T) {
	from := mustTime(t, "2026-03-11T09:00:00Z")
	to := mustTime(t, "2026-03-11T10:00:00Z")
	busy := []BusyWindow{
		{Start: from, End: to},
	}
	_, ok := FreeWindow(busy, from, to, 30*time.Minute)
	assert.False(t, ok)
}

func TestFreeWindow_EmptyCalendar(t *testing.T) {
	from := mustTime(t, "2026-03-11T09:00:00Z")
	to := mustTime(t, "2026-03-11T17:00:00Z")
	w, ok := FreeWindow(nil, from, to, time.Hour)
	require.True(t, ok)
	assert.True(t, w.Start.Equal(from))
	assert.True(t, w.End.Equal(to))
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}
