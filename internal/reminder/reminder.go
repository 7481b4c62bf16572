package reminder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/danchu1411/taskie-cli/internal/config"
	"github.com/danchu1411/taskie-cli/internal/notify"
	"github.com/danchu1411/taskie-cli/internal/store"
)

// Reminder periodically checks the local history of accepted schedule
// entries and sends a desktop notification shortly before each one starts.
type Reminder struct {
	cfg    *config.Config
	db     *store.DB
	logger *slog.Logger
}

func New(cfg *config.Config, db *store.DB, logger *slog.Logger) *Reminder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reminder{cfg: cfg, db: db, logger: logger}
}

func (r *Reminder) Run(ctx context.Context) error {
	if err := writePID(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePID()

	interval := time.Duration(r.cfg.Schedule.ReminderIntervalMin) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	lead := time.Duration(r.cfg.Schedule.ReminderLeadMin) * time.Minute
	if lead <= 0 {
		lead = 10 * time.Minute
	}

	fmt.Printf("Reminder loop started (interval: %s, lead: %s)\n", interval, lead)

	for {
		nextTick := nextAlignedTick(time.Now(), interval)

		select {
		case <-ctx.Done():
			fmt.Println("\nReminder loop stopped.")
			return nil
		case <-time.After(time.Until(nextTick)):
		}

		if !r.isWorkTime(time.Now()) {
			continue
		}

		r.remind(time.Now(), lead)
	}
}

func (r *Reminder) remind(now time.Time, lead time.Duration) {
	entries, err := r.db.ListUpcomingUnnotified(now, lead)
	if err != nil {
		r.logger.Error("listing upcoming entries", "error", err)
		return
	}

	for _, e := range entries {
		if r.cfg.Notifications.Enabled {
			msg := fmt.Sprintf("%s starts at %s (%d min)",
				e.Title, e.StartTime.Local().Format("15:04"), e.Minutes)
			if err := notify.Send("taskie", msg); err != nil {
				r.logger.Error("sending reminder", "entry", e.EntryID, "error", err)
				continue
			}
		}
		if err := r.db.MarkNotified(e.ID, now); err != nil {
			r.logger.Error("marking entry notified", "entry", e.EntryID, "error", err)
		}
	}
}

func nextAlignedTick(now time.Time, interval time.Duration) time.Time {
	mins := int(interval.Minutes())
	if mins <= 0 {
		mins = 15
	}

	currentMinute := now.Minute()
	nextMinute := ((currentMinute / mins) + 1) * mins

	next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	return next.Add(time.Duration(nextMinute) * time.Minute)
}

func (r *Reminder) isWorkTime(t time.Time) bool {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday = 7
	}

	isWorkDay := false
	for _, d := range r.cfg.Schedule.WorkDays {
		if d == weekday {
			isWorkDay = true
			break
		}
	}
	if !isWorkDay {
		return false
	}

	startH, startM := parseClock(r.cfg.Schedule.WorkStart)
	endH, endM := parseClock(r.cfg.Schedule.WorkEnd)

	nowMins := t.Hour()*60 + t.Minute()
	return nowMins >= startH*60+startM && nowMins <= endH*60+endM
}

func parseClock(s string) (int, int) {
	if len(s) == 5 && s[2] == ':' {
		h, _ := strconv.Atoi(s[:2])
		m, _ := strconv.Atoi(s[3:])
		return h, m
	}
	return 9, 0
}
