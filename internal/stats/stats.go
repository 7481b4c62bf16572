package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danchu1411/taskie-cli/internal/store"
)

// Summary aggregates the local history of accepted AI suggestions.
type Summary struct {
	TotalAccepted   int
	TotalMinutes    int
	AvgConfidence   float64
	ByTier          map[string]int
	ByEngine        map[string]int
	MinutesPerDay   map[string]int // keyed by YYYY-MM-DD of the slot start
	BusiestDay      string
	BusiestDayCount int
}

// Compute builds a summary over the given entries.
func Compute(entries []store.AcceptedEntry) Summary {
	s := Summary{
		ByTier:        map[string]int{},
		ByEngine:      map[string]int{},
		MinutesPerDay: map[string]int{},
	}

	var confidenceSum float64
	for _, e := range entries {
		s.TotalAccepted++
		s.TotalMinutes += e.Minutes
		confidenceSum += e.Confidence
		s.ByTier[e.Tier]++
		s.ByEngine[e.Engine]++
		day := e.StartTime.Local().Format("2006-01-02")
		s.MinutesPerDay[day] += e.Minutes
	}

	if s.TotalAccepted > 0 {
		s.AvgConfidence = confidenceSum / float64(s.TotalAccepted)
	}

	for day, minutes := range s.MinutesPerDay {
		if minutes > s.BusiestDayCount || (minutes == s.BusiestDayCount && day < s.BusiestDay) {
			s.BusiestDay = day
			s.BusiestDayCount = minutes
		}
	}
	return s
}

// Render formats the summary for terminal output.
func Render(s Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Accepted suggestions: %d (%s total)\n",
		s.TotalAccepted, formatMinutes(s.TotalMinutes))
	if s.TotalAccepted == 0 {
		sb.WriteString("No accepted suggestions yet. Run 'taskie suggest' to schedule something.\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "Average confidence: %.0f%%\n", s.AvgConfidence*100)

	tiers := []string{"High", "Medium", "Low"}
	var parts []string
	for _, tier := range tiers {
		if n := s.ByTier[tier]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", tier, n))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(&sb, "Confidence tiers: %s\n", strings.Join(parts, ", "))
	}

	engines := make([]string, 0, len(s.ByEngine))
	for engine := range s.ByEngine {
		engines = append(engines, engine)
	}
	sort.Strings(engines)
	parts = parts[:0]
	for _, engine := range engines {
		parts = append(parts, fmt.Sprintf("%s: %d", engine, s.ByEngine[engine]))
	}
	fmt.Fprintf(&sb, "By engine: %s\n", strings.Join(parts, ", "))

	if s.BusiestDay != "" {
		fmt.Fprintf(&sb, "Busiest day: %s (%s)\n", s.BusiestDay, formatMinutes(s.BusiestDayCount))
	}
	return sb.String()
}

func formatMinutes(minutes int) string {
	d := time.Duration(minutes) * time.Minute
	if d < time.Hour {
		return fmt.Sprintf("%dmin", minutes)
	}
	return fmt.Sprintf("%dh%02dmin", minutes/60, minutes%60)
}
