package suggest

import (
	"fmt"
	"sort"
	"time"
)

// ConfidenceRange is an inclusive [Min,Max] confidence constraint.
type ConfidenceRange struct {
	Min float64
	Max float64
}

// TimeRange is an inclusive [Start,End] start-time constraint.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// SlotFilter narrows a displayed slot list. A nil axis means no constraint
// on that axis. Filtering is purely presentational and never mutates the
// source list.
type SlotFilter struct {
	Confidence *ConfidenceRange
	Time       *TimeRange
}

// Matches reports whether the slot satisfies both filter axes.
func (f SlotFilter) Matches(slot SuggestedSlot) bool {
	if f.Confidence != nil {
		if slot.Confidence < f.Confidence.Min || slot.Confidence > f.Confidence.Max {
			return false
		}
	}
	if f.Time != nil {
		if slot.StartAt.Before(f.Time.Start) || slot.StartAt.After(f.Time.End) {
			return false
		}
	}
	return true
}

// FilterSlots returns the slots matching f, preserving the original relative
// order. The result is always a fresh slice.
func FilterSlots(slots []SuggestedSlot, f SlotFilter) []SuggestedSlot {
	out := make([]SuggestedSlot, 0, len(slots))
	for _, slot := range slots {
		if f.Matches(slot) {
			out = append(out, slot)
		}
	}
	return out
}

// SlotSortOption selects a presentation order for the slot list.
type SlotSortOption int

const (
	// SortServiceOrder keeps the engine's own ranking.
	SortServiceOrder SlotSortOption = iota
	SortConfidenceDesc
	SortStartAsc
	SortDurationAsc
)

func (o SlotSortOption) String() string {
	switch o {
	case SortServiceOrder:
		return "ranking"
	case SortConfidenceDesc:
		return "confidence"
	case SortStartAsc:
		return "start time"
	case SortDurationAsc:
		return "duration"
	default:
		return "unknown"
	}
}

// SortSlots returns a sorted copy of slots. Sorting is stable: ties keep the
// original relative order.
func SortSlots(slots []SuggestedSlot, opt SlotSortOption) []SuggestedSlot {
	out := make([]SuggestedSlot, len(slots))
	copy(out, slots)

	switch opt {
	case SortConfidenceDesc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Confidence > out[j].Confidence
		})
	case SortStartAsc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].StartAt.Before(out[j].StartAt)
		})
	case SortDurationAsc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].PlannedMinutes < out[j].PlannedMinutes
		})
	}
	return out
}

// SlotComparison holds the deltas between two candidate slots.
type SlotComparison struct {
	A               SuggestedSlot
	B               SuggestedSlot
	TimeDelta       time.Duration // absolute difference between start times
	ConfidenceDelta float64       // B.Confidence - A.Confidence
	RecommendedID   string
	Recommendation  string
}

// CompareSlots computes the pairwise deltas between two slots and recommends
// the higher-confidence one. Equal confidences tie-break on the earlier
// start.
func CompareSlots(a, b SuggestedSlot) SlotComparison {
	delta := b.StartAt.Sub(a.StartAt)
	if delta < 0 {
		delta = -delta
	}

	cmp := SlotComparison{
		A:               a,
		B:               b,
		TimeDelta:       delta,
		ConfidenceDelta: b.Confidence - a.Confidence,
	}

	switch {
	case a.Confidence > b.Confidence:
		cmp.RecommendedID = a.ID
		cmp.Recommendation = fmt.Sprintf("%s has higher confidence (%.0f%% vs %.0f%%)",
			a.StartAt.Format("Mon 15:04"), a.Confidence*100, b.Confidence*100)
	case b.Confidence > a.Confidence:
		cmp.RecommendedID = b.ID
		cmp.Recommendation = fmt.Sprintf("%s has higher confidence (%.0f%% vs %.0f%%)",
			b.StartAt.Format("Mon 15:04"), b.Confidence*100, a.Confidence*100)
	default:
		earlier := a
		if b.StartAt.Before(a.StartAt) {
			earlier = b
		}
		cmp.RecommendedID = earlier.ID
		cmp.Recommendation = fmt.Sprintf("confidence is equal; %s starts earlier",
			earlier.StartAt.Format("Mon 15:04"))
	}
	return cmp
}

// BestSlot picks the recommended slot from a comparison set: highest
// confidence, ties broken by earliest start.
func BestSlot(slots []SuggestedSlot) (SuggestedSlot, bool) {
	if len(slots) == 0 {
		return SuggestedSlot{}, false
	}
	best := slots[0]
	for _, s := range slots[1:] {
		if s.Confidence > best.Confidence ||
			(s.Confidence == best.Confidence && s.StartAt.Before(best.StartAt)) {
			best = s
		}
	}
	return best, true
}

// SelectionMode distinguishes single-select from compare interaction; the
// two are mutually exclusive.
type SelectionMode int

const (
	ModeSelect SelectionMode = iota
	ModeCompare
)

// Selection tracks the user's slot selection state for one suggestions step.
// It is reset whenever a new suggestion request is made.
type Selection struct {
	mode           SelectionMode
	selectedSlotID string
	comparisonSet  []string
	filter         SlotFilter
	sortOption     SlotSortOption
}

func NewSelection() *Selection {
	return &Selection{}
}

func (s *Selection) Mode() SelectionMode    { return s.mode }
func (s *Selection) SelectedSlotID() string { return s.selectedSlotID }
func (s *Selection) Filter() SlotFilter     { return s.filter }
func (s *Selection) Sort() SlotSortOption   { return s.sortOption }

// ComparisonIDs returns the comparison set in insertion order.
func (s *Selection) ComparisonIDs() []string {
	out := make([]string, len(s.comparisonSet))
	copy(out, s.comparisonSet)
	return out
}

// Choose records a slot choice. In select mode it replaces the primary
// selection; in compare mode it toggles membership in the comparison set
// without touching the primary selection.
func (s *Selection) Choose(slotID string) {
	if s.mode == ModeSelect {
		s.selectedSlotID = slotID
		return
	}
	for i, id := range s.comparisonSet {
		if id == slotID {
			s.comparisonSet = append(s.comparisonSet[:i], s.comparisonSet[i+1:]...)
			return
		}
	}
	s.comparisonSet = append(s.comparisonSet, slotID)
}

// EnterCompareMode switches to compare mode, seeding the comparison set with
// the current primary selection when present.
func (s *Selection) EnterCompareMode() {
	if s.mode == ModeCompare {
		return
	}
	s.mode = ModeCompare
	s.comparisonSet = nil
	if s.selectedSlotID != "" {
		s.comparisonSet = append(s.comparisonSet, s.selectedSlotID)
	}
}

// ExitCompareMode returns to single-select mode, discarding the set.
func (s *Selection) ExitCompareMode() {
	s.mode = ModeSelect
	s.comparisonSet = nil
}

func (s *Selection) SetFilter(f SlotFilter)     { s.filter = f }
func (s *Selection) SetSort(opt SlotSortOption) { s.sortOption = opt }

// Reset clears all selection state for a fresh suggestions step.
func (s *Selection) Reset() {
	*s = Selection{}
}
