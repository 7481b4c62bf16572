package suggest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotAt(id string, start time.Time, minutes int, confidence float64) SuggestedSlot {
	return SuggestedSlot{
		ID:               id,
		StartAt:          start,
		SuggestedStartAt: start.Format(time.RFC3339),
		PlannedMinutes:   minutes,
		Confidence:       confidence,
		Reason:           "test slot",
	}
}

func testSlots() []SuggestedSlot {
	base := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	return []SuggestedSlot{
		slotAt("a", base, 60, 0.9),
		slotAt("b", base.Add(3*time.Hour), 30, 0.5),
		slotAt("c", base.Add(6*time.Hour), 90, 0.7),
		slotAt("d", base.Add(9*time.Hour), 45, 0.2),
	}
}

func slotIDs(slots []SuggestedSlot) []string {
	ids := make([]string, len(slots))
	for i, s := range slots {
		ids[i] = s.ID
	}
	return ids
}

func TestFilterSlots_NoConstraintsKeepsAll(t *testing.T) {
	slots := testSlots()
	out := FilterSlots(slots, SlotFilter{})
	assert.Equal(t, slotIDs(slots), slotIDs(out))
}

func TestFilterSlots_ConfidenceRange(t *testing.T) {
	out := FilterSlots(testSlots(), SlotFilter{
		Confidence: &ConfidenceRange{Min: 0.5, Max: 1.0},
	})
	assert.Equal(t, []string{"a", "b", "c"}, slotIDs(out))
}

func TestFilterSlots_TimeRange(t *testing.T) {
	base := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	out := FilterSlots(testSlots(), SlotFilter{
		Time: &TimeRange{Start: base.Add(time.Hour), End: base.Add(7 * time.Hour)},
	})
	assert.Equal(t, []string{"b", "c"}, slotIDs(out))
}

func TestFilterSlots_BothAxes(t *testing.T) {
	base := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	out := FilterSlots(testSlots(), SlotFilter{
		Confidence: &ConfidenceRange{Min: 0.6, Max: 1.0},
		Time:       &TimeRange{Start: base.Add(time.Hour), End: base.Add(10 * time.Hour)},
	})
	assert.Equal(t, []string{"c"}, slotIDs(out))
}

func TestFilterSlots_BoundsAreInclusive(t *testing.T) {
	slots := testSlots()
	out := FilterSlots(slots, SlotFilter{
		Confidence: &ConfidenceRange{Min: 0.2, Max: 0.9},
		Time:       &TimeRange{Start: slots[0].StartAt, End: slots[3].StartAt},
	})
	assert.Equal(t, slotIDs(slots), slotIDs(out))
}

func TestFilterSlots_NeverMutatesSource(t *testing.T) {
	slots := testSlots()
	before := slotIDs(slots)

	out := FilterSlots(slots, SlotFilter{Confidence: &ConfidenceRange{Min: 0.8, Max: 1.0}})
	require.Len(t, out, 1)
	out[0].ID = "mutated"

	assert.Equal(t, before, slotIDs(slots))
}

func TestFilterSlots_Idempotent(t *testing.T) {
	f := SlotFilter{Confidence: &ConfidenceRange{Min: 0.4, Max: 1.0}}
	once := FilterSlots(testSlots(), f)
	twice := FilterSlots(once, f)
	assert.Equal(t, slotIDs(once), slotIDs(twice))
}

func TestSortSlots_ServiceOrderKeepsRanking(t *testing.T) {
	slots := testSlots()
	out := SortSlots(slots, SortServiceOrder)
	assert.Equal(t, slotIDs(slots), slotIDs(out))
}

func TestSortSlots_ConfidenceDesc(t *testing.T) {
	out := SortSlots(testSlots(), SortConfidenceDesc)
	assert.Equal(t, []string{"a", "c", "b", "d"}, slotIDs(out))
}

func TestSortSlots_StartAsc(t *testing.T) {
	slots := testSlots()
	// Shuffle the input so the sort actually has work to do.
	shuffled := []SuggestedSlot{slots[2], slots[0], slots[3], slots[1]}
	out := SortSlots(shuffled, SortStartAsc)
	assert.Equal(t, []string{"a", "b", "c", "d"}, slotIDs(out))
}

func TestSortSlots_DurationAsc(t *testing.T) {
	out := SortSlots(testSlots(), SortDurationAsc)
	assert.Equal(t, []string{"b", "d", "a", "c"}, slotIDs(out))
}

func TestSortSlots_StableOnTies(t *testing.T) {
	base := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	slots := []SuggestedSlot{
		slotAt("first", base, 60, 0.5),
		slotAt("second", base.Add(time.Hour), 60, 0.5),
		slotAt("third", base.Add(2*time.Hour), 60, 0.5),
	}
	out := SortSlots(slots, SortConfidenceDesc)
	assert.Equal(t, []string{"first", "second", "third"}, slotIDs(out))
}

func TestSortSlots_DoesNotMutateSource(t *testing.T) {
	slots := testSlots()
	before := slotIDs(slots)
	_ = SortSlots(slots, SortConfidenceDesc)
	assert.Equal(t, before, slotIDs(slots))
}

func TestCompareSlots_HigherConfidenceWins(t *testing.T) {
	base := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	a := slotAt("a", base, 60, 0.9)
	b := slotAt("b", base.Add(2*time.Hour), 60, 0.6)

	cmp := CompareSlots(a, b)
	assert.Equal(t, "a", cmp.RecommendedID)
	assert.Equal(t, 2*time.Hour, cmp.TimeDelta)
	assert.InDelta(t, -0.3, cmp.ConfidenceDelta, 1e-9)
	assert.Contains(t, cmp.Recommendation, "higher confidence")

	// Symmetric: swapping the arguments recommends the same slot.
	assert.Equal(t, "a", CompareSlots(b, a).RecommendedID)
}

func TestCompareSlots_TimeDeltaIsAbsolute(t *testing.T) {
	base := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	a := slotAt("a", base.Add(4*time.Hour), 60, 0.5)
	b := slotAt("b", base, 60, 0.8)

	cmp := CompareSlots(a, b)
	assert.Equal(t, 4*time.Hour, cmp.TimeDelta)
}

func TestCompareSlots_TieBreaksOnEarlierStart(t *testing.T) {
	base := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	later := slotAt("later", base.Add(3*time.Hour), 60, 0.7)
	earlier := slotAt("earlier", base, 60, 0.7)

	cmp := CompareSlots(later, earlier)
	assert.Equal(t, "earlier", cmp.RecommendedID)
	assert.Contains(t, cmp.Recommendation, "starts earlier")
}

func TestBestSlot(t *testing.T) {
	_, ok := BestSlot(nil)
	assert.False(t, ok)

	best, ok := BestSlot(testSlots())
	require.True(t, ok)
	assert.Equal(t, "a", best.ID)
}

func TestBestSlot_TieBreaksOnEarlierStart(t *testing.T) {
	base := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	slots := []SuggestedSlot{
		slotAt("late", base.Add(5*time.Hour), 60, 0.8),
		slotAt("early", base, 60, 0.8),
	}
	best, ok := BestSlot(slots)
	require.True(t, ok)
	assert.Equal(t, "early", best.ID)
}

func TestSelection_SelectMode(t *testing.T) {
	s := NewSelection()
	assert.Equal(t, ModeSelect, s.Mode())
	assert.Empty(t, s.SelectedSlotID())

	s.Choose("a")
	assert.Equal(t, "a", s.SelectedSlotID())

	s.Choose("b")
	assert.Equal(t, "b", s.SelectedSlotID())
	assert.Empty(t, s.ComparisonIDs())
}

func TestSelection_CompareModeToggles(t *testing.T) {
	s := NewSelection()
	s.EnterCompareMode()
	assert.Equal(t, ModeCompare, s.Mode())

	s.Choose("a")
	s.Choose("b")
	assert.Equal(t, []string{"a", "b"}, s.ComparisonIDs())

	// Choosing an already-marked slot removes it.
	s.Choose("a")
	assert.Equal(t, []string{"b"}, s.ComparisonIDs())

	// Compare-mode choices never touch the primary selection.
	assert.Empty(t, s.SelectedSlotID())
}

func TestSelection_EnterCompareSeedsWithPrimary(t *testing.T) {
	s := NewSelection()
	s.Choose("a")
	s.EnterCompareMode()
	assert.Equal(t, []string{"a"}, s.ComparisonIDs())
	assert.Equal(t, "a", s.SelectedSlotID())

	// Re-entering is a no-op and keeps the set.
	s.Choose("b")
	s.EnterCompareMode()
	assert.Equal(t, []string{"a", "b"}, s.ComparisonIDs())
}

func TestSelection_ExitCompareDiscardsSet(t *testing.T) {
	s := NewSelection()
	s.Choose("a")
	s.EnterCompareMode()
	s.Choose("b")

	s.ExitCompareMode()
	assert.Equal(t, ModeSelect, s.Mode())
	assert.Empty(t, s.ComparisonIDs())
	assert.Equal(t, "a", s.SelectedSlotID())
}

func TestSelection_Reset(t *testing.T) {
	s := NewSelection()
	s.Choose("a")
	s.EnterCompareMode()
	s.Choose("b")
	s.SetSort(SortConfidenceDesc)
	s.SetFilter(SlotFilter{Confidence: &ConfidenceRange{Min: 0.5, Max: 1}})

	s.Reset()
	assert.Equal(t, ModeSelect, s.Mode())
	assert.Empty(t, s.SelectedSlotID())
	assert.Empty(t, s.ComparisonIDs())
	assert.Equal(t, SortServiceOrder, s.Sort())
	assert.Nil(t, s.Filter().Confidence)
}

func TestSlotTier(t *testing.T) {
	cases := []struct {
		confidence float64
		tier       ConfidenceTier
	}{
		{0.0, TierLow},
		{0.33, TierLow},
		{0.34, TierMedium},
		{0.5, TierMedium},
		{0.66, TierMedium},
		{0.67, TierHigh},
		{1.0, TierHigh},
	}
	for _, tc := range cases {
		slot := SuggestedSlot{Confidence: tc.confidence}
		assert.Equal(t, tc.tier, slot.Tier(), "confidence=%.2f", tc.confidence)
	}
}
