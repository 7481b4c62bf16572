package suggest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func validRequest() SuggestionRequest {
	return SuggestionRequest{
		Title:           "Write quarterly report",
		DurationMinutes: 60,
		Deadline:        testNow.Add(48 * time.Hour),
	}
}

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, ValidateTitle("Write report"))
	assert.Error(t, ValidateTitle(""))
	assert.Error(t, ValidateTitle("   \t"))
	assert.NoError(t, ValidateTitle(strings.Repeat("a", MaxTitleLen)))
	assert.Error(t, ValidateTitle(strings.Repeat("a", MaxTitleLen+1)))
}

func TestValidateTitle_CountsRunesNotBytes(t *testing.T) {
	// 120 multi-byte runes are within the limit even though the byte
	// count is far above it.
	assert.NoError(t, ValidateTitle(strings.Repeat("ä", MaxTitleLen)))
}

func TestValidateDescription(t *testing.T) {
	assert.NoError(t, ValidateDescription(""))
	assert.NoError(t, ValidateDescription(strings.Repeat("x", MaxDescriptionLen)))
	assert.Error(t, ValidateDescription(strings.Repeat("x", MaxDescriptionLen+1)))
}

func TestValidateDuration(t *testing.T) {
	cases := []struct {
		minutes int
		ok      bool
	}{
		{15, true},
		{60, true},
		{180, true},
		{0, false},
		{14, false},
		{181, false},
		{-15, false},
		{50, false}, // in range but not a multiple of the step
		{45, true},
	}
	for _, tc := range cases {
		err := ValidateDuration(tc.minutes)
		if tc.ok {
			assert.NoError(t, err, "minutes=%d", tc.minutes)
		} else {
			assert.Error(t, err, "minutes=%d", tc.minutes)
		}
	}
}

func TestValidateDeadline(t *testing.T) {
	assert.Error(t, ValidateDeadline(time.Time{}, testNow))
	assert.Error(t, ValidateDeadline(testNow, testNow))
	assert.Error(t, ValidateDeadline(testNow.Add(-time.Minute), testNow))
	assert.NoError(t, ValidateDeadline(testNow.Add(time.Minute), testNow))
}

func TestValidatePreferredWindow(t *testing.T) {
	assert.NoError(t, ValidatePreferredWindow(nil))

	start := testNow.Add(time.Hour)
	assert.NoError(t, ValidatePreferredWindow(&TimeWindow{Start: start, End: start.Add(2 * time.Hour)}))
	assert.Error(t, ValidatePreferredWindow(&TimeWindow{Start: start}))
	assert.Error(t, ValidatePreferredWindow(&TimeWindow{End: start}))
	assert.Error(t, ValidatePreferredWindow(&TimeWindow{Start: start, End: start}))
	assert.Error(t, ValidatePreferredWindow(&TimeWindow{Start: start.Add(time.Hour), End: start}))
}

func TestValidateRequest_Valid(t *testing.T) {
	fe := ValidateRequest(validRequest(), testNow)
	assert.False(t, fe.HasErrors())
}

func TestValidateRequest_CollectsAllFieldErrors(t *testing.T) {
	req := SuggestionRequest{
		Title:           "",
		Description:     strings.Repeat("x", MaxDescriptionLen+1),
		DurationMinutes: 7,
		Deadline:        testNow.Add(-time.Hour),
		PreferredWindow: &TimeWindow{},
	}
	fe := ValidateRequest(req, testNow)

	require.True(t, fe.HasErrors())
	assert.Contains(t, fe, "title")
	assert.Contains(t, fe, "description")
	assert.Contains(t, fe, "duration_minutes")
	assert.Contains(t, fe, "deadline")
	assert.Contains(t, fe, "preferred_window")
}

func TestFieldErrors_MergeAndClear(t *testing.T) {
	fe := FieldErrors{}
	fe.Set("title", "title is required")
	fe.Merge(map[string]string{
		"title":    "server says no",
		"deadline": "deadline must be in the future",
	})

	assert.Equal(t, "server says no", fe["title"])
	assert.Equal(t, "deadline must be in the future", fe["deadline"])

	fe.Clear("title")
	assert.NotContains(t, fe, "title")
	assert.Contains(t, fe, "deadline")
	assert.True(t, fe.HasErrors())

	fe.Clear("deadline")
	assert.False(t, fe.HasErrors())
}

func TestValidateSuggestedStartAt(t *testing.T) {
	future := testNow.Add(2 * time.Hour)

	cases := []struct {
		name    string
		value   string
		wantErr string
	}{
		{"valid utc", future.Format(time.RFC3339), ""},
		{"valid with offset", future.In(time.FixedZone("ICT", 7*3600)).Format(time.RFC3339), ""},
		{"empty", "", "required"},
		{"whitespace", "   ", "required"},
		{"garbage", "not-a-time", "not a valid timestamp"},
		{"missing offset", "2026-03-10T14:00:00", "timezone offset"},
		{"missing offset short", "2026-03-10T14:00", "timezone offset"},
		{"past", testNow.Add(-time.Hour).Format(time.RFC3339), "must be in the future"},
		{"exactly now", testNow.Format(time.RFC3339), "must be in the future"},
		{"beyond horizon", testNow.Add(366 * 24 * time.Hour).Format(time.RFC3339), "more than a year"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSuggestedStartAt(tc.value, testNow)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateSuggestedStartAt_DistinctMessages(t *testing.T) {
	missing := ValidateSuggestedStartAt("", testNow)
	garbage := ValidateSuggestedStartAt("soon-ish", testNow)
	noOffset := ValidateSuggestedStartAt("2026-03-10 14:00:00", testNow)
	past := ValidateSuggestedStartAt("2020-01-01T10:00:00Z", testNow)

	msgs := map[string]bool{}
	for _, err := range []error{missing, garbage, noOffset, past} {
		require.Error(t, err)
		msgs[err.Error()] = true
	}
	assert.Len(t, msgs, 4, "each failure mode should read differently")
}

func TestValidateResponse_Nil(t *testing.T) {
	errs := ValidateResponse(nil, testNow)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "missing")
}

func TestValidateResponse_EmptySlots(t *testing.T) {
	errs := ValidateResponse(&SuggestionResponse{}, testNow)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "at least one suggested slot")
}

func TestValidateResponse_CollectsEverySlotProblem(t *testing.T) {
	resp := &SuggestionResponse{
		Slots: []SuggestedSlot{
			{
				SuggestedStartAt: testNow.Add(time.Hour).Format(time.RFC3339),
				PlannedMinutes:   60,
				Confidence:       0.8,
				Reason:           "fits the morning",
			},
			{
				SuggestedStartAt: "garbage",
				PlannedMinutes:   7,
				Confidence:       1.5,
				Reason:           "",
			},
		},
	}

	errs := ValidateResponse(resp, testNow)
	require.Len(t, errs, 4)
	for _, err := range errs {
		assert.Contains(t, err.Error(), "slot 1")
	}
}

func TestValidateResponse_ValidSlots(t *testing.T) {
	resp := &SuggestionResponse{
		Slots: []SuggestedSlot{
			{
				SuggestedStartAt: testNow.Add(3 * time.Hour).Format(time.RFC3339),
				PlannedMinutes:   45,
				Confidence:       0.9,
				Reason:           "free window after lunch",
			},
		},
	}
	assert.Empty(t, ValidateResponse(resp, testNow))
}

func TestRequestError_FieldMapRoundTrip(t *testing.T) {
	fe := FieldErrors{"title": "title is required", "deadline": "deadline must be in the future"}
	err := requestError(fe)

	assert.Equal(t, map[string]string(fe), err.FieldMap())
}

func TestValidateResponse_AllowsOffStepPlannedMinutes(t *testing.T) {
	resp := &SuggestionResponse{
		Slots: []SuggestedSlot{
			{
				SuggestedStartAt: testNow.Add(3 * time.Hour).Format(time.RFC3339),
				PlannedMinutes:   50,
				Confidence:       0.7,
				Reason:           "shortened to fit before your next meeting",
			},
		},
	}
	assert.Empty(t, ValidateResponse(resp, testNow),
		"slot durations are range-checked only; the 15-minute step applies to form input")
}
