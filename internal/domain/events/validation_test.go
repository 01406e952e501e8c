package events

import (
	"strings"
	"testing"
	"time"

	"github.com/eventviewer/server/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		start     string
		end       string
		wantField string
	}{
		{name: "valid", date: "2026-04-03", start: "14:00", end: "16:00"},
		{name: "exactly 15 minutes", date: "2026-04-03", start: "14:00", end: "14:15"},
		{name: "exactly 12 hours", date: "2026-04-03", start: "08:00", end: "20:00"},
		{name: "bad date", date: "03-04-2026", start: "14:00", end: "16:00", wantField: "date"},
		{name: "single digit hour", date: "2026-04-03", start: "9:00", end: "16:00", wantField: "startTime"},
		{name: "hour out of range", date: "2026-04-03", start: "14:00", end: "24:00", wantField: "endTime"},
		{name: "end before start", date: "2026-04-03", start: "16:00", end: "14:00", wantField: "endTime"},
		{name: "too short", date: "2026-04-03", start: "14:00", end: "14:14", wantField: "endTime"},
		{name: "too long", date: "2026-04-03", start: "07:00", end: "19:01", wantField: "endTime"},
		{name: "within lead time", date: "2026-03-04", start: "10:05", end: "11:00", wantField: "date"},
		{name: "just past lead time", date: "2026-03-04", start: "10:06", end: "11:00"},
		{name: "past day", date: "2026-03-03", start: "14:00", end: "16:00", wantField: "date"},
		{name: "more than a year ahead", date: "2027-03-05", start: "14:00", end: "16:00", wantField: "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(tt.date, tt.start, tt.end, testNow, time.UTC)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			appErr, ok := apperr.As(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, apperr.CodeValidation, appErr.Code)
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}
}

func TestValidateFeedback(t *testing.T) {
	clean, err := ValidateFeedback("  <i>Fix the date</i> ")
	require.NoError(t, err)
	assert.Equal(t, "Fix the date", clean)

	_, err = ValidateFeedback("")
	require.Error(t, err)

	long := make([]byte, 1001)
	for i := range long {
		long[i] = 'a'
	}
	_, err = ValidateFeedback(string(long))
	require.Error(t, err)
}

func TestSanitizedKeepsPunctuation(t *testing.T) {
	in := CreateInput{Name: "Q&A: Alumni's Night", Location: `Hall "B" & Lobby`, Speaker: "O'Neil"}.sanitized()
	assert.Equal(t, "Q&A: Alumni's Night", in.Name)
	assert.Equal(t, `Hall "B" & Lobby`, in.Location)
	assert.Equal(t, "O'Neil", in.Speaker)

	speaker := " <b>O'Neil</b> "
	edit := EditInput{Speaker: &speaker}.sanitized()
	require.NotNil(t, edit.Speaker)
	assert.Equal(t, "O'Neil", *edit.Speaker)

	clean, err := ValidateFeedback(`Don't forget the "speaker" bio`)
	require.NoError(t, err)
	assert.Equal(t, `Don't forget the "speaker" bio`, clean)
}

func TestLengthCountsLiteralCharacters(t *testing.T) {
	// 70 characters, each of which bluemonday would expand to an entity.
	name := strings.Repeat("&", maxNameLength)
	in := CreateInput{Name: name, Location: "Auditorium", Speaker: "Dr. Budi"}.sanitized()
	assert.NoError(t, validateText(in.Name, in.Location, in.Speaker))

	feedback := strings.Repeat("'", maxFeedbackLength)
	clean, err := ValidateFeedback(feedback)
	require.NoError(t, err)
	assert.Equal(t, feedback, clean)
}

func TestEditInputApply(t *testing.T) {
	name := "New name"
	current := Event{Name: "Old", Location: "Hall A", Status: StatusApproved}
	merged := EditInput{Name: &name}.apply(current)
	assert.Equal(t, "New name", merged.Name)
	assert.Equal(t, "Hall A", merged.Location)
	assert.Equal(t, "Old", current.Name, "apply must not mutate the stored event")

	assert.True(t, EditInput{}.Empty())
	assert.False(t, EditInput{Image: []byte{1}}.Empty())
}
