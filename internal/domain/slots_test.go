package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuggestEmptyDayStartsAtWindowStart(t *testing.T) {
	suggester := NewSlotSuggester(NewOpenShiftPolicy(DefaultOpenShiftMinutes), FullDay())

	slots, err := suggester.Suggest(nil, 60)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.True(t, ClosedInterval(0, 60).Equal(slots[0]), "got %s", slots[0])
}

func TestSuggestAroundBusyInterval(t *testing.T) {
	suggester := NewSlotSuggester(NewOpenShiftPolicy(DefaultOpenShiftMinutes), FullDay())
	existing := []Activity{closedActivity(t, "e1", "09:00", "10:00")}

	slots, err := suggester.Suggest(existing, 30)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	require.True(t, closed(t, "00:00", "00:30").Equal(slots[0]), "got %s", slots[0])
	require.True(t, closed(t, "10:00", "10:30").Equal(slots[1]), "got %s", slots[1])

	for _, slot := range slots {
		end, _ := slot.EndMinutes()
		require.False(t, slot.Start < 600 && end > 540, "slot %s overlaps 09:00-10:00", slot)
	}
}

func TestSuggestSkipsShortGapsAndHonoursWindow(t *testing.T) {
	suggester := NewSlotSuggester(NewOpenShiftPolicy(DefaultOpenShiftMinutes), Window{Start: 480, End: 1020})
	existing := []Activity{
		closedActivity(t, "late", "14:00", "18:00"),
		closedActivity(t, "a", "08:00", "09:00"),
		closedActivity(t, "b", "09:30", "12:00"),
		openActivity(t, "open", "12:30"),
	}

	slots, err := suggester.Suggest(existing, 45)
	require.NoError(t, err)
	require.Empty(t, slots, "every gap inside the window is 30 minutes")

	slots, err = suggester.Suggest(existing, 30)
	require.NoError(t, err)
	got := make([]string, 0, len(slots))
	for _, s := range slots {
		got = append(got, s.String())
	}
	require.Equal(t, []string{"09:00-09:30", "12:00-12:30", "13:30-14:00"}, got)
}

func TestSuggestSnapsGapStartsToGrid(t *testing.T) {
	suggester := NewSlotSuggester(NewOpenShiftPolicy(DefaultOpenShiftMinutes), Window{Start: 540, End: 720})
	existing := []Activity{closedActivity(t, "legacy", "09:00", "09:50")}

	slots, err := suggester.Suggest(existing, 60)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.Equal(t, "10:00-11:00", slots[0].String())
}

func TestSuggestRejectsNonPositiveDuration(t *testing.T) {
	suggester := NewSlotSuggester(NewOpenShiftPolicy(DefaultOpenShiftMinutes), FullDay())
	_, err := suggester.Suggest(nil, 0)
	require.True(t, errors.Is(err, ErrInvalidDuration))
}

func TestSuggestFullyBookedDay(t *testing.T) {
	suggester := NewSlotSuggester(NewOpenShiftPolicy(DefaultOpenShiftMinutes), Window{Start: 480, End: 600})
	existing := []Activity{closedActivity(t, "all", "07:00", "11:00")}

	slots, err := suggester.Suggest(existing, 15)
	require.NoError(t, err)
	require.Empty(t, slots)
}
