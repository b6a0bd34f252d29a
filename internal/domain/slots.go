package domain

import (
	"fmt"
	"slices"

	"example.com/laborsched/internal/timegrid"
)

// Window bounds the part of the day slots may be suggested in, as [Start, End) minutes.
type Window struct {
	Start int
	End   int
}

// FullDay covers the whole calendar day.
func FullDay() Window {
	return Window{Start: 0, End: timegrid.MinutesPerDay}
}

// SlotSuggester proposes free windows of a requested length.
type SlotSuggester struct {
	policy OpenShiftPolicy
	window Window
}

// NewSlotSuggester constructs a SlotSuggester; an empty or inverted window means the full day.
func NewSlotSuggester(policy OpenShiftPolicy, window Window) *SlotSuggester {
	if window.End <= window.Start {
		window = FullDay()
	}
	return &SlotSuggester{policy: policy, window: window}
}

// Window returns the configured suggestion window.
func (s *SlotSuggester) Window() Window {
	return s.window
}

// Suggest walks the gaps between existing activities and emits one slot of
// durationMinutes at the start of every gap long enough to hold it, earliest
// first. Slot starts are snapped up to the grid before the fit check.
func (s *SlotSuggester) Suggest(existing []Activity, durationMinutes int) ([]Interval, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDuration, durationMinutes)
	}

	type span struct{ start, end int }
	spans := make([]span, 0, len(existing))
	for _, a := range existing {
		start, end := s.policy.Span(a.Interval)
		spans = append(spans, span{start: start, end: end})
	}
	slices.SortFunc(spans, func(a, b span) int { return a.start - b.start })

	slots := make([]Interval, 0)
	emit := func(gapStart, gapEnd int) {
		gapStart = timegrid.SnapUp(gapStart)
		if gapEnd-gapStart >= durationMinutes {
			slots = append(slots, ClosedInterval(gapStart, gapStart+durationMinutes))
		}
	}

	cursor := s.window.Start
	for _, sp := range spans {
		if cursor >= s.window.End {
			break
		}
		if sp.start > cursor {
			emit(cursor, min(sp.start, s.window.End))
		}
		cursor = max(cursor, sp.end)
	}
	if cursor < s.window.End {
		emit(cursor, s.window.End)
	}
	return slots, nil
}
