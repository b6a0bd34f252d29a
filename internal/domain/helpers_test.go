package domain

import (
	"testing"
	"time"

	"example.com/laborsched/internal/timegrid"
)

var testDate = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

func mins(t *testing.T, clock string) int {
	t.Helper()
	m, err := timegrid.ToMinutes(clock)
	if err != nil {
		t.Fatalf("bad clock %q: %v", clock, err)
	}
	return m
}

func closed(t *testing.T, start, end string) Interval {
	t.Helper()
	return ClosedInterval(mins(t, start), mins(t, end))
}

func closedActivity(t *testing.T, id, start, end string) Activity {
	t.Helper()
	return Activity{ID: id, TenantID: "tenant-1", ResourceID: "res-1", Date: testDate, Interval: closed(t, start, end)}
}

// crossMidnightActivity is closed on the following day at end.
func crossMidnightActivity(t *testing.T, id, start, end string) Activity {
	t.Helper()
	return Activity{ID: id, TenantID: "tenant-1", ResourceID: "res-1", Date: testDate, Interval: ClosedInterval(mins(t, start), timegrid.MinutesPerDay+mins(t, end))}
}

func openActivity(t *testing.T, id, start string) Activity {
	t.Helper()
	return Activity{ID: id, TenantID: "tenant-1", ResourceID: "res-1", Date: testDate, Interval: OpenInterval(mins(t, start))}
}

func conflictIDs(conflicts []Conflict) []string {
	ids := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.Existing.ID)
	}
	return ids
}
