package domain

import (
	"fmt"
	"time"

	"example.com/laborsched/internal/timegrid"
)

// Interval is a shift expressed in minutes since midnight of the activity date.
// End is nil while the shift is open. A closed end may exceed one day when the
// shift was closed after midnight.
type Interval struct {
	Start int
	End   *int
}

// ClosedInterval builds an interval with both bounds.
func ClosedInterval(start, end int) Interval {
	return Interval{Start: start, End: &end}
}

// OpenInterval builds an interval with no recorded end.
func OpenInterval(start int) Interval {
	return Interval{Start: start}
}

// IsOpen reports whether the end has not been recorded yet.
func (i Interval) IsOpen() bool {
	return i.End == nil
}

// EndMinutes returns the recorded end, if any.
func (i Interval) EndMinutes() (int, bool) {
	if i.End == nil {
		return 0, false
	}
	return *i.End, true
}

// Equal compares bounds by value.
func (i Interval) Equal(other Interval) bool {
	if i.Start != other.Start || i.IsOpen() != other.IsOpen() {
		return false
	}
	return i.End == nil || *i.End == *other.End
}

// Validate checks that the start lies within the day and a present end is after it.
func (i Interval) Validate() error {
	if i.Start < 0 || i.Start >= timegrid.MinutesPerDay {
		return fmt.Errorf("%w: start %d outside the day", ErrInvalidRange, i.Start)
	}
	if i.End != nil && *i.End <= i.Start {
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidRange, timegrid.ToClock(*i.End), timegrid.ToClock(i.Start))
	}
	return nil
}

func (i Interval) String() string {
	if i.End == nil {
		return timegrid.ToClock(i.Start) + "-open"
	}
	return timegrid.ToClock(i.Start) + "-" + timegrid.ToClock(*i.End)
}

// Activity assigns a resource (worker or machine) to a work for one shift.
type Activity struct {
	ID           string
	TenantID     string
	ResourceID   string
	Date         time.Time
	Interval     Interval
	WorkID       string
	ActivityType string
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// IsOpen reports whether the shift is still in progress.
func (a Activity) IsOpen() bool {
	return a.Interval.IsOpen()
}

// EndDate returns the calendar day on which a closed shift ended.
func (a Activity) EndDate() (time.Time, bool) {
	end, ok := a.Interval.EndMinutes()
	if !ok {
		return time.Time{}, false
	}
	return a.Date.AddDate(0, 0, end/timegrid.MinutesPerDay), true
}

// CivilDate truncates t to midnight UTC of its calendar day.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole calendar days from a to b.
func daysBetween(a, b time.Time) int {
	return int(CivilDate(b).Sub(CivilDate(a)).Hours() / 24)
}
