package domain

import (
	"fmt"
	"time"

	"example.com/laborsched/internal/timegrid"
)

// CloseShift records the end of an open shift. The end may fall on a later day
// than the shift date; its minutes are then counted from the shift date's
// midnight. The result is not checked for overlaps: callers validate the now
// complete interval before persisting it.
func CloseShift(activity Activity, endDate time.Time, endClock string) (Activity, error) {
	if !activity.IsOpen() {
		return Activity{}, fmt.Errorf("%w: %s", ErrAlreadyClosed, activity.ID)
	}

	clock, err := timegrid.ToMinutes(endClock)
	if err != nil {
		return Activity{}, err
	}

	days := daysBetween(activity.Date, endDate)
	end := days*timegrid.MinutesPerDay + clock
	if days < 0 || end <= activity.Interval.Start {
		return Activity{}, fmt.Errorf("%w: close at %s %s is not after start %s %s",
			ErrInvalidRange,
			CivilDate(endDate).Format(time.DateOnly), endClock,
			CivilDate(activity.Date).Format(time.DateOnly), timegrid.ToClock(activity.Interval.Start))
	}

	closed := activity
	closed.Interval = ClosedInterval(activity.Interval.Start, end)
	return closed, nil
}
