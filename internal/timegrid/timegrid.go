// Package timegrid converts between HH:MM wall-clock strings and minutes since
// midnight, and snaps minute values onto the 15-minute scheduling grid.
package timegrid

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

const (
	// StepMinutes is the spacing of valid grid points.
	StepMinutes = 15
	// MinutesPerDay is the length of a calendar day in minutes.
	MinutesPerDay = 24 * 60
)

// ErrInvalidFormat is returned when a wall-clock string is not HH:MM.
var ErrInvalidFormat = errors.New("invalid time format")

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// ToMinutes parses "HH:MM" into minutes since midnight.
func ToMinutes(clock string) (int, error) {
	match := clockPattern.FindStringSubmatch(clock)
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, clock)
	}
	hours, _ := strconv.Atoi(match[1])
	mins, _ := strconv.Atoi(match[2])
	return hours*60 + mins, nil
}

// ToClock formats minutes as "HH:MM". Values outside a single day are reduced
// modulo MinutesPerDay, so the day offset of a cross-midnight value is lost.
func ToClock(minutes int) string {
	m := ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// SnapUp rounds minutes up to the next grid point. Aligned values are returned unchanged.
func SnapUp(minutes int) int {
	if rem := minutes % StepMinutes; rem != 0 {
		if rem < 0 {
			return minutes - rem
		}
		return minutes + StepMinutes - rem
	}
	return minutes
}

// IsAligned reports whether minutes sits on a grid point.
func IsAligned(minutes int) bool {
	return minutes%StepMinutes == 0
}

// ParseAligned parses "HH:MM" and rejects values off the 15-minute grid.
func ParseAligned(clock string) (int, error) {
	minutes, err := ToMinutes(clock)
	if err != nil {
		return 0, err
	}
	if !IsAligned(minutes) {
		return 0, fmt.Errorf("%w: %q is not a multiple of %d minutes", ErrInvalidFormat, clock, StepMinutes)
	}
	return minutes, nil
}
