package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrInvalidRange is returned when an end is not strictly after its start.
	ErrInvalidRange = errors.New("invalid time range")
	// ErrAlreadyClosed is returned when closing or reopening a shift that already has an end.
	ErrAlreadyClosed = errors.New("activity already closed")
	// ErrInvalidDuration is returned for non-positive slot durations.
	ErrInvalidDuration = errors.New("duration must be positive")
	// ErrConflict matches any *ConflictError.
	ErrConflict = errors.New("activity overlaps an existing activity")
)

// ConflictError lists the existing activities a write would double-book.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s (%s)", c.Existing.ID, c.Existing.Interval))
	}
	return fmt.Sprintf("%s: %s", ErrConflict, strings.Join(parts, ", "))
}

// Is lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
