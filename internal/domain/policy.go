package domain

// DefaultOpenShiftMinutes is how long an open shift is assumed to last when
// compared against other shifts.
const DefaultOpenShiftMinutes = 60

// OpenShiftPolicy decides the span an interval occupies for overlap purposes.
// Closed intervals occupy [Start, End); open ones [Start, Start+AssumedMinutes).
// Build it with NewOpenShiftPolicy so AssumedMinutes is positive.
type OpenShiftPolicy struct {
	AssumedMinutes int
}

// NewOpenShiftPolicy falls back to DefaultOpenShiftMinutes for non-positive values.
func NewOpenShiftPolicy(assumedMinutes int) OpenShiftPolicy {
	if assumedMinutes <= 0 {
		assumedMinutes = DefaultOpenShiftMinutes
	}
	return OpenShiftPolicy{AssumedMinutes: assumedMinutes}
}

// Span returns the half-open bounds used when comparing i with other intervals.
func (p OpenShiftPolicy) Span(i Interval) (start, end int) {
	if end, ok := i.EndMinutes(); ok {
		return i.Start, end
	}
	return i.Start, i.Start + p.AssumedMinutes
}
