package domain

import (
	"cmp"
	"slices"

	"example.com/laborsched/internal/timegrid"
)

// Mode selects whether the resolver only reports conflicts or also moves the candidate.
type Mode int

const (
	// ValidateOnly reports collisions without touching the candidate.
	ValidateOnly Mode = iota
	// AutoAdjust shrinks or pushes the candidate past every collision.
	AutoAdjust
)

// AdjustAction records how the candidate was moved around one collision.
type AdjustAction string

const (
	ActionNone   AdjustAction = ""
	ActionShrink AdjustAction = "shrink"
	ActionPush   AdjustAction = "push"
)

// Conflict pairs the candidate with an existing activity whose span it intersects.
type Conflict struct {
	Candidate Interval
	Existing  Activity
	Action    AdjustAction
}

// ConflictReport is the read-only answer to "would this interval collide?".
type ConflictReport struct {
	HasConflicts bool
	Conflicts    []Conflict
}

// Resolution is the outcome of a resolver run.
type Resolution struct {
	Mode Mode
	// Interval is the candidate unchanged in ValidateOnly mode, or the adjusted one.
	Interval  Interval
	Conflicts []Conflict
	Adjusted  bool
	// Residual lists activities the adjusted interval still intersects because
	// grid snapping moved a bound past a neighbour. Snapping is not re-run.
	Residual []Activity
	// OutsideDay is set when pushing moved the start to midnight or later.
	// Interval is then not a valid placement on the candidate's date.
	OutsideDay bool
}

// Report converts the resolution into a ConflictReport.
func (r Resolution) Report() ConflictReport {
	return ConflictReport{HasConflicts: len(r.Conflicts) > 0, Conflicts: r.Conflicts}
}

// Resolver detects and resolves overlaps between a candidate and a resource's
// existing activities on one date. It is stateless and safe for concurrent use.
type Resolver struct {
	policy OpenShiftPolicy
}

// NewResolver constructs a Resolver.
func NewResolver(policy OpenShiftPolicy) *Resolver {
	return &Resolver{policy: policy}
}

// Policy returns the open-shift policy in use.
func (r *Resolver) Policy() OpenShiftPolicy {
	return r.policy
}

// Resolve runs the collision scan. existing must already be filtered to the
// same resource and date, without the candidate itself.
func (r *Resolver) Resolve(candidate Interval, existing []Activity, mode Mode) Resolution {
	sorted := r.sortBySpan(existing)
	if mode == ValidateOnly {
		return r.detect(candidate, sorted)
	}
	return r.adjust(candidate, sorted)
}

func (r *Resolver) detect(candidate Interval, sorted []Activity) Resolution {
	res := Resolution{Mode: ValidateOnly, Interval: candidate}
	start, end := r.policy.Span(candidate)
	for _, e := range sorted {
		if r.intersects(e, start, end) {
			res.Conflicts = append(res.Conflicts, Conflict{Candidate: candidate, Existing: e})
		}
	}
	return res
}

func (r *Resolver) adjust(candidate Interval, sorted []Activity) Resolution {
	res := Resolution{Mode: AutoAdjust, Interval: candidate}
	if len(sorted) == 0 {
		return res
	}

	adjStart, adjEnd := r.policy.Span(candidate)
	for _, e := range sorted {
		if !r.intersects(e, adjStart, adjEnd) {
			continue
		}
		es, ee := r.policy.Span(e.Interval)
		action := ActionPush
		if adjStart < es {
			adjEnd = es
			action = ActionShrink
		} else {
			d := adjEnd - adjStart
			adjStart = ee
			adjEnd = adjStart + d
		}
		res.Conflicts = append(res.Conflicts, Conflict{Candidate: candidate, Existing: e, Action: action})
	}

	adjStart = timegrid.SnapUp(adjStart)
	adjEnd = timegrid.SnapUp(adjEnd)
	if adjEnd <= adjStart {
		// Shrinking against an off-grid neighbour can collapse onto one grid point.
		adjEnd = adjStart + timegrid.StepMinutes
	}

	if candidate.IsOpen() {
		res.Interval = OpenInterval(adjStart)
	} else {
		res.Interval = ClosedInterval(adjStart, adjEnd)
	}
	res.Adjusted = !res.Interval.Equal(candidate)
	res.OutsideDay = adjStart >= timegrid.MinutesPerDay

	spanStart, spanEnd := r.policy.Span(res.Interval)
	for _, e := range sorted {
		if r.intersects(e, spanStart, spanEnd) {
			res.Residual = append(res.Residual, e)
		}
	}
	return res
}

// intersects applies the half-open test e.start < end && e.end > start.
func (r *Resolver) intersects(e Activity, start, end int) bool {
	es, ee := r.policy.Span(e.Interval)
	return es < end && ee > start
}

// sortBySpan orders a copy of existing by start, then by id.
func (r *Resolver) sortBySpan(existing []Activity) []Activity {
	sorted := slices.Clone(existing)
	slices.SortStableFunc(sorted, func(a, b Activity) int {
		if c := cmp.Compare(a.Interval.Start, b.Interval.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return sorted
}
