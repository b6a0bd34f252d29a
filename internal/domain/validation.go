package domain

import (
	"context"
	"time"
)

// IntervalStore reads the activities that compete with a candidate.
type IntervalStore interface {
	// FindForResourceDate returns every open and closed, non-deleted activity of
	// the resource on date, except excludeID when it is non-empty. Order is not guaranteed.
	FindForResourceDate(ctx context.Context, tenantID, resourceID string, date time.Time, excludeID string) ([]Activity, error)
}

// Validator loads a resource's day and runs the Resolver against it.
type Validator struct {
	store    IntervalStore
	resolver *Resolver
}

// NewValidator constructs a Validator.
func NewValidator(store IntervalStore, resolver *Resolver) *Validator {
	return &Validator{store: store, resolver: resolver}
}

// CheckOnly reports whether candidate would collide, without changing anything.
func (v *Validator) CheckOnly(ctx context.Context, tenantID, resourceID string, date time.Time, candidate Interval, excludeID string) (ConflictReport, error) {
	existing, err := v.store.FindForResourceDate(ctx, tenantID, resourceID, CivilDate(date), excludeID)
	if err != nil {
		return ConflictReport{}, err
	}
	return v.resolver.Resolve(candidate, existing, ValidateOnly).Report(), nil
}

// CheckAndAdjust returns a copy of candidate whose interval no longer collides
// with the resource's other activities on the same date.
func (v *Validator) CheckAndAdjust(ctx context.Context, candidate Activity, excludeID string) (Activity, Resolution, error) {
	existing, err := v.store.FindForResourceDate(ctx, candidate.TenantID, candidate.ResourceID, CivilDate(candidate.Date), excludeID)
	if err != nil {
		return Activity{}, Resolution{}, err
	}
	res := v.resolver.Resolve(candidate.Interval, existing, AutoAdjust)
	adjusted := candidate
	adjusted.Interval = res.Interval
	return adjusted, res, nil
}
