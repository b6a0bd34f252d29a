// Package domain defines the scheduling rules and workflows for resource activities.
package domain

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"example.com/laborsched/internal/observability"
)

// ActivityRepository captures persistence operations.
type ActivityRepository interface {
	IntervalStore
	Create(ctx context.Context, activity Activity) error
	Update(ctx context.Context, activity Activity) error
	Close(ctx context.Context, activity Activity) error
	Get(ctx context.Context, tenantID, activityID string) (*Activity, error)
	ListByResource(ctx context.Context, tenantID, resourceID string, date *time.Time, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	SoftDelete(ctx context.Context, tenantID, activityID string, at time.Time) error
}

// Cursor models the pagination token.
type Cursor struct {
	Date  time.Time
	Start int
	ID    string
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLocker overrides the in-process KeyedMutex.
func WithLocker(locker Locker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

// WithOpenShiftPolicy overrides the open-shift comparison policy.
func WithOpenShiftPolicy(policy OpenShiftPolicy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithWindow limits slot suggestions to part of the day.
func WithWindow(window Window) Option {
	return func(s *Service) {
		s.window = window
	}
}

// WithLogger overrides the logger used to report scheduling anomalies.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates activity workflows.
type Service struct {
	repo      ActivityRepository
	locker    Locker
	policy    OpenShiftPolicy
	window    Window
	logger    *log.Logger
	now       func() time.Time
	validator *Validator
	suggester *SlotSuggester
}

// NewService constructs a Service.
func NewService(repo ActivityRepository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		locker: NewKeyedMutex(),
		policy: NewOpenShiftPolicy(DefaultOpenShiftMinutes),
		window: FullDay(),
		logger: log.New(log.Writer(), "[scheduling] ", log.LstdFlags|log.Lshortfile),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = NewValidator(repo, NewResolver(s.policy))
	s.suggester = NewSlotSuggester(s.policy, s.window)
	return s
}

// CreateActivityInput captures the payload from the API layer.
type CreateActivityInput struct {
	TenantID     string
	ResourceID   string
	Date         time.Time
	Interval     Interval
	WorkID       string
	ActivityType string
	Notes        string
}

// UpdateActivityInput replaces the scheduling fields and payload of an activity.
type UpdateActivityInput struct {
	TenantID     string
	ActivityID   string
	ResourceID   string
	Date         time.Time
	Interval     Interval
	WorkID       string
	ActivityType string
	Notes        string
}

// Scheduled is a persisted activity together with what the caller asked for.
type Scheduled struct {
	Activity  Activity
	Requested Interval
	Adjusted  bool
	Residual  bool
}

// CreateActivity auto-adjusts the requested interval around the resource's
// other activities that day and persists the result.
func (s *Service) CreateActivity(ctx context.Context, input CreateActivityInput) (*Scheduled, error) {
	if err := input.Interval.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	candidate := Activity{
		ID:           uuid.NewString(),
		TenantID:     input.TenantID,
		ResourceID:   input.ResourceID,
		Date:         CivilDate(input.Date),
		Interval:     input.Interval,
		WorkID:       input.WorkID,
		ActivityType: input.ActivityType,
		Notes:        input.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	unlock, err := s.locker.Lock(ctx, keyFor(candidate))
	if err != nil {
		return nil, err
	}
	defer unlock()

	adjusted, res, err := s.validator.CheckAndAdjust(ctx, candidate, "")
	if err != nil {
		return nil, err
	}
	s.observe("create", adjusted, res)
	if err := s.rejectOutsideDay(adjusted, res); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, adjusted); err != nil {
		return nil, err
	}
	return &Scheduled{Activity: adjusted, Requested: input.Interval, Adjusted: res.Adjusted, Residual: len(res.Residual) > 0}, nil
}

// UpdateActivity re-slots an existing activity. A closed shift cannot be reopened.
func (s *Service) UpdateActivity(ctx context.Context, input UpdateActivityInput) (*Scheduled, error) {
	if err := input.Interval.Validate(); err != nil {
		return nil, err
	}

	// Only the destination day is locked. Overlap is only ever computed against
	// the destination, so a move away from another resource or date cannot
	// double-book the source day; a concurrent write to the source row itself
	// is last-write-wins.
	unlock, err := s.locker.Lock(ctx, LockKey{TenantID: input.TenantID, ResourceID: input.ResourceID, Date: CivilDate(input.Date)})
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.GetActivity(ctx, input.TenantID, input.ActivityID)
	if err != nil {
		return nil, err
	}
	if !current.IsOpen() && input.Interval.IsOpen() {
		return nil, fmt.Errorf("%w: %s cannot be reopened", ErrAlreadyClosed, current.ID)
	}

	candidate := *current
	candidate.ResourceID = input.ResourceID
	candidate.Date = CivilDate(input.Date)
	candidate.Interval = input.Interval
	candidate.WorkID = input.WorkID
	candidate.ActivityType = input.ActivityType
	candidate.Notes = input.Notes
	candidate.UpdatedAt = s.now().UTC()

	adjusted, res, err := s.validator.CheckAndAdjust(ctx, candidate, candidate.ID)
	if err != nil {
		return nil, err
	}
	s.observe("update", adjusted, res)
	if err := s.rejectOutsideDay(adjusted, res); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, adjusted); err != nil {
		return nil, err
	}
	return &Scheduled{Activity: adjusted, Requested: input.Interval, Adjusted: res.Adjusted, Residual: len(res.Residual) > 0}, nil
}

// CloseActivity records the end of an open shift. A shift that already
// happened is never moved: if the closed interval collides, a *ConflictError
// is returned and nothing is persisted.
func (s *Service) CloseActivity(ctx context.Context, tenantID, activityID string, endDate time.Time, endClock string) (*Activity, error) {
	current, err := s.GetActivity(ctx, tenantID, activityID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, keyFor(*current))
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock so a concurrent close is seen.
	if current, err = s.GetActivity(ctx, tenantID, activityID); err != nil {
		return nil, err
	}

	closed, err := CloseShift(*current, endDate, endClock)
	if err != nil {
		return nil, err
	}
	closed.UpdatedAt = s.now().UTC()

	report, err := s.validator.CheckOnly(ctx, closed.TenantID, closed.ResourceID, closed.Date, closed.Interval, closed.ID)
	if err != nil {
		return nil, err
	}
	if report.HasConflicts {
		observability.RecordConflicts("close", len(report.Conflicts))
		s.logger.Printf("close rejected (activity=%s, resource=%s, interval=%s): %d conflicts", closed.ID, closed.ResourceID, closed.Interval, len(report.Conflicts))
		return nil, &ConflictError{Conflicts: report.Conflicts}
	}

	if err := s.repo.Close(ctx, closed); err != nil {
		return nil, err
	}
	observability.RecordShiftClosed(closed.UpdatedAt)
	return &closed, nil
}

// ValidateInterval answers whether candidate would collide, without mutating anything.
func (s *Service) ValidateInterval(ctx context.Context, tenantID, resourceID string, date time.Time, candidate Interval, excludeID string) (ConflictReport, error) {
	if err := candidate.Validate(); err != nil {
		return ConflictReport{}, err
	}
	report, err := s.validator.CheckOnly(ctx, tenantID, resourceID, date, candidate, excludeID)
	if err != nil {
		return ConflictReport{}, err
	}
	observability.RecordConflicts("validate", len(report.Conflicts))
	return report, nil
}

// SuggestSlots proposes free windows of durationMinutes for the resource on date.
func (s *Service) SuggestSlots(ctx context.Context, tenantID, resourceID string, date time.Time, durationMinutes int) ([]Interval, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDuration, durationMinutes)
	}
	existing, err := s.repo.FindForResourceDate(ctx, tenantID, resourceID, CivilDate(date), "")
	if err != nil {
		return nil, err
	}
	return s.suggester.Suggest(existing, durationMinutes)
}

// GetActivity fetches by ID.
func (s *Service) GetActivity(ctx context.Context, tenantID, activityID string) (*Activity, error) {
	activity, err := s.repo.Get(ctx, tenantID, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// ListActivities fetches a resource's activities with cursor pagination,
// optionally restricted to a single date.
func (s *Service) ListActivities(ctx context.Context, tenantID, resourceID string, date *time.Time, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	if date != nil {
		d := CivilDate(*date)
		date = &d
	}
	return s.repo.ListByResource(ctx, tenantID, resourceID, date, cursor, limit)
}

// DeleteActivity soft-deletes an activity so it no longer blocks its slot.
func (s *Service) DeleteActivity(ctx context.Context, tenantID, activityID string) error {
	if _, err := s.GetActivity(ctx, tenantID, activityID); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, tenantID, activityID, s.now().UTC())
}

func (s *Service) observe(operation string, adjusted Activity, res Resolution) {
	observability.RecordConflicts(operation, len(res.Conflicts))
	for _, c := range res.Conflicts {
		observability.RecordAdjustment(string(c.Action))
	}
	if len(res.Residual) > 0 {
		observability.RecordResidualOverlap()
		s.logger.Printf("residual overlap after grid snap (activity=%s, resource=%s, interval=%s, neighbours=%d)",
			adjusted.ID, adjusted.ResourceID, adjusted.Interval, len(res.Residual))
	}
}

// rejectOutsideDay refuses a placement the pushes moved past midnight. The
// candidate cannot fit on its date after the colliding activities.
func (s *Service) rejectOutsideDay(adjusted Activity, res Resolution) error {
	if !res.OutsideDay {
		return nil
	}
	s.logger.Printf("no room left on the day (activity=%s, resource=%s, date=%s, pushed start=%d)",
		adjusted.ID, adjusted.ResourceID, adjusted.Date.Format(time.DateOnly), res.Interval.Start)
	return &ConflictError{Conflicts: res.Conflicts}
}

func keyFor(a Activity) LockKey {
	return LockKey{TenantID: a.TenantID, ResourceID: a.ResourceID, Date: a.Date}
}
