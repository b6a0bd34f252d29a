// Package postgres stores activities in PostgreSQL and records their outbox events.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/laborsched/internal/domain"
	"example.com/laborsched/internal/events"
	"example.com/laborsched/internal/observability"
	"example.com/laborsched/internal/timegrid"
)

const activityColumns = `activity_id, tenant_id, resource_id, activity_date, start_minute, end_minute, work_id, activity_type, notes, created_at, updated_at, deleted_at`

// Repository provides Postgres-backed persistence for activities and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindForResourceDate returns the live activities of a resource on one date.
func (r *Repository) FindForResourceDate(ctx context.Context, tenantID, resourceID string, date time.Time, excludeID string) ([]domain.Activity, error) {
	query := `SELECT ` + activityColumns + `
        FROM activities
        WHERE tenant_id=$1 AND resource_id=$2 AND activity_date=$3 AND deleted_at IS NULL`
	args := []interface{}{tenantID, resourceID, domain.CivilDate(date)}
	if validID(excludeID) {
		query += ` AND activity_id <> $4`
		args = append(args, excludeID)
	}
	query += ` ORDER BY start_minute, activity_id`

	var out []domain.Activity
	err := r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = collectActivities(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("find activities for resource %s: %w", resourceID, err)
	}
	return out, nil
}

// Create persists the activity and records an activity.created event in one transaction.
func (r *Repository) Create(ctx context.Context, activity domain.Activity) error {
	const stmt = `INSERT INTO activities (` + activityColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULL)`

	err := r.inTenantTx(ctx, activity.TenantID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, stmt,
			activity.ID,
			activity.TenantID,
			activity.ResourceID,
			activity.Date,
			activity.Interval.Start,
			activity.Interval.End,
			activity.WorkID,
			activity.ActivityType,
			activity.Notes,
			activity.CreatedAt,
			activity.UpdatedAt,
		); err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, activity, events.TypeActivityCreated, scheduledEvent(activity))
	})
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// Update rewrites the scheduling fields and payload of a live activity.
func (r *Repository) Update(ctx context.Context, activity domain.Activity) error {
	return r.save(ctx, activity, events.TypeActivityUpdated)
}

// Close stores the recorded end of a shift and emits activity.closed.
func (r *Repository) Close(ctx context.Context, activity domain.Activity) error {
	return r.save(ctx, activity, events.TypeActivityClosed)
}

func (r *Repository) save(ctx context.Context, activity domain.Activity, eventType string) error {
	const stmt = `UPDATE activities
        SET resource_id=$3, activity_date=$4, start_minute=$5, end_minute=$6, work_id=$7, activity_type=$8, notes=$9, updated_at=$10
        WHERE tenant_id=$1 AND activity_id=$2 AND deleted_at IS NULL`

	err := r.inTenantTx(ctx, activity.TenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt,
			activity.TenantID,
			activity.ID,
			activity.ResourceID,
			activity.Date,
			activity.Interval.Start,
			activity.Interval.End,
			activity.WorkID,
			activity.ActivityType,
			activity.Notes,
			activity.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrActivityNotFound
		}
		return r.insertOutbox(ctx, tx, activity, eventType, scheduledEvent(activity))
	})
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// Get retrieves a live activity by ID, or nil when it does not exist.
func (r *Repository) Get(ctx context.Context, tenantID, activityID string) (*domain.Activity, error) {
	const query = `SELECT ` + activityColumns + `
        FROM activities WHERE tenant_id=$1 AND activity_id=$2 AND deleted_at IS NULL`

	if !validID(activityID) {
		return nil, nil
	}

	var found *domain.Activity
	err := r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		activity, err := scanActivity(tx.QueryRow(ctx, query, tenantID, activityID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &activity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ListByResource returns a resource's activities ordered by date, start and id,
// optionally restricted to one date.
func (r *Repository) ListByResource(ctx context.Context, tenantID, resourceID string, date *time.Time, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	args := []interface{}{tenantID, resourceID, limit}
	query := `SELECT ` + activityColumns + `
        FROM activities WHERE tenant_id=$1 AND resource_id=$2 AND deleted_at IS NULL`

	if date != nil {
		args = append(args, domain.CivilDate(*date))
		query += fmt.Sprintf(` AND activity_date = $%d`, len(args))
	}
	if cursor != nil {
		args = append(args, cursor.Date, cursor.Start, cursor.ID)
		query += fmt.Sprintf(` AND (activity_date, start_minute, activity_id) > ($%d, $%d, $%d)`, len(args)-2, len(args)-1, len(args))
	}
	query += ` ORDER BY activity_date, start_minute, activity_id LIMIT $3`

	var results []domain.Activity
	err := r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		results, err = collectActivities(rows)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{Date: last.Date, Start: last.Interval.Start, ID: last.ID}
	}
	return results, next, nil
}

// SoftDelete marks the activity deleted and emits activity.deleted.
func (r *Repository) SoftDelete(ctx context.Context, tenantID, activityID string, at time.Time) error {
	const stmt = `UPDATE activities SET deleted_at=$3, updated_at=$3
        WHERE tenant_id=$1 AND activity_id=$2 AND deleted_at IS NULL
        RETURNING ` + activityColumns

	if !validID(activityID) {
		return domain.ErrActivityNotFound
	}
	return r.inTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		activity, err := scanActivity(tx.QueryRow(ctx, stmt, tenantID, activityID, at))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrActivityNotFound
		}
		if err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, activity, events.TypeActivityDeleted, events.ActivityDeleted{
			ActivityID: activity.ID,
			TenantID:   activity.TenantID,
			ResourceID: activity.ResourceID,
			Date:       activity.Date.Format(time.DateOnly),
			OccurredAt: at,
		})
	})
}

// inTenantTx runs fn in a transaction scoped to tenantID for row-level security.
func (r *Repository) inTenantTx(ctx context.Context, tenantID string, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, activity domain.Activity, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s:%d", activity.ID, eventType, activity.UpdatedAt.UnixNano())

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		activity.TenantID,
		"activity",
		activity.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey(activity),
		body,
		dedupeKey,
	)
	return err
}

func scheduledEvent(a domain.Activity) events.ActivityScheduled {
	evt := events.ActivityScheduled{
		ActivityID:   a.ID,
		TenantID:     a.TenantID,
		ResourceID:   a.ResourceID,
		WorkID:       a.WorkID,
		ActivityType: a.ActivityType,
		Date:         a.Date.Format(time.DateOnly),
		StartTime:    timegrid.ToClock(a.Interval.Start),
		OccurredAt:   a.UpdatedAt,
	}
	if endDate, ok := a.EndDate(); ok {
		d := endDate.Format(time.DateOnly)
		c := timegrid.ToClock(*a.Interval.End)
		evt.EndDate, evt.EndTime = &d, &c
	}
	return evt
}

// partitionKey keeps every event of one resource in order on a single partition.
func partitionKey(a domain.Activity) string {
	return a.TenantID + ":" + a.ResourceID
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeActivityCreated: {Topic: events.TopicActivities, SchemaSubject: "activity_events-scheduled"},
	events.TypeActivityUpdated: {Topic: events.TopicActivities, SchemaSubject: "activity_events-scheduled"},
	events.TypeActivityClosed:  {Topic: events.TopicActivities, SchemaSubject: "activity_events-scheduled"},
	events.TypeActivityDeleted: {Topic: events.TopicActivities, SchemaSubject: "activity_events-deleted"},
}

// validID reports whether id can be compared against the uuid key column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivity(row rowScanner) (domain.Activity, error) {
	var a domain.Activity
	err := row.Scan(&a.ID, &a.TenantID, &a.ResourceID, &a.Date, &a.Interval.Start, &a.Interval.End,
		&a.WorkID, &a.ActivityType, &a.Notes, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	if err != nil {
		return domain.Activity{}, err
	}
	a.Date = domain.CivilDate(a.Date)
	return a, nil
}

func collectActivities(rows pgx.Rows) ([]domain.Activity, error) {
	defer rows.Close()
	out := make([]domain.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
