// Package events defines the activity event payloads published through the outbox.
package events

import "time"

// TopicActivities carries every activity event, keyed by tenant and resource.
const TopicActivities = "activity_events"

// Event types recorded in the outbox and carried in the event_type Kafka header.
const (
	TypeActivityCreated = "activity.created"
	TypeActivityUpdated = "activity.updated"
	TypeActivityClosed  = "activity.closed"
	TypeActivityDeleted = "activity.deleted"
)

// ActivityScheduled is emitted when an activity is created, re-slotted or closed.
// Dates are YYYY-MM-DD and times HH:MM, matching the public API.
type ActivityScheduled struct {
	ActivityID   string    `json:"activity_id"`
	TenantID     string    `json:"tenant_id"`
	ResourceID   string    `json:"resource_id"`
	WorkID       string    `json:"work_id,omitempty"`
	ActivityType string    `json:"activity_type,omitempty"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"`
	EndDate      *string   `json:"end_date,omitempty"`
	EndTime      *string   `json:"end_time,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ActivityDeleted is emitted when an activity is soft-deleted.
type ActivityDeleted struct {
	ActivityID string    `json:"activity_id"`
	TenantID   string    `json:"tenant_id"`
	ResourceID string    `json:"resource_id"`
	Date       string    `json:"date"`
	OccurredAt time.Time `json:"occurred_at"`
}
