package outbox

import "example.com/laborsched/internal/events"

const activityScheduledSchema = `{
  "type": "object",
  "title": "ActivityScheduled",
  "properties": {
    "activity_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "resource_id": {"type": "string"},
    "work_id": {"type": "string"},
    "activity_type": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "start_time": {"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
    "end_date": {"type": ["string", "null"], "format": "date"},
    "end_time": {"type": ["string", "null"]},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "tenant_id", "resource_id", "date", "start_time", "occurred_at"],
  "additionalProperties": false
}`

const activityDeletedSchema = `{
  "type": "object",
  "title": "ActivityDeleted",
  "properties": {
    "activity_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "resource_id": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "tenant_id", "resource_id", "date", "occurred_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeActivityCreated: {Schema: activityScheduledSchema},
	events.TypeActivityUpdated: {Schema: activityScheduledSchema},
	events.TypeActivityClosed:  {Schema: activityScheduledSchema},
	events.TypeActivityDeleted: {Schema: activityDeletedSchema},
}
