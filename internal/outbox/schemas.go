package outbox

import "example.com/activityplanner/internal/events"

const activityCreatedSchema = `{
  "type": "object",
  "title": "ActivityCreated",
  "properties": {
    "activity_id": {"type": "string"},
    "name": {"type": "string"},
    "activity_type": {"type": "string"},
    "organizing_unit": {"type": "string"},
    "start_time": {"type": "string", "format": "date-time"},
    "location": {"type": "string"},
    "status": {"type": "string"},
    "actor": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"},
    "version": {"type": "integer"}
  },
  "required": ["activity_id", "name", "activity_type", "organizing_unit", "start_time", "status", "occurred_at"],
  "additionalProperties": false
}`

const activityStatusChangedSchema = `{
  "type": "object",
  "title": "ActivityStatusChanged",
  "properties": {
    "activity_id": {"type": "string"},
    "action": {"type": "string"},
    "from": {"type": "string"},
    "to": {"type": "string"},
    "actor": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"},
    "version": {"type": "integer"}
  },
  "required": ["activity_id", "action", "from", "to", "occurred_at"],
  "additionalProperties": false
}`

const activityDeletedSchema = `{
  "type": "object",
  "title": "ActivityDeleted",
  "properties": {
    "activity_id": {"type": "string"},
    "from": {"type": "string"},
    "actor": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "from", "occurred_at"],
  "additionalProperties": false
}`

const resolutionChangedSchema = `{
  "type": "object",
  "title": "ResolutionChanged",
  "properties": {
    "resolution_id": {"type": "string"},
    "action": {"type": "string"},
    "title": {"type": "string"},
    "code": {"type": "string"},
    "status": {"type": "string", "enum": ["approved", "ongoing", "overdue"]},
    "sessions": {"type": "integer", "minimum": 0},
    "participants": {"type": "integer", "minimum": 0},
    "actor": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"},
    "version": {"type": "integer"}
  },
  "required": ["resolution_id", "action", "title", "status", "occurred_at"],
  "additionalProperties": false
}`

const resolutionDeletedSchema = `{
  "type": "object",
  "title": "ResolutionDeleted",
  "properties": {
    "resolution_id": {"type": "string"},
    "actor": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["resolution_id", "occurred_at"],
  "additionalProperties": false
}`

// schemaCatalog maps event type to its JSON schema. Created and changed resolution events
// share one shape.
var schemaCatalog = map[string]string{
	events.TypeActivityCreated:       activityCreatedSchema,
	events.TypeActivityStatusChanged: activityStatusChangedSchema,
	events.TypeActivityDeleted:       activityDeletedSchema,
	events.TypeResolutionCreated:     resolutionChangedSchema,
	events.TypeResolutionChanged:     resolutionChangedSchema,
	events.TypeResolutionDeleted:     resolutionDeletedSchema,
}
