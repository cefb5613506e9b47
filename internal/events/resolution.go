package events

import (
	"time"

	"example.com/activityplanner/internal/domain"
)

// Resolution event types.
const (
	TypeResolutionCreated = "resolution.created"
	TypeResolutionChanged = "resolution.changed"
	TypeResolutionDeleted = "resolution.deleted"
)

// TopicResolutionEvents carries every resolution event.
const TopicResolutionEvents = "resolution_events"

// AggregateResolution is the aggregate_type recorded for every resolution event.
const AggregateResolution = "resolution"

// ResolutionChanged is emitted when a resolution is created or any of its details or
// sessions change.
type ResolutionChanged struct {
	ResolutionID string    `json:"resolution_id"`
	Action       string    `json:"action"`
	Title        string    `json:"title"`
	Code         string    `json:"code"`
	Status       string    `json:"status"`
	Sessions     int       `json:"sessions"`
	Participants int       `json:"participants"`
	Actor        string    `json:"actor"`
	OccurredAt   time.Time `json:"occurred_at"`
	Version      int       `json:"version"`
}

// ResolutionDeleted is emitted when a resolution and its sessions are removed.
type ResolutionDeleted struct {
	ResolutionID string    `json:"resolution_id"`
	Actor        string    `json:"actor"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ForResolution builds the payload of a resolution create or replace.
func ForResolution(r domain.Resolution, change domain.ResolutionChange) (string, any) {
	eventType := TypeResolutionChanged
	if change.Action == domain.ResolutionCreate {
		eventType = TypeResolutionCreated
	}
	return eventType, ResolutionChanged{
		ResolutionID: r.ID,
		Action:       string(change.Action),
		Title:        r.Title,
		Code:         r.Code,
		Status:       string(r.Status()),
		Sessions:     len(r.Sessions),
		Participants: r.Participants(),
		Actor:        change.Actor,
		OccurredAt:   change.At,
		Version:      r.Version,
	}
}

// ForResolutionDelete builds the resolution.deleted payload.
func ForResolutionDelete(change domain.ResolutionChange) (string, any) {
	return TypeResolutionDeleted, ResolutionDeleted{
		ResolutionID: change.ResolutionID,
		Actor:        change.Actor,
		OccurredAt:   change.At,
	}
}
