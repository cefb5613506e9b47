// Package events defines the activity and resolution event payloads published through the
// outbox and how each event type is routed.
package events

import (
	"fmt"
	"time"

	"example.com/activityplanner/internal/domain"
)

// Event types.
const (
	TypeActivityCreated       = "activity.created"
	TypeActivityStatusChanged = "activity.status_changed"
	TypeActivityDeleted       = "activity.deleted"
)

// Topics.
const (
	TopicActivityEvents       = "activity_events"
	TopicActivityStateChanged = "activity_state_changed"
)

// AggregateActivity is the aggregate_type recorded for every activity event.
const AggregateActivity = "activity"

// ActivityCreated is emitted when a draft is first stored.
type ActivityCreated struct {
	ActivityID     string    `json:"activity_id"`
	Name           string    `json:"name"`
	ActivityType   string    `json:"activity_type"`
	OrganizingUnit string    `json:"organizing_unit"`
	StartTime      time.Time `json:"start_time"`
	Location       string    `json:"location"`
	Status         string    `json:"status"`
	Actor          string    `json:"actor"`
	OccurredAt     time.Time `json:"occurred_at"`
	Version        int       `json:"version"`
}

// ActivityStatusChanged is emitted for every lifecycle action applied to a stored activity,
// including actions that keep the status.
type ActivityStatusChanged struct {
	ActivityID string    `json:"activity_id"`
	Action     string    `json:"action"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
	Version    int       `json:"version"`
}

// ActivityDeleted is emitted when a draft or pending activity is removed.
type ActivityDeleted struct {
	ActivityID string    `json:"activity_id"`
	From       string    `json:"from"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Route tells the dispatcher where an event type is published and consumers which aggregate
// it belongs to.
type Route struct {
	Topic         string
	SchemaSubject string
	Aggregate     string
}

var routes = map[string]Route{
	TypeActivityCreated:       {Topic: TopicActivityEvents, SchemaSubject: TopicActivityEvents + "-value", Aggregate: AggregateActivity},
	TypeActivityDeleted:       {Topic: TopicActivityEvents, SchemaSubject: TopicActivityEvents + "-value", Aggregate: AggregateActivity},
	TypeActivityStatusChanged: {Topic: TopicActivityStateChanged, SchemaSubject: TopicActivityStateChanged + "-value", Aggregate: AggregateActivity},
	TypeResolutionCreated:     {Topic: TopicResolutionEvents, SchemaSubject: TopicResolutionEvents + "-value", Aggregate: AggregateResolution},
	TypeResolutionChanged:     {Topic: TopicResolutionEvents, SchemaSubject: TopicResolutionEvents + "-value", Aggregate: AggregateResolution},
	TypeResolutionDeleted:     {Topic: TopicResolutionEvents, SchemaSubject: TopicResolutionEvents + "-value", Aggregate: AggregateResolution},
}

// RouteFor returns the routing metadata of eventType.
func RouteFor(eventType string) (Route, error) {
	route, ok := routes[eventType]
	if !ok {
		return Route{}, fmt.Errorf("unknown event type: %s", eventType)
	}
	return route, nil
}

// ForCreate builds the activity.created payload.
func ForCreate(a domain.Activity, entry domain.HistoryEntry) (string, any) {
	return TypeActivityCreated, ActivityCreated{
		ActivityID:     a.ID,
		Name:           a.Name,
		ActivityType:   string(a.Type),
		OrganizingUnit: a.OrganizingUnit,
		StartTime:      a.StartTime,
		Location:       a.Location,
		Status:         string(a.Status),
		Actor:          entry.Actor,
		OccurredAt:     entry.At,
		Version:        a.Version,
	}
}

// ForReplace builds the activity.status_changed payload.
func ForReplace(a domain.Activity, entry domain.HistoryEntry) (string, any) {
	return TypeActivityStatusChanged, ActivityStatusChanged{
		ActivityID: a.ID,
		Action:     string(entry.Action),
		From:       string(entry.From),
		To:         string(entry.To),
		Actor:      entry.Actor,
		OccurredAt: entry.At,
		Version:    a.Version,
	}
}

// ForDelete builds the activity.deleted payload.
func ForDelete(entry domain.HistoryEntry) (string, any) {
	return TypeActivityDeleted, ActivityDeleted{
		ActivityID: entry.ActivityID,
		From:       string(entry.From),
		Actor:      entry.Actor,
		OccurredAt: entry.At,
	}
}
