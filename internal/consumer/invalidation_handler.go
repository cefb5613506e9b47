package consumer

import (
	"context"

	"example.com/activityplanner/internal/events"
)

// Invalidator drops derived data that an activity event makes stale.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// InvalidationHandler clears the statistics cache when an activity is created, changed or
// deleted. Statistics only count activities, so other aggregates pass through.
type InvalidationHandler struct {
	invalidator Invalidator
}

// NewInvalidationHandler constructs an InvalidationHandler.
func NewInvalidationHandler(invalidator Invalidator) *InvalidationHandler {
	return &InvalidationHandler{invalidator: invalidator}
}

// Handle implements Handler.
func (h *InvalidationHandler) Handle(ctx context.Context, msg Message) error {
	if msg.AggregateType != events.AggregateActivity {
		return nil
	}
	switch msg.EventType {
	case events.TypeActivityCreated, events.TypeActivityStatusChanged, events.TypeActivityDeleted:
		return h.invalidator.Invalidate(ctx)
	default:
		return nil
	}
}
