package consumer

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnhandled is returned by Router for an aggregate nobody registered. The processor
// commits such events without retrying.
var ErrUnhandled = errors.New("consumer: no handler for aggregate")

// Router dispatches each event to the handlers registered for its aggregate.
type Router struct {
	routes map[string]Handler
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[string]Handler)}
}

// Register runs handlers, in order, for every event of aggregate. Nil handlers are skipped.
func (r *Router) Register(aggregate string, handlers ...Handler) error {
	if _, exists := r.routes[aggregate]; exists {
		return fmt.Errorf("consumer: aggregate %s registered twice", aggregate)
	}
	chain, err := NewChain(handlers...)
	if err != nil {
		return fmt.Errorf("aggregate %s: %w", aggregate, err)
	}
	r.routes[aggregate] = chain
	return nil
}

// Aggregates lists the registered aggregates.
func (r *Router) Aggregates() []string {
	out := make([]string, 0, len(r.routes))
	for aggregate := range r.routes {
		out = append(out, aggregate)
	}
	return out
}

// Handle implements Handler.
func (r *Router) Handle(ctx context.Context, msg Message) error {
	h, ok := r.routes[msg.AggregateType]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnhandled, msg.AggregateType)
	}
	return h.Handle(ctx, msg)
}

// Chain runs handlers in order and stops at the first error.
type Chain []Handler

// Handle implements Handler.
func (c Chain) Handle(ctx context.Context, msg Message) error {
	for _, h := range c {
		if err := h.Handle(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

var errNoHandlers = errors.New("consumer: no handlers configured")

// NewChain drops nil handlers and rejects an empty result.
func NewChain(handlers ...Handler) (Chain, error) {
	out := make(Chain, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return nil, errNoHandlers
	}
	return out, nil
}
