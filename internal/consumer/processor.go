// Package consumer reads planner events back from Kafka. Every event is appended to the
// event log; activity events also drop the cached statistics.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/activityplanner/internal/events"
	"example.com/activityplanner/internal/logging"
)

// Reader is the part of kafka.Reader the processor uses.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded events.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is one outbox event read back from Kafka. AggregateType always matches the route
// of EventType.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	AggregateType string
	AggregateID   string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Reasons a record is rejected before any handler sees it.
const (
	RejectFrame          = "frame"
	RejectMissingHeader  = "missing_header"
	RejectUnknownEvent   = "unknown_event"
	RejectWrongTopic     = "wrong_topic"
	RejectWrongAggregate = "wrong_aggregate"
)

// RejectedError reports a record that cannot be routed to a handler.
type RejectedError struct {
	Reason string
	Err    error
}

func (e *RejectedError) Error() string { return e.Reason + ": " + e.Err.Error() }

func (e *RejectedError) Unwrap() error { return e.Err }

func reject(reason, format string, args ...any) error {
	return &RejectedError{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(log logging.Logger) Option {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// Processor fetches records, decodes and routes them, and commits each offset once its
// handler succeeds. Rejected records are committed without handling. Failed ones are left
// uncommitted for redelivery.
type Processor struct {
	reader  Reader
	handler Handler
	log     logging.Logger
}

// NewProcessor returns a Processor reading from reader.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{reader: reader, handler: handler, log: logging.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.log.Error(ctx, "kafka fetch failed", "error", err)
			continue
		}

		msg, err := Decode(record)
		if err != nil {
			reason := RejectFrame
			var rejected *RejectedError
			if errors.As(err, &rejected) {
				reason = rejected.Reason
			}
			recordRejected(record.Topic, reason)
			p.log.Warn(ctx, "skipping event", "topic", record.Topic, "partition", record.Partition, "offset", record.Offset, "reason", reason, "error", err)
			p.commit(ctx, record)
			continue
		}

		started := time.Now()
		err = p.handler.Handle(ctx, msg)
		observeHandle(msg, time.Since(started))
		if errors.Is(err, ErrUnhandled) {
			if p.commit(ctx, record) {
				recordHandled(msg, outcomeIgnored)
			}
			continue
		}
		if err != nil {
			recordHandled(msg, outcomeFailed)
			p.log.Error(ctx, "event handler failed", "event_type", msg.EventType, "aggregate_type", msg.AggregateType, "aggregate_id", msg.AggregateID, "error", err)
			continue
		}
		if p.commit(ctx, record) {
			recordHandled(msg, outcomeProcessed)
		}
	}
}

func (p *Processor) commit(ctx context.Context, record kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, record); err != nil {
		p.log.Error(ctx, "kafka commit failed", "topic", record.Topic, "offset", record.Offset, "error", err)
		return false
	}
	return true
}

// Decode unwraps the schema registry frame and checks the headers against the route of the
// event type. Records written before aggregate_type was a header take it from the route.
func Decode(record kafka.Message) (Message, error) {
	if len(record.Value) < 5 {
		return Message{}, reject(RejectFrame, "payload is %d bytes", len(record.Value))
	}
	if record.Value[0] != 0 {
		return Message{}, reject(RejectFrame, "magic byte %d", record.Value[0])
	}

	eventType, ok := header(record, "event_type")
	if !ok {
		return Message{}, reject(RejectMissingHeader, "no event_type header")
	}
	aggregateID, ok := header(record, "aggregate_id")
	if !ok || aggregateID == "" {
		return Message{}, reject(RejectMissingHeader, "no aggregate_id header")
	}
	route, err := events.RouteFor(eventType)
	if err != nil {
		return Message{}, &RejectedError{Reason: RejectUnknownEvent, Err: err}
	}
	if record.Topic != route.Topic {
		return Message{}, reject(RejectWrongTopic, "%s belongs on %s, read from %s", eventType, route.Topic, record.Topic)
	}
	aggregateType := route.Aggregate
	if declared, ok := header(record, "aggregate_type"); ok && declared != route.Aggregate {
		return Message{}, reject(RejectWrongAggregate, "%s is a %s event, header says %s", eventType, route.Aggregate, declared)
	}
	subject, ok := header(record, "schema_subject")
	if !ok {
		subject = route.SchemaSubject
	}

	return Message{
		Topic:         record.Topic,
		Partition:     record.Partition,
		Offset:        record.Offset,
		Timestamp:     record.Time,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		SchemaSubject: subject,
		SchemaID:      int(binary.BigEndian.Uint32(record.Value[1:5])),
		Payload:       json.RawMessage(append([]byte(nil), record.Value[5:]...)),
	}, nil
}

func header(record kafka.Message, key string) (string, bool) {
	for _, h := range record.Headers {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}
