package outbox

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []string
}

func (s *stubRegistry) EnsureSchema(_ context.Context, subject string, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, subject)
	if s.err != nil {
		return 0, s.err
	}
	if s.id == 0 {
		s.id = 1
	}
	return s.id, nil
}
