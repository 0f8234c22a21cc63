package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// Publisher emits attempt lifecycle events. Publishing is fire-and-forget:
// a broker failure is logged and never blocks the session.
type Publisher interface {
	Publish(topic string, event AttemptEvent)
	Close() error
}

type watermillPublisher struct {
	pub    message.Publisher
	logger *slog.Logger
}

// NewGoChannelPublisher is the in-process default when no broker is
// configured. Subscribers within the same process (metrics, audit log) can
// attach to the returned pub/sub.
func NewGoChannelPublisher(logger *slog.Logger) (Publisher, *gochannel.GoChannel) {
	ps := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
	return &watermillPublisher{pub: ps, logger: logger}, ps
}

// NewKafkaPublisher emits lifecycle events to Kafka for downstream
// consumers (reporting, proctoring audit).
func NewKafkaPublisher(brokers []string, logger *slog.Logger) (Publisher, error) {
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	return &watermillPublisher{pub: pub, logger: logger}, nil
}

func (p *watermillPublisher) Publish(topic string, event AttemptEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("Failed to marshal event", "topic", topic, "error", err)
		return
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := p.pub.Publish(topic, msg); err != nil {
		p.logger.Warn("Failed to publish event",
			"topic", topic,
			"attempt_id", event.AttemptID,
			"error", err)
	}
}

func (p *watermillPublisher) Close() error {
	return p.pub.Close()
}

// ===== TEST DOUBLES =====

// MockEventPublisher records published events for assertions.
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []RecordedEvent
}

type RecordedEvent struct {
	Topic string
	Event AttemptEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) Publish(topic string, event AttemptEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, RecordedEvent{Topic: topic, Event: event})
}

func (m *MockEventPublisher) Close() error { return nil }

// Recorded returns a copy of everything published so far.
func (m *MockEventPublisher) Recorded() []RecordedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedEvent, len(m.Events))
	copy(out, m.Events)
	return out
}

// NopPublisher drops everything; the session default when events are not
// wired.
type NopPublisher struct{}

func (NopPublisher) Publish(string, AttemptEvent) {}
func (NopPublisher) Close() error                 { return nil }
