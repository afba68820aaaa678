package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bamboo-bazaar/storefront-api/models"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Order event types published on the event stream
const (
	EventOrderCreated       = "order.created"
	EventOrderPaid          = "order.paid"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
)

// OrderEvent is the message published for every order state change
type OrderEvent struct {
	Type          string               `json:"type"`
	OrderID       string               `json:"order_id"`
	UserID        uint                 `json:"user_id"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	TotalAmount   float64              `json:"total_amount"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// NewOrderEvent snapshots order as an event of eventType
func NewOrderEvent(eventType string, order *models.Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
		OccurredAt:    at.UTC(),
	}
}

// EventPublisher sends order events to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// KafkaEventPublisher writes events to a Kafka topic keyed by order id, so
// all events of one order land on the same partition in order. Writes are
// asynchronous; delivery failures are logged from the completion callback.
type KafkaEventPublisher struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

// NewKafkaEventPublisher creates a publisher for topic on brokers
func NewKafkaEventPublisher(brokers []string, topic string, logger *logrus.Logger) *KafkaEventPublisher {
	p := &KafkaEventPublisher{logger: logger}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   p.completed,
		ErrorLogger:  kafka.LoggerFunc(logger.Errorf),
	}
	return p
}

// completed runs once per written batch
func (p *KafkaEventPublisher) completed(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, msg := range messages {
		eventType := ""
		for _, h := range msg.Headers {
			if h.Key == "event_type" {
				eventType = string(h.Value)
			}
		}
		p.logger.WithFields(logrus.Fields{
			"order_id":   string(msg.Key),
			"event_type": eventType,
		}).WithError(err).Warn("Failed to deliver order event")
	}
}

// Publish implements EventPublisher
func (p *KafkaEventPublisher) Publish(ctx context.Context, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// Close flushes pending messages and waits for their completion
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

// NoopEventPublisher drops events. Used when no brokers are configured.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NoopEventPublisher) Close() error                              { return nil }

// MockEventPublisher records published events for tests
type MockEventPublisher struct {
	events []OrderEvent
	err    error
	mu     sync.Mutex
}

// NewMockEventPublisher creates an empty recorder
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// FailWith makes Publish return err
func (m *MockEventPublisher) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Publish implements EventPublisher
func (m *MockEventPublisher) Publish(ctx context.Context, event OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

// Close implements EventPublisher
func (m *MockEventPublisher) Close() error { return nil }

// Events returns the recorded events
func (m *MockEventPublisher) Events() []OrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OrderEvent(nil), m.events...)
}

// Types returns the recorded event types in publish order
func (m *MockEventPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.events))
	for i, e := range m.events {
		types[i] = e.Type
	}
	return types
}
