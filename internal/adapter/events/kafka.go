package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/sileme/sileme-backend/internal/domain"
)

// Producer is the subset of *kgo.Client the publisher needs
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// message is the JSON payload written to the topic
type message struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}

// KafkaPublisher writes journal events to a topic, keyed by event kind
type KafkaPublisher struct {
	producer Producer
	topic    string
}

// NewKafkaPublisher wraps an existing producer
func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// DialKafka creates a franz-go client for the given seed brokers
func DialKafka(brokers []string, topic string) (*KafkaPublisher, *kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka: create client: %w", err)
	}
	return NewKafkaPublisher(client, topic), client, nil
}

// Publish produces the event synchronously
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	value, err := json.Marshal(message{
		ID:        event.ID.String(),
		Kind:      event.Kind.String(),
		Timestamp: event.Timestamp.UTC(),
		Details:   event.Details,
	})
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic:     p.topic,
		Key:       []byte(event.Kind.String()),
		Value:     value,
		Timestamp: event.Timestamp,
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce %s: %w", event.Kind, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.EventPublisher = (*KafkaPublisher)(nil)
