package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type Type string

const (
	OrderCreated   Type = "order.created"
	OrderDelivered Type = "order.delivered"
	DishRated      Type = "dish.rated"
)

// Event is the envelope written to the events topic. Key selects the
// partition so events of one order or dish stay ordered.
type Event struct {
	Type       Type      `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	Writer MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           time.Second,
		MaxAttempts:            3,
	}
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: failed to encode %s event: %w", event.Type, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("events: failed to publish %s event: %w", event.Type, err)
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.Writer.Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, event Event) error {
	log.Debug().Str("event_type", string(event.Type)).Str("key", event.Key).Msg("events: publisher disabled, event dropped")
	return nil
}

// AfterCommitTimeout bounds how long a request waits on the broker once its
// change is committed.
var AfterCommitTimeout = 2 * time.Second

// PublishAfterCommit publishes an event for an already committed change.
// Failures are logged and never returned since the change cannot be undone.
// The request's cancellation is ignored; AfterCommitTimeout applies instead.
func PublishAfterCommit(ctx context.Context, p Publisher, event Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), AfterCommitTimeout)
	defer cancel()

	if err := p.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Str("key", event.Key).Msg("events: failed to publish event")
	}
}
