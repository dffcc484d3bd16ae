package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"dsrengine/internal/platform/kafka/producer"
	id "dsrengine/pkg/domain"
)

// MessageProducer is the subset of the Kafka producer the sink needs.
type MessageProducer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaSink publishes entries as JSON to a topic, keyed by user id so all
// entries for one subject land on the same partition.
type KafkaSink struct {
	producer MessageProducer
	topic    string
}

func NewKafkaSink(p MessageProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (k *KafkaSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return k.producer.Produce(ctx, &producer.Message{
		Topic: k.topic,
		Key:   []byte(event.UserID.String()),
		Value: payload,
		Headers: map[string]string{
			"action":  string(event.Action),
			"outcome": string(event.Outcome),
		},
	})
}

// FanOutStore writes to a primary Store and then forwards to the Kafka sink.
// The primary write decides the result; sink failures are logged only.
type FanOutStore struct {
	primary Store
	sink    *KafkaSink
	logger  *slog.Logger
}

func NewFanOutStore(primary Store, sink *KafkaSink, logger *slog.Logger) *FanOutStore {
	return &FanOutStore{primary: primary, sink: sink, logger: logger}
}

func (f *FanOutStore) Append(ctx context.Context, event Event) error {
	if err := f.primary.Append(ctx, event); err != nil {
		return err
	}
	if f.sink == nil {
		return nil
	}
	if err := f.sink.Publish(ctx, event); err != nil && f.logger != nil {
		f.logger.WarnContext(ctx, "audit sink publish failed",
			"error", err,
			"action", event.Action,
			"audit_id", event.ID.String(),
		)
	}
	return nil
}

func (f *FanOutStore) ListByUser(ctx context.Context, userID id.UserID) ([]Event, error) {
	return f.primary.ListByUser(ctx, userID)
}
