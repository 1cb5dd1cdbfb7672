package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "eduro/pkg/platform/audit"
)

// Sink publishes audit events to a Kafka topic. Production is asynchronous:
// a failed produce is logged, never surfaced to the emitting request.
type Sink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the brokers and ensures the audit topic exists. Topic
// creation is best-effort; brokers with auto-create or pre-provisioned
// topics work without admin permissions.
func New(brokers []string, topic string, logger *slog.Logger) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopics(context.Background(), 1, 1, nil, topic); err != nil {
		logger.Warn("audit topic creation skipped", "topic", topic, "error", err)
	}

	return &Sink{client: client, topic: topic, logger: logger}, nil
}

// Append produces the event as a JSON record keyed by user ID so a user's
// events stay ordered within a partition.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.UserID),
		Value: payload,
	}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Warn("audit produce failed", "topic", s.topic, "error", err)
		}
	})
	return nil
}

// Close flushes buffered records and releases the client.
func (s *Sink) Close() {
	s.client.Close()
}
