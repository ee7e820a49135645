package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"registro/internal/events"
)

// Producer publishes ops events to a single Kafka topic, keyed by domain so
// consumers see a per-domain ordered history.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewProducer connects to the given seed brokers. Returns nil if no seeds are
// configured (event publishing disabled).
func NewProducer(seeds []string, topic string, logger *slog.Logger) (*Producer, error) {
	if len(seeds) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Producer{client: client, topic: topic, logger: logger}, nil
}

// Publish sends one event synchronously. Errors are returned so callers can
// decide whether losing the event matters; the registration path logs and
// continues, it never fails an order because Kafka is down.
func (p *Producer) Publish(ctx context.Context, event events.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Domain),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

// Close flushes outstanding records and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
