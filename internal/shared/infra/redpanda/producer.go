// Package redpanda publishes signed fiscal documents to the relay topic.
package redpanda

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one record to produce.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer publishes records to Redpanda (Kafka-compatible).
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewProducer creates a new Redpanda producer. Produce requests wait for
// all in-sync replicas so an acknowledged record survives a broker loss.
func NewProducer(brokers []string, logger *slog.Logger) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redpanda client: %w", err)
	}

	return &Producer{
		client: client,
		logger: logger.With("component", "redpanda-producer"),
	}, nil
}

// Publish produces msg synchronously and returns its position as
// "topic/partition@offset".
func (p *Producer) Publish(ctx context.Context, msg Message) (string, error) {
	record := &kgo.Record{
		Topic: msg.Topic,
		Key:   msg.Key,
		Value: msg.Value,
	}
	for _, k := range slices.Sorted(maps.Keys(msg.Headers)) {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(msg.Headers[k])})
	}

	results := p.client.ProduceSync(ctx, record)
	produced, err := results.First()
	if err != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", msg.Topic, err)
	}

	position := fmt.Sprintf("%s/%d@%d", produced.Topic, produced.Partition, produced.Offset)
	p.logger.Debug("record published to Redpanda",
		"topic", produced.Topic,
		"position", position,
	)

	return position, nil
}

// Close closes the producer connection.
func (p *Producer) Close() {
	p.client.Close()
	p.logger.Info("Redpanda producer closed")
}
