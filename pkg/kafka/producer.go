// Package kafka publishes the indexer's run events through
// segmentio/kafka-go. Each message is one JSON document keyed by the run id,
// so every event of a run lands on the same partition in order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

// Producer writes run events to the merge-ready topic.
type Producer struct {
	writer  *kafka.Writer
	brokers []string
	topic   string
	logger  *slog.Logger
}

// NewProducer builds a producer for cfg.MergeReadyTopic. No connection is
// made until Ping or Publish.
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "kafka producer needs at least one broker")
	}
	acks, err := requiredAcks(cfg.RequiredAcks)
	if err != nil {
		return nil, err
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.MergeReadyTopic,
		Balancer:               &kafka.Hash{},
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           cfg.WriteTimeout,
		MaxAttempts:            3,
		RequiredAcks:           acks,
		AllowAutoTopicCreation: true,
	}
	return &Producer{
		writer:  w,
		brokers: cfg.Brokers,
		topic:   cfg.MergeReadyTopic,
		logger:  slog.Default().With("component", "kafka-producer", "topic", cfg.MergeReadyTopic),
	}, nil
}

func requiredAcks(name string) (kafka.RequiredAcks, error) {
	switch name {
	case "", "all":
		return kafka.RequireAll, nil
	case "one":
		return kafka.RequireOne, nil
	case "none":
		return kafka.RequireNone, nil
	default:
		return 0, apperrors.Newf(apperrors.ErrInvalidConfig, "unknown kafka acks %q", name)
	}
}

// Ping succeeds once any configured broker accepts a connection.
func (p *Producer) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("dialing kafka brokers %v: %w", p.brokers, lastErr)
}

// Publish writes one event keyed by runID.
func (p *Producer) Publish(ctx context.Context, runID string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event for run %s: %w", runID, err)
	}
	msg := kafka.Message{Key: []byte(runID), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish run event", "run_id", runID, "error", err)
		return fmt.Errorf("publishing to kafka topic %s: %w", p.topic, err)
	}
	p.logger.Debug("run event published", "run_id", runID, "value_size", len(value))
	return nil
}

func (p *Producer) Topic() string {
	return p.topic
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
