package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/config"
)

const contentTypeJSON = "application/json"

// Event is one message to publish. Key selects the partition; Value is
// encoded as JSON.
type Event struct {
	Key   string
	Value any
}

// Producer publishes JSON-encoded events to one topic.
type Producer struct {
	writer  *kafka.Writer
	brokers []string
	dialer  *kafka.Dialer
	logger  *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              100,
			BatchTimeout:           cfg.BatchTimeout,
			WriteTimeout:           cfg.WriteTimeout,
			MaxAttempts:            3,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		brokers: cfg.Brokers,
		dialer:  &kafka.Dialer{Timeout: 5 * time.Second},
		logger:  slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish encodes event and writes it synchronously.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return fmt.Errorf("encoding %q event: %w", event.Key, err)
	}
	msg := kafka.Message{
		Key:     []byte(event.Key),
		Value:   value,
		Headers: []kafka.Header{{Key: "content-type", Value: []byte(contentTypeJSON)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing %q event: %w", event.Key, err)
	}
	p.logger.Debug("event published", "key", event.Key, "bytes", len(value))
	return nil
}

// Ping succeeds when any configured broker accepts a connection.
func (p *Producer) Ping(ctx context.Context) error {
	var errs []error
	for _, broker := range p.brokers {
		conn, err := p.dialer.DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn.Close()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return errors.New("no kafka brokers configured")
	}
	return fmt.Errorf("no kafka broker reachable: %w", errors.Join(errs...))
}

// Close flushes pending writes and logs the writer's lifetime totals.
func (p *Producer) Close() error {
	stats := p.writer.Stats()
	p.logger.Info("kafka producer closing", "messages", stats.Messages, "errors", stats.Errors)
	return p.writer.Close()
}
