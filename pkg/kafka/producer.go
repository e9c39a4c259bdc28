package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/minhct/gh-event-pipeline/cfg"
	"github.com/minhct/gh-event-pipeline/pkg/log"
	"github.com/segmentio/kafka-go"
)

// Producer handles Kafka message publishing. Publish stages messages in
// memory without touching the network; Flush delivers everything staged
// within a bounded timeout. Per-message delivery failures are logged and
// dropped, the broker client retries transport errors internally.
type Producer struct {
	Config  *cfg.Config
	Logger  log.Logger
	writer  *kafka.Writer
	mu      sync.Mutex
	pending []kafka.Message
}

// NewProducer creates and returns a new Kafka Producer
func NewProducer(config *cfg.Config, logger log.Logger, topic string) *Producer {
	brokers := config.Kafka.BrokerList()
	if len(brokers) == 0 {
		panic("no kafka brokers configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // same key, same partition: per-repo ordering
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
	}

	return &Producer{
		Config: config,
		Logger: logger,
		writer: writer,
	}
}

// Publish stages a message for the next Flush. It never blocks on the network.
func (p *Producer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonBytes,
		Time:  time.Now(),
	}

	p.mu.Lock()
	p.pending = append(p.pending, msg)
	p.mu.Unlock()

	return nil
}

// Flush writes all staged messages to the topic, waiting at most the
// configured flush timeout.
func (p *Producer) Flush(ctx context.Context) error {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	wctx, cancel := context.WithTimeout(ctx, time.Duration(p.Config.Kafka.FlushTimeout)*time.Second)
	defer cancel()

	err := p.writer.WriteMessages(wctx, batch...)
	if err == nil {
		return nil
	}

	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		for i, werr := range writeErrs {
			if werr != nil {
				p.Logger.Error(ctx, "Failed to deliver message with key %s: %v", string(batch[i].Key), werr)
			}
		}
		return nil
	}

	return fmt.Errorf("failed to flush %d messages to kafka: %w", len(batch), err)
}

// Close closes the Kafka writer
func (p *Producer) Close() error {
	return p.writer.Close()
}
