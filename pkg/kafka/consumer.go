package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/minhct/gh-event-pipeline/cfg"
	"github.com/minhct/gh-event-pipeline/pkg/log"
	"github.com/segmentio/kafka-go"
)

// Consumer handles Kafka message consumption with manual offset control.
// Offsets advance only through Commit, so a crash before Commit replays
// the uncommitted messages on restart.
type Consumer struct {
	Config *cfg.Config
	Logger log.Logger
	reader *kafka.Reader
}

// NewConsumer creates and returns a new Kafka Consumer
func NewConsumer(config *cfg.Config, logger log.Logger, topic, groupID string) *Consumer {
	brokers := config.Kafka.BrokerList()
	if len(brokers) == 0 {
		panic("no kafka brokers configured")
	}

	startOffset := kafka.FirstOffset
	if config.Kafka.OffsetReset == "latest" {
		startOffset = kafka.LastOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,        // 10MB
		MaxWait:        time.Second, // Maximum amount of time to wait for new data
		StartOffset:    startOffset,
		RetentionTime:  7 * 24 * time.Hour, // 1 week
		CommitInterval: 0,                  // synchronous commits only
	})

	return &Consumer{
		Config: config,
		Logger: logger,
		reader: reader,
	}
}

// FetchBatch reads up to max messages, waiting at most wait overall. An
// empty slice with a nil error means the wait elapsed with nothing queued.
func (c *Consumer) FetchBatch(ctx context.Context, max int, wait time.Duration) ([]kafka.Message, error) {
	fctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	msgs := make([]kafka.Message, 0, max)
	for len(msgs) < max {
		message, err := c.reader.FetchMessage(fctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return msgs, nil
			}
			return msgs, err
		}
		msgs = append(msgs, message)
	}
	return msgs, nil
}

// Commit marks the given messages as processed for the consumer group.
func (c *Consumer) Commit(ctx context.Context, msgs ...kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return c.reader.CommitMessages(ctx, msgs...)
}

// Close closes the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
