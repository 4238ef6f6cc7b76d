package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"handoff-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// HeaderEventType carries the event type so consumers can route without
// decoding the body.
const HeaderEventType = "event-type"

type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{writer: writer, logger: util.GetLogger()}
}

// PublishEvent publishes an event keyed so that events of one store land on
// one partition in order.
func (p *Producer) PublishEvent(ctx context.Context, key, eventType string, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   eventBytes,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte(eventType)}},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	p.logger.Debug("Published event", zap.String("key", key), zap.String("event_type", eventType))
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer represents a Kafka consumer
type Consumer struct {
	reader *kafka.Reader
	logger *zap.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{reader: reader, logger: util.GetLogger()}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler is a function type for handling messages
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// ErrMalformed marks a message that can never be handled. Consumers skip it
// instead of retrying.
var ErrMalformed = errors.New("malformed message")

// Backoff bounds the delay between attempts at one message.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff is used by workers that do not override it.
var DefaultBackoff = Backoff{Initial: 200 * time.Millisecond, Max: 30 * time.Second}

func (b Backoff) next(d time.Duration) time.Duration {
	if d <= 0 {
		return b.Initial
	}
	d *= 2
	if d > b.Max {
		return b.Max
	}
	return d
}

// Retry wraps handler so a failing message is retried with exponential
// backoff until it succeeds, ctx is done, or the failure is ErrMalformed.
// Offsets are per partition, so moving on would commit past the failure.
func Retry(handler MessageHandler, backoff Backoff) MessageHandler {
	logger := util.GetLogger()
	return func(ctx context.Context, msg kafka.Message) error {
		var delay time.Duration
		for attempt := 1; ; attempt++ {
			err := handler(ctx, msg)
			if err == nil || errors.Is(err, ErrMalformed) {
				return err
			}

			delay = backoff.next(delay)
			logger.Warn("Handler failed, retrying",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
}

// settle decides what happens to a fetched message after its handler ran:
// commit it, or stop consuming with the returned error. Only success and
// ErrMalformed commit; any other failure leaves the offset uncommitted so the
// message is fetched again after a restart or rebalance.
func settle(ctx context.Context, msg kafka.Message, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrMalformed):
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	default:
		return false, fmt.Errorf("handle message at partition %d offset %d: %w", msg.Partition, msg.Offset, err)
	}
}

// StartConsuming fetches messages until ctx is cancelled or a handler fails.
// Wrap the handler with Retry to ride out transient failures.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Starting Kafka consumer", zap.String("topic", c.reader.Config().Topic))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				c.logger.Info("Consumer context cancelled, stopping")
				return ctx.Err()
			}
			c.logger.Error("Error fetching message", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		handleErr := handler(ctx, msg)
		commit, stopErr := settle(ctx, msg, handleErr)
		if handleErr != nil && commit {
			c.logger.Error("Skipping malformed message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(handleErr))
		}
		if !commit {
			return stopErr
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Error committing message", zap.Error(err))
		}
	}
}
