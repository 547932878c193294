package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// ErrProducerClosed is returned when exporting on a closed producer.
var ErrProducerClosed = errors.New("producer is closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer exports ticket lifecycle events to a topic. Without brokers it is
// a no-op, so the service runs the same with or without Kafka.
type Producer struct {
	writer messageWriter
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// NewProducer builds a producer from config. Writes are asynchronous; failed
// batches are logged, never surfaced to the request that caused them.
func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Producer{logger: logger}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		logger.Info("kafka export disabled")
		return p
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Warn("kafka export failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	logger.Info("kafka export enabled", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return p
}

// Enabled reports whether events leave the process.
func (p *Producer) Enabled() bool {
	return p.writer != nil
}

// Export writes one event keyed by ticket id so a ticket's events stay in
// one partition, in order.
func (p *Producer) Export(ctx context.Context, event events.Event) error {
	if p.writer == nil {
		return nil
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrProducerClosed
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(event.TicketID),
		Value: body,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil || p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
