package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/config"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/events"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
)

// Header keys set on every produced message.
const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
	HeaderReason    = "dead_letter_reason"
	HeaderAttempts  = "dead_letter_attempts"
)

// MessageWriter is the subset of *kgo.Writer used by Producer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// NewWriter returns a writer that hashes message keys onto partitions and
// waits for all in-sync replicas.
func NewWriter(cfg config.KafkaConfig) *kgo.Writer {
	return &kgo.Writer{
		Addr:         kgo.TCP(cfg.Brokers...),
		Balancer:     &kgo.Hash{},
		RequiredAcks: kgo.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// Producer publishes envelopes to the topic of their event family.
type Producer struct {
	writer  MessageWriter
	topics  Topics
	timeout time.Duration
	logger  *slog.Logger
}

var (
	_ events.Publisher      = (*Producer)(nil)
	_ events.DeadLetterSink = (*Producer)(nil)
)

// NewProducer creates a Producer on top of writer.
func NewProducer(writer MessageWriter, topics Topics, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		writer:  writer,
		topics:  topics,
		timeout: 10 * time.Second,
		logger:  logger.With(slog.String("component", "kafka_producer")),
	}
}

// Publish implements events.Publisher.
func (p *Producer) Publish(ctx context.Context, env *events.Envelope) error {
	topic, err := p.topics.For(env.Name())
	if err != nil {
		return err
	}
	raw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal envelope %s: %w", env.ID, err)
	}

	msg := kgo.Message{
		Topic: topic,
		Key:   []byte(env.Key),
		Value: raw,
		Time:  env.Timestamp,
		Headers: []kgo.Header{
			{Key: HeaderEventID, Value: []byte(env.ID.String())},
			{Key: HeaderEventType, Value: []byte(env.Type)},
		},
	}
	if err := p.write(ctx, msg); err != nil {
		logger.FromContextOrDefault(ctx, p.logger).Error("failed to publish event",
			slog.String("error", err.Error()),
			slog.String("event_id", env.ID.String()),
			slog.String("topic", topic))
		return fmt.Errorf("failed to publish event %s: %w", env.ID, err)
	}
	return nil
}

// DeadLetter implements events.DeadLetterSink by writing the original
// payload to the dead-letter topic.
func (p *Producer) DeadLetter(ctx context.Context, dl events.DeadLetter) error {
	if p.topics.DeadLetter == "" {
		return fmt.Errorf("no dead-letter topic configured")
	}
	msg := kgo.Message{
		Topic: p.topics.DeadLetter,
		Key:   []byte(dl.Key),
		Value: dl.Payload,
		Time:  dl.FailedAt,
		Headers: []kgo.Header{
			{Key: HeaderEventID, Value: []byte(dl.EventID)},
			{Key: HeaderEventType, Value: []byte(dl.EventType)},
			{Key: HeaderReason, Value: []byte(dl.Reason)},
			{Key: HeaderAttempts, Value: []byte(strconv.Itoa(dl.Attempts))},
		},
	}
	return p.write(ctx, msg)
}

func (p *Producer) write(ctx context.Context, msg kgo.Message) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
