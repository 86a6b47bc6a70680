package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kgo "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/config"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/events"
)

// MessageReader is the subset of *kgo.Reader used by Consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kgo.Message, error)
	CommitMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// NewReader returns a consumer-group reader for topic. Offsets are
// committed explicitly by Consumer.
func NewReader(cfg config.KafkaConfig, topic, group string) *kgo.Reader {
	return kgo.NewReader(kgo.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        group,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kgo.FirstOffset,
	})
}

// Consumer feeds messages from one reader into an event processor.
type Consumer struct {
	reader    MessageReader
	processor events.MessageProcessor
	logger    *slog.Logger
}

// NewConsumer creates a Consumer.
func NewConsumer(reader MessageReader, processor events.MessageProcessor, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		reader:    reader,
		processor: processor,
		logger:    logger.With(slog.String("component", "kafka_consumer")),
	}
}

// Run consumes until ctx is cancelled. A message is committed once the
// processor returns nil. If the processor fails, Run returns without
// committing so that the message is redelivered after a restart.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("failed to close reader", slog.String("error", err.Error()))
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := c.processor.Process(ctx, string(msg.Key), msg.Value); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("message processing failed, stopping consumer",
				slog.String("topic", msg.Topic),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()))
			return err
		}

		if err := c.commit(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) commit(ctx context.Context, msg kgo.Message) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.reader.CommitMessages(ctx, msg)
}

// Group runs several consumers of one consumer group together.
type Group struct {
	consumers []*Consumer
}

// NewGroup creates count consumers for group on topic, all sharing processor.
func NewGroup(cfg config.KafkaConfig, topic, group string, count int, processor events.MessageProcessor, logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Group{}
	for i := 0; i < count; i++ {
		g.consumers = append(g.consumers, NewConsumer(NewReader(cfg, topic, group), processor,
			logger.With(slog.String("consumer_group", group), slog.Int("member", i))))
	}
	return g
}

// NewGroupFromConsumers groups existing consumers.
func NewGroupFromConsumers(consumers ...*Consumer) *Group {
	return &Group{consumers: consumers}
}

// Run runs every member until ctx is cancelled or one of them fails.
func (g *Group) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, c := range g.consumers {
		c := c
		eg.Go(func() error { return c.Run(ctx) })
	}
	return eg.Wait()
}
