package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/tablekeeper/libs/kafkax"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox records handled event ids; Record returns false for a redelivery.
type Inbox interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
}

type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
}

type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	inbox   Inbox
	handler Handler
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    1 << 20,
	})
	return &Consumer{reader: reader, logger: logger, inbox: inbox, handler: handler}
}

// Run fetches until ctx is cancelled. Offsets are committed after each message whether or not the
// handler succeeded; a failed invalidation is bounded by the cache TTL.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	backoff := time.Second
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch failed", "err", err, "retry_in", backoff.String())
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		if err := c.Process(ctx, msg); err != nil {
			c.logger.Error("event not handled", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Warn("offset commit failed", "err", err, "topic", msg.Topic)
		}
	}
}

// Process dedupes msg through the inbox and then runs the handler. The handler is skipped when
// the inbox cannot be written.
func (c *Consumer) Process(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer("availability/consumer").Start(kafkax.ExtractTraceContext(ctx, msg), "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID == "" {
		err := errors.New("message has no event id")
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if c.inbox != nil {
		fresh, err := c.inbox.Record(ctx, meta.EventID, meta.EventType)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if !fresh {
			c.logger.Debug("duplicate event skipped", "event_id", meta.EventID, "event_type", meta.EventType)
			return nil
		}
	}

	if err := c.handler(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
