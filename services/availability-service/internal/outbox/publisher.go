package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/tablekeeper/libs/db"
	"github.com/md-rashed-zaman/tablekeeper/libs/kafkax"
	otelx "github.com/md-rashed-zaman/tablekeeper/libs/otel"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type PublisherConfig struct {
	Brokers   []string
	PollEvery time.Duration
	BatchSize int
}

// Publisher relays committed outbox rows to Kafka, one topic per event type, keyed by reservation
// id so all events of a reservation land on one partition. Delivery is at least once.
type Publisher struct {
	pool   *db.Pool
	repo   *Repository
	logger *slog.Logger
	cfg    PublisherConfig
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{pool: pool, repo: repo, logger: logger, cfg: cfg}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.cfg.Brokers) == 0 {
		p.logger.Warn("outbox publisher has no brokers; not starting")
		return
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           20 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	ticker := time.NewTicker(p.cfg.PollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := p.Drain(ctx, writer); err != nil {
				p.logger.Error("outbox publish failed", "err", err, "published", n)
			} else if n > 0 {
				p.logger.Debug("outbox drained", "published", n)
			}
		}
	}
}

// Drain publishes batches until one comes back short, so a backlog does not wait a tick per batch.
func (p *Publisher) Drain(ctx context.Context, writer MessageWriter) (int, error) {
	total := 0
	for {
		n, err := p.publishBatch(ctx, writer)
		total += n
		if err != nil || n < p.cfg.BatchSize {
			return total, err
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, writer MessageWriter) (int, error) {
	var published int
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		records, err := p.repo.FetchUnpublished(ctx, tx, p.cfg.BatchSize)
		if err != nil || len(records) == 0 {
			return err
		}
		msgs := make([]kafka.Message, len(records))
		ids := make([]int64, len(records))
		for i, r := range records {
			msgs[i] = Message(ctx, r)
			ids[i] = r.ID
		}
		if err := writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write %d messages: %w", len(msgs), err)
		}
		published = len(records)
		return p.repo.MarkPublished(ctx, tx, ids)
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}

// Message builds the Kafka message for a record, restoring the trace context it was written in.
func Message(ctx context.Context, r Record) kafka.Message {
	msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
	msg := kafka.Message{
		Topic: r.EventType,
		Key:   []byte(r.AggregateID),
		Value: r.Payload,
		Headers: []kafka.Header{
			{Key: kafkax.HeaderEventID, Value: []byte(r.EventID)},
			{Key: kafkax.HeaderEventType, Value: []byte(r.EventType)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}
