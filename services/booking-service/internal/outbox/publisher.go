package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/repbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/repbook/libs/otel"
	"github.com/segmentio/kafka-go"
)

// Source hands out unpublished records. Drain marks the batch published only
// when fn returns nil.
type Source interface {
	Drain(ctx context.Context, limit int, fn func([]Record) error) (int, error)
}

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Publisher struct {
	source    Source
	writer    Writer
	logger    *slog.Logger
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(source Source, writer Writer, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		source:    source,
		writer:    writer,
		logger:    logger,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if p.writer == nil {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PublishBatch(ctx)
			if err != nil {
				p.logger.Error("outbox publish failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Debug("outbox batch published", "count", n)
			}
		}
	}
}

// PublishBatch sends one batch and returns how many records went out.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	return p.source.Drain(ctx, p.batchSize, func(records []Record) error {
		msgs := make([]kafka.Message, 0, len(records))
		for _, r := range records {
			msgs = append(msgs, Message(ctx, r))
		}
		return p.writer.WriteMessages(ctx, msgs...)
	})
}

// Message converts a record to a Kafka message keyed by aggregate id, carrying
// the trace context captured when the record was written.
func Message(ctx context.Context, r Record) kafka.Message {
	msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
	msg := kafka.Message{
		Topic: r.EventType,
		Key:   []byte(r.AggregateID),
		Value: r.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(r.EventID)},
			{Key: "event_type", Value: []byte(r.EventType)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}
