package booking

import (
	"context"
	"log/slog"
	"time"

	otelx "github.com/md-rashed-zaman/repbook/libs/otel"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Service owns availability, slot derivation, booking arbitration and the
// appointment state machine. All writes go through one store transaction.
type Service struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer
}

type Option func(*Service)

// WithClock overrides the time source used for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store storage.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		tracer: otelx.Tracer("booking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// finish records the outcome of a write on span and ends it.
func finish(span trace.Span, res Result, err error) {
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case !res.Success:
		span.SetAttributes(attribute.String("booking.refusal", string(res.Kind)))
	}
	span.End()
}
