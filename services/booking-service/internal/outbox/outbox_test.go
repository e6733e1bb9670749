package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/repbook/libs/kafkax"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
	"github.com/segmentio/kafka-go"
)

type sliceSource struct {
	pending   []Record
	published []Record
}

func (s *sliceSource) Drain(_ context.Context, limit int, fn func([]Record) error) (int, error) {
	n := len(s.pending)
	if n > limit {
		n = limit
	}
	if n == 0 {
		return 0, nil
	}
	batch := s.pending[:n]
	if err := fn(batch); err != nil {
		return 0, err
	}
	s.published = append(s.published, batch...)
	s.pending = s.pending[n:]
	return n, nil
}

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestAppointmentEventPayload(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	evt, err := AppointmentEvent(model.Appointment{
		ID: "a-1", RequesterID: "u-1", ProviderID: "rep-1",
		RequestedDate: "2026-03-02", RequestedTime: "09:30",
		Status: model.StatusRejected, RejectionReason: "out of office", UpdatedAt: at,
	})
	if err != nil {
		t.Fatalf("AppointmentEvent: %v", err)
	}
	if evt.EventType != AppointmentRejected || evt.AggregateID != "a-1" {
		t.Fatalf("unexpected event %+v", evt)
	}
	var body map[string]any
	if err := json.Unmarshal(evt.Payload, &body); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if body["rejection_reason"] != "out of office" || body["status"] != "rejected" {
		t.Fatalf("unexpected payload %v", body)
	}
}

func TestPublisherBatches(t *testing.T) {
	src := &sliceSource{}
	for i := 0; i < 3; i++ {
		src.pending = append(src.pending, NewRecord(context.Background(), Event{
			AggregateType: "appointment", AggregateID: "a-1", EventType: AppointmentRequested, Payload: []byte(`{}`),
		}, time.Now()))
	}
	w := &captureWriter{}
	p := NewPublisher(src, w, slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{BatchSize: 2})

	n, err := p.PublishBatch(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("first batch: n=%d err=%v", n, err)
	}
	if w.msgs[0].Topic != AppointmentRequested || string(w.msgs[0].Key) != "a-1" {
		t.Fatalf("unexpected message %+v", w.msgs[0])
	}
	if kafkax.HeaderValue(w.msgs[0].Headers, "event_id") == "" {
		t.Fatal("event_id header missing")
	}

	w.err = errors.New("broker down")
	if _, err := p.PublishBatch(context.Background()); err == nil {
		t.Fatal("expected writer error")
	}
	if len(src.pending) != 1 {
		t.Fatalf("failed batch must stay pending, got %d", len(src.pending))
	}
}
