package events

import (
	"context"
	"log/slog"
	"time"

	"rumbo/pkg/requestcontext"
)

// Publisher hands lifecycle events to the background worker over a buffered
// channel. Emit never blocks: when the buffer is full the event is dropped
// and logged, because no booking operation should stall on the stream.
type Publisher struct {
	outbox chan<- Event
	logger *slog.Logger
}

func NewPublisher(outbox chan<- Event, logger *slog.Logger) *Publisher {
	return &Publisher{outbox: outbox, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	select {
	case p.outbox <- event:
	default:
		p.logger.Warn("event buffer full, dropping lifecycle event",
			slog.String("type", string(event.Type)),
			slog.String("booking_id", event.BookingID.String()),
		)
	}
}

// Worker drains the outbox into the configured sink. Sink failures are
// logged and the event dropped; the stream is best-effort, the audit log in
// the database is the durable record.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.publish(ctx, event)
		}
	}
}

// drain flushes whatever is already buffered at shutdown, with a short
// deadline so termination is never held hostage by a dead broker.
func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-w.inbox:
			w.publish(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) publish(ctx context.Context, event Event) {
	if err := w.sink.Publish(ctx, event); err != nil {
		w.logger.Error("publishing lifecycle event failed",
			slog.String("type", string(event.Type)),
			slog.String("booking_id", event.BookingID.String()),
			slog.Any("error", err),
		)
	}
}
