package status

import (
	"context"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/sales-dialer/internal/domain"
	"github.com/acme/sales-dialer/internal/queue"
	"github.com/acme/sales-dialer/internal/repository"
	"github.com/acme/sales-dialer/pkg/logger"
)

// invalidPhoneReason is recorded for targets failed without dialing.
const invalidPhoneReason = "invalid phone number"

// MessageReader is the subset of kafka.Reader used by the worker.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Worker consumes dial events and records attempt history and live status.
type Worker struct {
	reader   MessageReader
	attempts repository.AttemptStore
	statuses repository.StatusCache
	log      *logger.Logger
	tracer   trace.Tracer

	// lastError holds a run's error event until the next event for that run.
	// A failed dial is always reported as error then dial_complete.
	lastError map[uuid.UUID]string
}

// New creates a new status worker.
func New(reader MessageReader, attempts repository.AttemptStore, statuses repository.StatusCache, log *logger.Logger) *Worker {
	return &Worker{
		reader:    reader,
		attempts:  attempts,
		statuses:  statuses,
		log:       log.Named("status_worker"),
		tracer:    otel.Tracer("dialer.statusworker"),
		lastError: make(map[uuid.UUID]string),
	}
}

// Run processes events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer w.reader.Close()

	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("status worker: fetch", zap.Error(err))
			continue
		}

		w.handle(ctx, msg)

		if err := w.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("status worker: commit", zap.Error(err))
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg kafka.Message) {
	event, err := queue.DecodeEvent(msg.Value)
	if err != nil {
		w.log.Error("status worker: unmarshal", zap.Error(err))
		return
	}

	sctx, span := w.tracer.Start(ctx, "dialer.event", trace.WithAttributes(
		attribute.String("run.id", event.RunID.String()),
		attribute.String("event.kind", string(event.Kind)),
	))
	defer span.End()

	if err := w.apply(sctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.log.Error("status worker: apply event",
			zap.Error(err),
			zap.String("kind", string(event.Kind)),
			zap.String("run_id", event.RunID.String()))
	}
}

func (w *Worker) apply(ctx context.Context, event queue.EventMessage) error {
	reason := w.lastError[event.RunID]
	delete(w.lastError, event.RunID)

	switch event.Kind {
	case queue.EventError:
		w.lastError[event.RunID] = event.Error
		return nil
	case queue.EventDialComplete:
		return w.recordAttempt(ctx, event, reason)
	case queue.EventStatus:
		if event.Status == nil {
			return nil
		}
		return w.statuses.PutStatus(ctx, event.RunID, *event.Status)
	default:
		return nil
	}
}

func (w *Worker) recordAttempt(ctx context.Context, event queue.EventMessage, reason string) error {
	if event.Target == nil || event.Succeeded == nil {
		return nil
	}
	target := event.Target.Domain()

	attempt := domain.DialAttempt{
		ID:         event.EventID,
		RunID:      event.RunID,
		TargetID:   target.ID,
		Phone:      target.Phone,
		Succeeded:  *event.Succeeded,
		OccurredAt: event.OccurredAt,
	}
	if !attempt.Succeeded {
		switch {
		case !target.HasValidPhone():
			attempt.Error = invalidPhoneReason
		case reason != "":
			attempt.Error = reason
		default:
			attempt.Error = "skipped"
		}
	}

	return w.attempts.AppendAttempt(ctx, attempt)
}
