package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/acme/sales-dialer/internal/domain"
	"github.com/acme/sales-dialer/pkg/logger"
)

// MessageWriter is the subset of kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher forwards dialer notifications to Kafka. It implements the
// dialer listener contract without blocking the scheduler: events are
// buffered and written by Run. When the buffer is full the event is dropped.
type EventPublisher struct {
	writer MessageWriter
	runID  func() uuid.UUID
	log    *logger.Logger
	events chan EventMessage
	now    func() time.Time
}

// NewEventPublisher constructs a publisher. runID reports the run an event
// belongs to at the moment it is raised.
func NewEventPublisher(writer MessageWriter, runID func() uuid.UUID, buffer int, log *logger.Logger) *EventPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &EventPublisher{
		writer: writer,
		runID:  runID,
		log:    log.Named("event_publisher"),
		events: make(chan EventMessage, buffer),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewKafkaEventPublisher wires a publisher to the configured event topic.
func NewKafkaEventPublisher(k *Kafka, runID func() uuid.UUID, buffer int, log *logger.Logger) *EventPublisher {
	return NewEventPublisher(k.NewWriter(k.EventTopic()), runID, buffer, log)
}

func (p *EventPublisher) OnDialStart(target domain.DialTarget) {
	payload := NewTargetPayload(target)
	p.enqueue(EventMessage{Kind: EventDialStart, Target: &payload})
}

func (p *EventPublisher) OnDialComplete(target domain.DialTarget, succeeded bool) {
	payload := NewTargetPayload(target)
	p.enqueue(EventMessage{Kind: EventDialComplete, Target: &payload, Succeeded: &succeeded})
}

func (p *EventPublisher) OnQueueComplete(results []domain.DialTarget) {
	payloads := make([]TargetPayload, 0, len(results))
	for _, t := range results {
		payloads = append(payloads, NewTargetPayload(t))
	}
	p.enqueue(EventMessage{Kind: EventQueueComplete, Results: payloads})
}

func (p *EventPublisher) OnError(message string) {
	p.enqueue(EventMessage{Kind: EventError, Error: message})
}

func (p *EventPublisher) OnStatusUpdate(status domain.StatusSnapshot) {
	p.enqueue(EventMessage{Kind: EventStatus, Status: &status})
}

func (p *EventPublisher) enqueue(msg EventMessage) {
	msg.EventID = uuid.New()
	msg.RunID = p.runID()
	msg.OccurredAt = p.now()

	select {
	case p.events <- msg:
	default:
		p.log.Warn("event buffer full, dropping event",
			zap.String("kind", string(msg.Kind)),
			zap.String("run_id", msg.RunID.String()))
	}
}

// Run writes buffered events until ctx is cancelled, then flushes whatever is
// still buffered using flushTimeout.
func (p *EventPublisher) Run(ctx context.Context, flushTimeout time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			p.flush(flushTimeout)
			return nil
		case msg := <-p.events:
			if err := p.publish(ctx, msg); err != nil {
				p.log.Error("failed to publish dial event", zap.Error(err), zap.String("kind", string(msg.Kind)))
			}
		}
	}
}

func (p *EventPublisher) flush(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case msg := <-p.events:
			if err := p.publish(ctx, msg); err != nil {
				p.log.Warn("dropping dial event during shutdown", zap.Error(err))
				return
			}
		default:
			return
		}
	}
}

func (p *EventPublisher) publish(ctx context.Context, msg EventMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("event publisher: marshal message: %w", err)
	}
	record := kafka.Message{
		Key:   []byte(msg.RunID.String()),
		Value: value,
		Time:  msg.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("event publisher: write message: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *EventPublisher) Close() error {
	return p.writer.Close()
}

// DecodeEvent parses a Kafka record produced by the publisher.
func DecodeEvent(value []byte) (EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return EventMessage{}, fmt.Errorf("decode dial event: %w", err)
	}
	return msg, nil
}
