package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/sales-dialer/internal/domain"
	"github.com/acme/sales-dialer/pkg/logger"
)

type memoryWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *memoryWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memoryWriter) Close() error { return nil }

func (w *memoryWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

func (w *memoryWriter) decoded(t *testing.T) []EventMessage {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]EventMessage, 0, len(w.msgs))
	for _, m := range w.msgs {
		ev, err := DecodeEvent(m.Value)
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func TestEventPublisherWritesEventsInOrder(t *testing.T) {
	runID := uuid.New()
	w := &memoryWriter{}
	p := NewEventPublisher(w, func() uuid.UUID { return runID }, 16, logger.NewNop())

	target := domain.DialTarget{ID: 7, Name: "Li", Phone: "13800000007", Level: domain.Level("a")}
	p.OnDialStart(target)
	p.OnDialComplete(target, true)
	p.OnStatusUpdate(domain.StatusSnapshot{TotalCount: 1, CurrentIndex: 1, SuccessCount: 1, IsRunning: true})
	p.OnQueueComplete([]domain.DialTarget{target})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx, time.Second)
	}()

	require.Eventually(t, func() bool { return w.count() == 4 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	events := w.decoded(t)
	kinds := []EventKind{events[0].Kind, events[1].Kind, events[2].Kind, events[3].Kind}
	assert.Equal(t, []EventKind{EventDialStart, EventDialComplete, EventStatus, EventQueueComplete}, kinds)
	for _, ev := range events {
		assert.Equal(t, runID, ev.RunID)
	}
	require.NotNil(t, events[1].Succeeded)
	assert.True(t, *events[1].Succeeded)
	assert.Equal(t, int64(7), events[1].Target.ID)
	assert.Equal(t, 1, events[2].Status.SuccessCount)
	require.Len(t, events[3].Results, 1)
	assert.Equal(t, target, events[3].Results[0].Domain())
}

func TestEventPublisherDropsWhenBufferFull(t *testing.T) {
	w := &memoryWriter{}
	p := NewEventPublisher(w, uuid.New, 1, logger.NewNop())

	p.OnError("first")
	p.OnError("second")

	require.Len(t, p.events, 1)
	ev := <-p.events
	assert.Equal(t, "first", ev.Error)
}

func TestEventPublisherFlushesOnShutdown(t *testing.T) {
	w := &memoryWriter{}
	p := NewEventPublisher(w, uuid.New, 8, logger.NewNop())
	p.OnError("boom")
	p.OnError("again")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx, time.Second))
	assert.Equal(t, 2, w.count())
}

func TestEventPublisherKeepsRunningOnWriteError(t *testing.T) {
	w := &memoryWriter{err: errors.New("broker down")}
	p := NewEventPublisher(w, uuid.New, 8, logger.NewNop())
	p.OnError("lost")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return len(p.events) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
