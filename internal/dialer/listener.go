package dialer

import (
	"context"

	"github.com/acme/sales-dialer/internal/domain"
)

// Caller places a single outbound call. A nil error means the call was
// initiated; the scheduler never looks at call duration or carrier outcome.
type Caller interface {
	PlaceCall(ctx context.Context, phoneNumber string) error
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, phoneNumber string) error

// PlaceCall calls f.
func (f CallerFunc) PlaceCall(ctx context.Context, phoneNumber string) error {
	return f(ctx, phoneNumber)
}

// Listener observes a dial run. Callbacks are fire-and-forget and are invoked
// after the scheduler has released its lock, so they may call back into it.
type Listener interface {
	OnDialStart(target domain.DialTarget)
	OnDialComplete(target domain.DialTarget, succeeded bool)
	// OnQueueComplete receives the run's working copies with updated contact
	// bookkeeping.
	OnQueueComplete(results []domain.DialTarget)
	OnError(message string)
	OnStatusUpdate(status domain.StatusSnapshot)
}

// NopListener ignores every notification. Embed it to implement a subset.
type NopListener struct{}

func (NopListener) OnDialStart(domain.DialTarget)          {}
func (NopListener) OnDialComplete(domain.DialTarget, bool) {}
func (NopListener) OnQueueComplete([]domain.DialTarget)    {}
func (NopListener) OnError(string)                         {}
func (NopListener) OnStatusUpdate(domain.StatusSnapshot)   {}

// Listeners fans every notification out to each member in order.
type Listeners []Listener

func (ls Listeners) OnDialStart(target domain.DialTarget) {
	for _, l := range ls {
		l.OnDialStart(target)
	}
}

func (ls Listeners) OnDialComplete(target domain.DialTarget, succeeded bool) {
	for _, l := range ls {
		l.OnDialComplete(target, succeeded)
	}
}

func (ls Listeners) OnQueueComplete(results []domain.DialTarget) {
	for _, l := range ls {
		l.OnQueueComplete(results)
	}
}

func (ls Listeners) OnError(message string) {
	for _, l := range ls {
		l.OnError(message)
	}
}

func (ls Listeners) OnStatusUpdate(status domain.StatusSnapshot) {
	for _, l := range ls {
		l.OnStatusUpdate(status)
	}
}
