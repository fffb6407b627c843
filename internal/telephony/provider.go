package telephony

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acme/sales-dialer/internal/dialer"
)

// Outcome classifies what the bridge reported for a call attempt.
type Outcome string

const (
	OutcomeInitiated Outcome = "initiated"
	OutcomeRejected  Outcome = "rejected"
)

// Result captures the outcome of a telephony attempt.
type Result struct {
	Outcome  Outcome
	Duration time.Duration
	Error    string
}

// Provider abstracts the telephony integration that actually starts a call.
type Provider interface {
	Name() string
	PlaceCall(ctx context.Context, phoneNumber string) (Result, error)
}

// ErrRejected is returned when the bridge refused to initiate the call.
var ErrRejected = errors.New("telephony: call rejected")

// AsCaller adapts a provider to the dialer's call capability. Each attempt is
// bounded by timeout when it is positive.
func AsCaller(p Provider, timeout time.Duration) dialer.Caller {
	return dialer.CallerFunc(func(ctx context.Context, phoneNumber string) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		res, err := p.PlaceCall(ctx, phoneNumber)
		if err != nil {
			return fmt.Errorf("telephony: %s: %w", p.Name(), err)
		}
		if res.Outcome != OutcomeInitiated {
			if res.Error != "" {
				return fmt.Errorf("%w: %s", ErrRejected, res.Error)
			}
			return ErrRejected
		}
		return nil
	})
}
