package mock

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/acme/sales-dialer/internal/config"
	"github.com/acme/sales-dialer/internal/telephony"
)

// Provider simulates a call bridge that accepts or rejects dial requests.
type Provider struct {
	successRate float64
	maxLatency  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewProvider constructs a mock provider seeded from the wall clock.
func NewProvider(cfg config.CallBridgeConfig) *Provider {
	return NewSeeded(cfg, time.Now().UnixNano())
}

// NewSeeded constructs a mock provider with deterministic randomness.
func NewSeeded(cfg config.CallBridgeConfig, seed int64) *Provider {
	rate := cfg.SuccessRate
	if rate <= 0 || rate > 1 {
		rate = 0.8
	}
	return &Provider{
		successRate: rate,
		maxLatency:  200 * time.Millisecond,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Name identifies the provider in logs and errors.
func (p *Provider) Name() string {
	return "mock"
}

// PlaceCall simulates handing the number to a dialer.
func (p *Provider) PlaceCall(ctx context.Context, phoneNumber string) (telephony.Result, error) {
	p.mu.Lock()
	latency := time.Duration(p.rng.Int63n(int64(p.maxLatency) + 1))
	accepted := p.rng.Float64() <= p.successRate
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return telephony.Result{Outcome: telephony.OutcomeRejected, Error: ctx.Err().Error()}, ctx.Err()
	case <-time.After(latency):
	}

	if accepted {
		return telephony.Result{Outcome: telephony.OutcomeInitiated, Duration: latency}, nil
	}
	return telephony.Result{Outcome: telephony.OutcomeRejected, Duration: latency, Error: "simulated rejection"}, nil
}
