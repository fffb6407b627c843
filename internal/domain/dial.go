package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Strategy is the ordering rule applied to a queue before a run begins.
type Strategy string

const (
	StrategyPriority Strategy = "priority"
	StrategyTime     Strategy = "time"
	StrategyRandom   Strategy = "random"
)

// ParseStrategy resolves a strategy name, case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown dial strategy %q", name)
	}
	return s, nil
}

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyPriority, StrategyTime, StrategyRandom:
		return true
	default:
		return false
	}
}

// StatusSnapshot is a point-in-time readout of run progress.
type StatusSnapshot struct {
	TotalCount    int   `json:"total_count"`
	CurrentIndex  int   `json:"current_index"`
	SuccessCount  int   `json:"success_count"`
	FailedCount   int   `json:"failed_count"`
	IsPaused      bool  `json:"is_paused"`
	IsRunning     bool  `json:"is_running"`
	ElapsedMillis int64 `json:"elapsed_ms"`
}

// Progress renders the snapshot as a one-line progress summary.
func (s StatusSnapshot) Progress() string {
	return fmt.Sprintf("progress: %d/%d | success: %d | failed: %d",
		s.CurrentIndex, s.TotalCount, s.SuccessCount, s.FailedCount)
}

// State names the run phase the snapshot was taken in.
func (s StatusSnapshot) State() string {
	switch {
	case s.IsPaused:
		return "paused"
	case s.IsRunning:
		return "running"
	default:
		return "idle"
	}
}

// DialAttempt is the durable record of one processed target.
type DialAttempt struct {
	ID         uuid.UUID
	RunID      uuid.UUID
	TargetID   int64
	Phone      string
	Succeeded  bool
	Error      string
	OccurredAt time.Time
}
