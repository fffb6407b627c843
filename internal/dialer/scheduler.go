package dialer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/sales-dialer/internal/domain"
	apperrors "github.com/acme/sales-dialer/pkg/errors"
	"github.com/acme/sales-dialer/pkg/logger"
)

// DefaultInvalidSkipDelay is the pause after a target is skipped for an
// unusable phone number.
const DefaultInvalidSkipDelay = time.Second

// Options tunes a Scheduler. Zero values select the defaults.
type Options struct {
	Clock            Clock
	Logger           *logger.Logger
	Tracer           trace.Tracer
	Rand             *rand.Rand
	InvalidSkipDelay time.Duration
}

// Scheduler works through a queue of dial targets one at a time, waiting a
// fixed interval between attempts, and reports every transition to its
// Listener.
//
// All state sits behind mu. At most one advance is pending at any time; each
// carries the generation it was armed under and returns early once a control
// call has moved gen on. The Caller runs outside the lock, tagged with an
// attempt token so results of abandoned dials are dropped. No advance runs
// until the Caller has returned, abandoned or not, so at most one call is in
// progress at a time.
type Scheduler struct {
	caller       Caller
	listener     Listener
	clock        Clock
	logger       *logger.Logger
	tracer       trace.Tracer
	invalidDelay time.Duration

	mu        sync.Mutex
	rng       *rand.Rand
	runID     uuid.UUID
	queue     []domain.DialTarget
	strategy  domain.Strategy
	interval  time.Duration
	cursor    int
	current   int
	settled   bool
	running   bool
	paused    bool
	attempted int
	succeeded int
	failed    int
	startedAt time.Time

	gen        uint64
	pending    Timer
	attempt    uint64
	dialing    bool
	cancelCall context.CancelFunc
	runCtx     context.Context
	endRun     func()
}

// New constructs a scheduler around the call capability and listener.
func New(caller Caller, listener Listener, opts Options) *Scheduler {
	if listener == nil {
		listener = NopListener{}
	}
	if opts.Clock == nil {
		opts.Clock = NewClock(clock.New())
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("dialer.scheduler")
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.InvalidSkipDelay <= 0 {
		opts.InvalidSkipDelay = DefaultInvalidSkipDelay
	}

	return &Scheduler{
		caller:       caller,
		listener:     listener,
		clock:        opts.Clock,
		logger:       opts.Logger.Named("dialer"),
		tracer:       opts.Tracer,
		invalidDelay: opts.InvalidSkipDelay,
		rng:          opts.Rand,
		current:      -1,
		runCtx:       context.Background(),
	}
}

// Start begins a run over a copy of targets ordered by strategy. The first
// target is dialed as soon as the scheduler gets a turn.
//
// A call made while a run is active is rejected with a warning and an
// OnError notification; the active run is not touched and nil is returned.
func (s *Scheduler) Start(ctx context.Context, targets []domain.DialTarget, strategy domain.Strategy, interval time.Duration) error {
	if targets == nil {
		return fmt.Errorf("%w: dialer: targets must not be nil", apperrors.ErrValidation)
	}
	if interval < 0 {
		return fmt.Errorf("%w: dialer: interval must not be negative, got %s", apperrors.ErrValidation, interval)
	}
	if !strategy.Valid() {
		return fmt.Errorf("%w: dialer: unknown strategy %q", apperrors.ErrValidation, strategy)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.running {
		runID := s.runID
		s.mu.Unlock()
		s.logger.Warn("dialer: start rejected, run already in progress", zap.String("run_id", runID.String()))
		s.emit([]event{{kind: eventError, message: apperrors.ErrAlreadyRunning.Error()}})
		return nil
	}

	queue := make([]domain.DialTarget, len(targets))
	copy(queue, targets)
	orderQueue(queue, strategy, s.rng)

	s.cancelPendingLocked()
	s.abandonCallLocked()
	s.runID = uuid.New()
	s.queue = queue
	s.strategy = strategy
	s.interval = interval
	s.cursor = 0
	s.current = -1
	s.settled = true
	s.attempted = 0
	s.succeeded = 0
	s.failed = 0
	s.startedAt = s.clock.Now()
	s.running = true
	s.paused = false
	s.beginRunLocked(ctx)

	gen := s.gen
	runID := s.runID
	events := []event{s.statusEventLocked()}
	s.mu.Unlock()

	s.logger.Info("dialer: run started",
		zap.String("run_id", runID.String()),
		zap.Int("targets", len(queue)),
		zap.String("strategy", string(strategy)),
		zap.Duration("interval", interval),
	)
	s.emit(events)
	s.continueAfter(gen, 0)
	return nil
}

// Pause halts the run before the next advance. It has no effect when no run
// is active. A dial already in flight is allowed to finish and is counted.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	if !s.running || s.paused {
		s.mu.Unlock()
		return
	}
	s.cancelPendingLocked()
	s.paused = true
	events := []event{s.statusEventLocked()}
	s.mu.Unlock()

	s.logger.Info("dialer: run paused")
	s.emit(events)
}

// Resume continues a paused run from the current cursor without re-sorting
// or resetting counters.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	if !s.running || !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	gen := s.gen
	events := []event{s.statusEventLocked()}
	s.mu.Unlock()

	s.logger.Info("dialer: run resumed")
	s.emit(events)
	s.continueAfter(gen, 0)
}

// Stop ends the run. Any pending advance is cancelled and an in-flight dial is
// abandoned, its result discarded. Calling Stop again is harmless.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancelPendingLocked()
	s.abandonCallLocked()
	wasRunning := s.running
	s.running = false
	s.paused = false
	s.current = -1
	if wasRunning {
		s.endRunLocked()
	}
	events := []event{s.statusEventLocked()}
	s.mu.Unlock()

	if wasRunning {
		s.logger.Info("dialer: run stopped")
	}
	s.emit(events)
}

// SkipCurrent gives up on the current target and moves on without waiting
// for the interval. A target whose dial has not settled yet is counted as a
// failure; one that already settled is not counted twice.
func (s *Scheduler) SkipCurrent() {
	s.mu.Lock()
	if !s.running || s.current < 0 {
		s.mu.Unlock()
		return
	}
	s.cancelPendingLocked()

	var events []event
	target := s.queue[s.current]
	if !s.settled {
		s.abandonCallLocked()
		s.settled = true
		s.failed++
		events = append(events, event{kind: eventDialComplete, target: target, succeeded: false})
	}
	events = append(events, s.statusEventLocked())
	gen := s.gen
	s.mu.Unlock()

	s.logger.Info("dialer: target skipped", zap.Int64("target_id", target.ID))
	s.emit(events)
	s.continueAfter(gen, 0)
}

// Status returns a snapshot of the run. It has no side effects.
func (s *Scheduler) Status() domain.StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Current returns the target being worked on, if any.
func (s *Scheduler) Current() (domain.DialTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.current < 0 {
		return domain.DialTarget{}, false
	}
	return s.queue[s.current], true
}

// Results returns the working copies of the current or most recent run in
// processing order, including updated contact bookkeeping.
func (s *Scheduler) Results() []domain.DialTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.DialTarget, len(s.queue))
	copy(out, s.queue)
	return out
}

// RunID identifies the current or most recent run.
func (s *Scheduler) RunID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// advance is one step of the processing loop.
func (s *Scheduler) advance(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.running || s.paused || s.dialing {
		s.mu.Unlock()
		return
	}
	s.pending = nil

	if s.cursor >= len(s.queue) {
		events := s.completeLocked()
		s.mu.Unlock()
		s.emit(events)
		return
	}

	idx := s.cursor
	s.cursor++
	s.attempted++
	s.current = idx
	s.settled = false
	target := s.queue[idx]

	if !target.HasValidPhone() {
		s.settled = true
		s.failed++
		events := []event{
			{kind: eventDialComplete, target: target, succeeded: false},
			s.statusEventLocked(),
		}
		s.mu.Unlock()

		s.logger.Warn("dialer: invalid phone number, skipping target",
			zap.Int64("target_id", target.ID),
			zap.String("name", target.Name),
		)
		s.emit(events)
		s.continueAfter(gen, s.invalidDelay)
		return
	}

	s.attempt++
	token := s.attempt
	callCtx, cancel := context.WithCancel(s.runCtx)
	s.cancelCall = cancel
	s.dialing = true
	events := []event{
		{kind: eventDialStart, target: target},
		s.statusEventLocked(),
	}
	s.mu.Unlock()

	s.emit(events)
	s.dial(callCtx, idx, target, token)
}

func (s *Scheduler) dial(ctx context.Context, idx int, target domain.DialTarget, token uint64) {
	sctx, span := s.tracer.Start(ctx, "dialer.dial", trace.WithAttributes(
		attribute.Int64("target.id", target.ID),
		attribute.Int("queue.index", idx),
		attribute.Int("target.priority", target.Priority()),
	))
	err := s.caller.PlaceCall(sctx, target.Phone)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
	}
	span.End()

	s.mu.Lock()
	s.dialing = false
	if token != s.attempt || !s.running {
		// Skip or a restart may have been waiting for this call to return.
		if s.running && !s.paused && s.pending == nil {
			s.armLocked(0)
		}
		s.mu.Unlock()
		s.logger.Debug("dialer: dropping result of abandoned dial", zap.Int64("target_id", target.ID))
		return
	}
	s.cancelCall()
	s.cancelCall = nil
	s.settled = true

	var events []event
	if err != nil {
		s.failed++
		events = append(events,
			event{kind: eventError, message: fmt.Sprintf("dial failed: %v", err)},
			event{kind: eventDialComplete, target: s.queue[idx], succeeded: false},
		)
	} else {
		s.succeeded++
		s.queue[idx].MarkContacted(s.clock.Now())
		events = append(events, event{kind: eventDialComplete, target: s.queue[idx], succeeded: true})
	}
	events = append(events, s.statusEventLocked())
	gen := s.gen
	interval := s.interval
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("dialer: dial failed", zap.Int64("target_id", target.ID), zap.Error(err))
	} else {
		s.logger.Debug("dialer: dial placed", zap.Int64("target_id", target.ID))
	}
	s.emit(events)
	s.continueAfter(gen, interval)
}

func (s *Scheduler) completeLocked() []event {
	s.running = false
	s.paused = false
	s.current = -1
	elapsed := s.clock.Now().Sub(s.startedAt)
	s.endRunLocked()

	results := make([]domain.DialTarget, len(s.queue))
	copy(results, s.queue)

	s.logger.Info("dialer: run completed",
		zap.String("run_id", s.runID.String()),
		zap.Int("total", s.attempted),
		zap.Int("success", s.succeeded),
		zap.Int("failed", s.failed),
		zap.Duration("elapsed", elapsed),
	)

	return []event{
		s.statusEventLocked(),
		{kind: eventQueueComplete, results: results},
	}
}

// continueAfter arms the next advance unless a control call moved the run on
// while events were being delivered.
func (s *Scheduler) continueAfter(gen uint64, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.running || s.paused || s.dialing {
		return
	}
	s.armLocked(delay)
}

func (s *Scheduler) armLocked(delay time.Duration) {
	s.cancelPendingLocked()
	next := s.gen
	s.pending = s.clock.AfterFunc(delay, func() { s.advance(next) })
}

func (s *Scheduler) cancelPendingLocked() {
	s.gen++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

func (s *Scheduler) abandonCallLocked() {
	s.attempt++
	if s.cancelCall != nil {
		s.cancelCall()
		s.cancelCall = nil
	}
}

func (s *Scheduler) beginRunLocked(ctx context.Context) {
	spanCtx, span := s.tracer.Start(context.WithoutCancel(ctx), "dialer.run", trace.WithAttributes(
		attribute.String("run.id", s.runID.String()),
		attribute.String("run.strategy", string(s.strategy)),
		attribute.Int("run.targets", len(s.queue)),
	))
	runCtx, cancel := context.WithCancel(spanCtx)
	s.runCtx = runCtx
	s.endRun = func() {
		cancel()
		span.SetAttributes(
			attribute.Int("run.success", s.succeeded),
			attribute.Int("run.failed", s.failed),
		)
		span.End()
	}
}

func (s *Scheduler) endRunLocked() {
	if s.endRun != nil {
		s.endRun()
		s.endRun = nil
	}
}

func (s *Scheduler) snapshotLocked() domain.StatusSnapshot {
	var elapsed int64
	if s.running {
		elapsed = s.clock.Now().Sub(s.startedAt).Milliseconds()
	}
	return domain.StatusSnapshot{
		TotalCount:    len(s.queue),
		CurrentIndex:  s.cursor,
		SuccessCount:  s.succeeded,
		FailedCount:   s.failed,
		IsPaused:      s.paused,
		IsRunning:     s.running,
		ElapsedMillis: elapsed,
	}
}

func (s *Scheduler) statusEventLocked() event {
	return event{kind: eventStatus, status: s.snapshotLocked()}
}

type eventKind int

const (
	eventDialStart eventKind = iota
	eventDialComplete
	eventQueueComplete
	eventError
	eventStatus
)

type event struct {
	kind      eventKind
	target    domain.DialTarget
	succeeded bool
	message   string
	status    domain.StatusSnapshot
	results   []domain.DialTarget
}

func (s *Scheduler) emit(events []event) {
	for _, ev := range events {
		switch ev.kind {
		case eventDialStart:
			s.listener.OnDialStart(ev.target)
		case eventDialComplete:
			s.listener.OnDialComplete(ev.target, ev.succeeded)
		case eventQueueComplete:
			s.listener.OnQueueComplete(ev.results)
		case eventError:
			s.listener.OnError(ev.message)
		case eventStatus:
			s.listener.OnStatusUpdate(ev.status)
		}
	}
}
