package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/sales-dialer/internal/config"
	"github.com/acme/sales-dialer/internal/dialer"
	"github.com/acme/sales-dialer/internal/domain"
	"github.com/acme/sales-dialer/internal/repository"
	"github.com/acme/sales-dialer/internal/service/common"
	apperrors "github.com/acme/sales-dialer/pkg/errors"
	"github.com/acme/sales-dialer/pkg/logger"
)

// RunLock keeps two replicas from dialing the same owner's customers.
type RunLock interface {
	Acquire(ctx context.Context, ownerID int64, holder string) (bool, error)
	Release(ctx context.Context, ownerID int64, holder string) error
}

// Service runs dial sessions for an operator: it loads the operator's
// dialable customers, drives the scheduler over them and writes the updated
// contact bookkeeping back once the run ends.
type Service struct {
	dialer.NopListener

	targets   repository.TargetRepository
	attempts  repository.AttemptStore
	lock      RunLock
	scheduler *dialer.Scheduler
	cfg       config.DialerConfig
	log       *logger.Logger

	startMu sync.Mutex

	mu     sync.Mutex
	active *activeRun
}

// activeRun is what the service needs to wind a run up.
type activeRun struct {
	ownerID   int64
	lockToken string
	baseline  map[int64]int
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Targets   repository.TargetRepository
	Attempts  repository.AttemptStore
	Lock      RunLock
	Caller    dialer.Caller
	Listeners []dialer.Listener
	Options   dialer.Options
	Config    config.DialerConfig
	Logger    *logger.Logger
}

// NewService wires a scheduler whose listeners are the service itself
// followed by deps.Listeners.
func NewService(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	s := &Service{
		targets:  deps.Targets,
		attempts: deps.Attempts,
		lock:     deps.Lock,
		cfg:      deps.Config,
		log:      log.Named("session"),
	}

	listeners := make(dialer.Listeners, 0, len(deps.Listeners)+1)
	listeners = append(listeners, s)
	listeners = append(listeners, deps.Listeners...)

	opts := deps.Options
	if opts.Logger == nil {
		opts.Logger = log
	}
	if opts.InvalidSkipDelay <= 0 {
		opts.InvalidSkipDelay = deps.Config.InvalidSkipDelay
	}
	s.scheduler = dialer.New(deps.Caller, listeners, opts)
	return s
}

// StartInput selects whose customers to dial and how. A nil Interval selects
// the configured default; zero dials back to back.
type StartInput struct {
	OwnerID  int64
	Strategy string
	Interval *time.Duration
	Limit    int
}

// RunInfo describes an accepted run.
type RunInfo struct {
	RunID    uuid.UUID
	OwnerID  int64
	Total    int
	Strategy domain.Strategy
	Interval time.Duration
}

// Start loads the owner's dialable customers and begins a run over them.
// It returns ErrAlreadyRunning while another run has not been wound up.
func (s *Service) Start(ctx context.Context, input StartInput) (RunInfo, error) {
	strategy, interval, limit, err := s.resolve(input)
	if err != nil {
		return RunInfo{}, err
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	busy := s.active != nil
	s.mu.Unlock()
	if busy || s.scheduler.Status().IsRunning {
		return RunInfo{}, fmt.Errorf("session service: start: %w", apperrors.ErrAlreadyRunning)
	}

	token, err := s.acquire(ctx, input.OwnerID)
	if err != nil {
		return RunInfo{}, err
	}

	targets, err := s.targets.ListDialable(ctx, input.OwnerID, limit)
	if err != nil {
		s.release(ctx, input.OwnerID, token)
		return RunInfo{}, fmt.Errorf("session service: load targets: %w", err)
	}
	if targets == nil {
		targets = []domain.DialTarget{}
	}

	run := &activeRun{ownerID: input.OwnerID, lockToken: token, baseline: make(map[int64]int, len(targets))}
	for _, t := range targets {
		run.baseline[t.ID] = t.ContactCount
	}
	s.mu.Lock()
	s.active = run
	s.mu.Unlock()

	if err := s.scheduler.Start(ctx, targets, strategy, interval); err != nil {
		_ = s.finish(ctx, nil)
		return RunInfo{}, fmt.Errorf("session service: start run: %w", err)
	}

	info := RunInfo{
		RunID:    s.scheduler.RunID(),
		OwnerID:  input.OwnerID,
		Total:    len(targets),
		Strategy: strategy,
		Interval: interval,
	}
	s.log.Info("dial session started",
		zap.String("run_id", info.RunID.String()),
		zap.Int64("owner_id", info.OwnerID),
		zap.Int("targets", info.Total),
	)
	return info, nil
}

func (s *Service) acquire(ctx context.Context, ownerID int64) (string, error) {
	if s.lock == nil {
		return "", nil
	}
	token := uuid.NewString()
	ok, err := s.lock.Acquire(ctx, ownerID, token)
	if err != nil {
		return "", fmt.Errorf("session service: acquire run lock: %w", apperrors.Wrap(apperrors.ErrUnavailable, err.Error()))
	}
	if !ok {
		return "", fmt.Errorf("session service: owner %d is being dialed elsewhere: %w", ownerID, apperrors.ErrAlreadyRunning)
	}
	return token, nil
}

func (s *Service) release(ctx context.Context, ownerID int64, token string) {
	if s.lock == nil || token == "" {
		return
	}
	if err := s.lock.Release(ctx, ownerID, token); err != nil {
		s.log.Warn("failed to release run lock", zap.Error(err), zap.Int64("owner_id", ownerID))
	}
}

func (s *Service) resolve(input StartInput) (domain.Strategy, time.Duration, int, error) {
	if input.OwnerID <= 0 {
		return "", 0, 0, apperrors.Wrap(apperrors.ErrValidation, "owner id must be positive")
	}

	name := input.Strategy
	if name == "" {
		name = s.cfg.DefaultStrategy
	}
	if name == "" {
		name = string(domain.StrategyPriority)
	}
	strategy, err := domain.ParseStrategy(name)
	if err != nil {
		return "", 0, 0, apperrors.Wrap(apperrors.ErrValidation, err.Error())
	}

	interval := s.cfg.DefaultInterval
	if input.Interval != nil {
		interval = *input.Interval
	}
	if interval < 0 {
		return "", 0, 0, apperrors.Wrap(apperrors.ErrValidation, "interval must not be negative")
	}

	limit := input.Limit
	if limit <= 0 || (s.cfg.MaxTargetsPerRun > 0 && limit > s.cfg.MaxTargetsPerRun) {
		limit = s.cfg.MaxTargetsPerRun
	}
	return strategy, interval, limit, nil
}

// Pause holds the active run before its next dial.
func (s *Service) Pause() domain.StatusSnapshot {
	s.scheduler.Pause()
	return s.scheduler.Status()
}

// Resume continues a paused run from where it stopped.
func (s *Service) Resume() domain.StatusSnapshot {
	s.scheduler.Resume()
	return s.scheduler.Status()
}

// Skip gives up on the target being dialed and moves on.
func (s *Service) Skip() domain.StatusSnapshot {
	s.scheduler.SkipCurrent()
	return s.scheduler.Status()
}

// Stop ends the active run and writes back the contacts made so far.
func (s *Service) Stop(ctx context.Context) (domain.StatusSnapshot, error) {
	s.scheduler.Stop()
	status := s.scheduler.Status()
	return status, s.finish(ctx, s.scheduler.Results())
}

// Snapshot bundles the status of the current or last run.
type Snapshot struct {
	RunID   uuid.UUID
	Status  domain.StatusSnapshot
	Current *domain.DialTarget
}

// Status reports progress of the current or last run.
func (s *Service) Status() Snapshot {
	snap := Snapshot{RunID: s.scheduler.RunID(), Status: s.scheduler.Status()}
	if current, ok := s.scheduler.Current(); ok {
		snap.Current = &current
	}
	return snap
}

// Results returns the working copies of the current or last run.
func (s *Service) Results() []domain.DialTarget {
	return s.scheduler.Results()
}

// RunID identifies the current or last run.
func (s *Service) RunID() uuid.UUID {
	return s.scheduler.RunID()
}

// Attempts pages through the recorded attempts of a target.
func (s *Service) Attempts(ctx context.Context, targetID int64, limit int, pageToken string) ([]domain.DialAttempt, string, error) {
	if targetID <= 0 {
		return nil, "", apperrors.Wrap(apperrors.ErrValidation, "target id must be positive")
	}
	if s.attempts == nil {
		return nil, "", fmt.Errorf("session service: attempt history: %w", apperrors.ErrUnavailable)
	}
	state, err := common.DecodePageToken(pageToken)
	if err != nil {
		return nil, "", err
	}
	attempts, next, err := s.attempts.ListAttempts(ctx, targetID, limit, state)
	if err != nil {
		return nil, "", fmt.Errorf("session service: list attempts: %w", err)
	}
	return attempts, common.EncodePageToken(next), nil
}

// OnQueueComplete persists the run's contact bookkeeping.
func (s *Service) OnQueueComplete(results []domain.DialTarget) {
	timeout := s.cfg.PersistTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.finish(ctx, results); err != nil {
		s.log.Error("failed to persist dial results", zap.Error(err))
	}
}

// finish winds up the active run exactly once: it writes back the targets
// whose contact count moved and releases the owner lock.
func (s *Service) finish(ctx context.Context, results []domain.DialTarget) error {
	s.mu.Lock()
	run := s.active
	s.active = nil
	s.mu.Unlock()
	if run == nil {
		return nil
	}
	defer s.release(ctx, run.ownerID, run.lockToken)

	changed := make([]domain.DialTarget, 0, len(results))
	for _, t := range results {
		if before, ok := run.baseline[t.ID]; ok && t.ContactCount != before {
			changed = append(changed, t)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	if err := s.targets.SaveContactResults(ctx, changed); err != nil {
		return fmt.Errorf("session service: save contact results: %w", err)
	}
	s.log.Info("dial results persisted",
		zap.Int64("owner_id", run.ownerID),
		zap.Int("updated", len(changed)),
	)
	return nil
}
