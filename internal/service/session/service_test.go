package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/sales-dialer/internal/config"
	"github.com/acme/sales-dialer/internal/dialer"
	"github.com/acme/sales-dialer/internal/domain"
	"github.com/acme/sales-dialer/internal/service/common"
	apperrors "github.com/acme/sales-dialer/pkg/errors"
)

type fakeTargets struct {
	mu      sync.Mutex
	targets []domain.DialTarget
	limit   int
	owner   int64
	saved   [][]domain.DialTarget
	saveErr error
	listErr error
}

func (f *fakeTargets) ListDialable(_ context.Context, ownerID int64, limit int) ([]domain.DialTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owner = ownerID
	f.limit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.targets, nil
}

func (f *fakeTargets) SaveContactResults(_ context.Context, targets []domain.DialTarget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := make([]domain.DialTarget, len(targets))
	copy(cp, targets)
	f.saved = append(f.saved, cp)
	return nil
}

func (f *fakeTargets) UpdateStatus(context.Context, int64, domain.CustomerStatus) error {
	return nil
}

func (f *fakeTargets) savedBatches() [][]domain.DialTarget {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]domain.DialTarget(nil), f.saved...)
}

type fakeAttempts struct {
	state    []byte
	next     []byte
	attempts []domain.DialAttempt
}

func (f *fakeAttempts) AppendAttempt(context.Context, domain.DialAttempt) error { return nil }

func (f *fakeAttempts) ListAttempts(_ context.Context, _ int64, _ int, state []byte) ([]domain.DialAttempt, []byte, error) {
	f.state = state
	return f.attempts, f.next, nil
}

type completion struct {
	dialer.NopListener
	done chan []domain.DialTarget
}

func (c *completion) OnQueueComplete(results []domain.DialTarget) {
	c.done <- results
}

func okCaller() dialer.Caller {
	return dialer.CallerFunc(func(context.Context, string) error { return nil })
}

func newService(t *testing.T, repo *fakeTargets, caller dialer.Caller, extra ...dialer.Listener) *Service {
	t.Helper()
	return NewService(Deps{
		Targets:   repo,
		Attempts:  &fakeAttempts{},
		Caller:    caller,
		Listeners: extra,
		Config: config.DialerConfig{
			DefaultStrategy:  "priority",
			DefaultInterval:  time.Millisecond,
			InvalidSkipDelay: time.Millisecond,
			MaxTargetsPerRun: 100,
			PersistTimeout:   time.Second,
		},
	})
}

func sampleTargets() []domain.DialTarget {
	return []domain.DialTarget{
		{ID: 1, Name: "A", Phone: "13800000001", Level: "c", ContactCount: 2},
		{ID: 2, Name: "B", Phone: "123", Level: "a"},
		{ID: 3, Name: "C", Phone: "13800000003", Level: "b"},
	}
}

func TestStartRunsToCompletionAndPersistsContacted(t *testing.T) {
	repo := &fakeTargets{targets: sampleTargets()}
	done := &completion{done: make(chan []domain.DialTarget, 1)}
	svc := newService(t, repo, okCaller(), done)

	info, err := svc.Start(context.Background(), StartInput{OwnerID: 7})
	require.NoError(t, err)
	assert.Equal(t, 3, info.Total)
	assert.Equal(t, domain.StrategyPriority, info.Strategy)
	assert.Equal(t, time.Millisecond, info.Interval)
	assert.NotEqual(t, uuid.Nil, info.RunID)
	assert.Equal(t, int64(7), repo.owner)
	assert.Equal(t, 100, repo.limit)

	select {
	case results := <-done.done:
		require.Len(t, results, 3)
		assert.Equal(t, []int64{2, 3, 1}, []int64{results[0].ID, results[1].ID, results[2].ID})
	case <-time.After(2 * time.Second):
		t.Fatal("run did not complete")
	}

	batches := repo.savedBatches()
	require.Len(t, batches, 1)
	saved := batches[0]
	require.Len(t, saved, 2)
	assert.Equal(t, int64(3), saved[0].ID)
	assert.Equal(t, 1, saved[0].ContactCount)
	assert.Equal(t, int64(1), saved[1].ID)
	assert.Equal(t, 3, saved[1].ContactCount)
	assert.NotZero(t, saved[1].LastContact)

	status := svc.Status()
	assert.False(t, status.Status.IsRunning)
	assert.Equal(t, 2, status.Status.SuccessCount)
	assert.Equal(t, 1, status.Status.FailedCount)
	assert.Nil(t, status.Current)

	_, err = svc.Stop(context.Background())
	require.NoError(t, err)
	assert.Len(t, repo.savedBatches(), 1, "a run is persisted once")
}

func TestStartWhileRunningReturnsConflict(t *testing.T) {
	release := make(chan struct{})
	caller := dialer.CallerFunc(func(ctx context.Context, _ string) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	repo := &fakeTargets{targets: sampleTargets()}
	svc := newService(t, repo, caller)
	defer close(release)

	_, err := svc.Start(context.Background(), StartInput{OwnerID: 1})
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), StartInput{OwnerID: 1})
	require.ErrorIs(t, err, apperrors.ErrAlreadyRunning)

	_, err = svc.Stop(context.Background())
	require.NoError(t, err)
}

func TestStartValidatesInput(t *testing.T) {
	svc := newService(t, &fakeTargets{}, okCaller())

	cases := []StartInput{
		{OwnerID: 0},
		{OwnerID: 1, Strategy: "alphabetical"},
		{OwnerID: 1, Interval: durationOf(-time.Second)},
	}
	for _, in := range cases {
		_, err := svc.Start(context.Background(), in)
		assert.ErrorIs(t, err, apperrors.ErrValidation, "input %+v", in)
	}
}

func durationOf(d time.Duration) *time.Duration {
	return &d
}

func TestStartKeepsExplicitZeroInterval(t *testing.T) {
	repo := &fakeTargets{targets: sampleTargets()}
	done := &completion{done: make(chan []domain.DialTarget, 1)}
	svc := newService(t, repo, okCaller(), done)

	info, err := svc.Start(context.Background(), StartInput{OwnerID: 7, Interval: durationOf(0)})
	require.NoError(t, err)
	assert.Zero(t, info.Interval)

	select {
	case results := <-done.done:
		assert.Len(t, results, 3)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not complete")
	}
}

func TestStartWithNoTargetsCompletesImmediately(t *testing.T) {
	done := &completion{done: make(chan []domain.DialTarget, 1)}
	svc := newService(t, &fakeTargets{}, okCaller(), done)

	info, err := svc.Start(context.Background(), StartInput{OwnerID: 3, Strategy: "random"})
	require.NoError(t, err)
	assert.Equal(t, 0, info.Total)

	select {
	case results := <-done.done:
		assert.Empty(t, results)
	case <-time.After(time.Second):
		t.Fatal("empty run did not complete")
	}
}

func TestStartPropagatesLoadFailure(t *testing.T) {
	boom := errors.New("db down")
	svc := newService(t, &fakeTargets{listErr: boom}, okCaller())

	_, err := svc.Start(context.Background(), StartInput{OwnerID: 1})
	require.ErrorIs(t, err, boom)
	assert.False(t, svc.Status().Status.IsRunning)
}

func TestStopPersistsPartialRun(t *testing.T) {
	calls := make(chan struct{}, 3)
	caller := dialer.CallerFunc(func(context.Context, string) error {
		calls <- struct{}{}
		return nil
	})
	repo := &fakeTargets{targets: []domain.DialTarget{
		{ID: 1, Phone: "13800000001", Level: "a"},
		{ID: 2, Phone: "13800000002", Level: "b"},
	}}
	svc := NewService(Deps{
		Targets: repo,
		Caller:  caller,
		Config:  config.DialerConfig{DefaultInterval: time.Hour, PersistTimeout: time.Second},
	})

	_, err := svc.Start(context.Background(), StartInput{OwnerID: 1})
	require.NoError(t, err)

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("first dial never happened")
	}
	require.Eventually(t, func() bool { return svc.Status().Status.SuccessCount == 1 }, time.Second, time.Millisecond)

	status, err := svc.Stop(context.Background())
	require.NoError(t, err)
	assert.False(t, status.IsRunning)

	batches := repo.savedBatches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, int64(1), batches[0][0].ID)
}

func TestStopReportsSaveFailure(t *testing.T) {
	repo := &fakeTargets{
		targets: []domain.DialTarget{{ID: 1, Phone: "13800000001", Level: "a"}, {ID: 2, Phone: "13800000002"}},
		saveErr: errors.New("write failed"),
	}
	svc := NewService(Deps{
		Targets: repo,
		Caller:  okCaller(),
		Config:  config.DialerConfig{DefaultInterval: time.Hour, PersistTimeout: time.Second},
	})

	_, err := svc.Start(context.Background(), StartInput{OwnerID: 1})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return svc.Status().Status.SuccessCount == 1 }, time.Second, time.Millisecond)

	_, err = svc.Stop(context.Background())
	require.Error(t, err)
}

func TestControlsReturnStatus(t *testing.T) {
	svc := newService(t, &fakeTargets{}, okCaller())

	assert.False(t, svc.Pause().IsPaused)
	assert.False(t, svc.Resume().IsRunning)
	assert.False(t, svc.Skip().IsRunning)
}

func TestAttemptsUsesPageTokens(t *testing.T) {
	store := &fakeAttempts{
		next:     []byte("next-page"),
		attempts: []domain.DialAttempt{{TargetID: 5, Succeeded: true}},
	}
	svc := NewService(Deps{Targets: &fakeTargets{}, Attempts: store, Caller: okCaller()})

	token := common.EncodePageToken([]byte("this-page"))
	attempts, next, err := svc.Attempts(context.Background(), 5, 10, token)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
	assert.Equal(t, []byte("this-page"), store.state)
	assert.Equal(t, common.EncodePageToken([]byte("next-page")), next)

	_, _, err = svc.Attempts(context.Background(), 0, 10, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAttemptsWithoutStoreIsUnavailable(t *testing.T) {
	svc := NewService(Deps{Targets: &fakeTargets{}, Caller: okCaller()})
	_, _, err := svc.Attempts(context.Background(), 5, 10, "")
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

type fakeLock struct {
	mu       sync.Mutex
	held     map[int64]string
	released []int64
	deny     bool
}

func (l *fakeLock) Acquire(_ context.Context, ownerID int64, holder string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deny {
		return false, nil
	}
	if _, ok := l.held[ownerID]; ok {
		return false, nil
	}
	l.held[ownerID] = holder
	return true, nil
}

func (l *fakeLock) Release(_ context.Context, ownerID int64, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[ownerID] == holder {
		delete(l.held, ownerID)
		l.released = append(l.released, ownerID)
	}
	return nil
}

func (l *fakeLock) isHeld(ownerID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[ownerID]
	return ok
}

func TestRunLockHeldForRunAndReleasedOnCompletion(t *testing.T) {
	lock := &fakeLock{held: map[int64]string{}}
	done := &completion{done: make(chan []domain.DialTarget, 2)}
	svc := NewService(Deps{
		Targets:   &fakeTargets{targets: []domain.DialTarget{{ID: 1, Phone: "13800000001"}}},
		Lock:      lock,
		Caller:    okCaller(),
		Listeners: []dialer.Listener{done},
		Config:    config.DialerConfig{DefaultInterval: time.Millisecond},
	})

	_, err := svc.Start(context.Background(), StartInput{OwnerID: 5})
	require.NoError(t, err)

	select {
	case <-done.done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not complete")
	}
	assert.False(t, lock.isHeld(5))
	assert.Equal(t, []int64{5}, lock.released)

	_, err = svc.Start(context.Background(), StartInput{OwnerID: 5})
	require.NoError(t, err, "a finished run must not block the next one")
	select {
	case <-done.done:
	case <-time.After(2 * time.Second):
		t.Fatal("second run did not complete")
	}
}

func TestRunLockDeniedReturnsConflict(t *testing.T) {
	repo := &fakeTargets{targets: sampleTargets()}
	svc := NewService(Deps{
		Targets: repo,
		Lock:    &fakeLock{held: map[int64]string{}, deny: true},
		Caller:  okCaller(),
	})

	_, err := svc.Start(context.Background(), StartInput{OwnerID: 5})
	require.ErrorIs(t, err, apperrors.ErrAlreadyRunning)
	assert.Zero(t, repo.owner, "targets must not be loaded without the lock")
}

func TestRunLockReleasedWhenLoadFails(t *testing.T) {
	lock := &fakeLock{held: map[int64]string{}}
	svc := NewService(Deps{
		Targets: &fakeTargets{listErr: errors.New("db down")},
		Lock:    lock,
		Caller:  okCaller(),
	})

	_, err := svc.Start(context.Background(), StartInput{OwnerID: 5})
	require.Error(t, err)
	assert.False(t, lock.isHeld(5))
}
