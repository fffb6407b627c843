package dialer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acme/sales-dialer/internal/domain"
)

// manualClock runs timers only when the test steps it.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock *manualClock
	at    time.Time
	fn    func()
	done  bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	live := !t.done
	t.done = true
	return live
}

// Step fires the earliest live timer, moving the clock to its deadline.
func (c *manualClock) Step() bool {
	c.mu.Lock()
	var next *manualTimer
	for _, t := range c.timers {
		if t.done {
			continue
		}
		if next == nil || t.at.Before(next.at) {
			next = t
		}
	}
	if next == nil {
		c.mu.Unlock()
		return false
	}
	next.done = true
	if next.at.After(c.now) {
		c.now = next.at
	}
	c.mu.Unlock()

	next.fn()
	return true
}

// Drain steps until no timer is left, bounded to catch runaway loops.
func (c *manualClock) Drain() int {
	steps := 0
	for c.Step() {
		steps++
		if steps > 1000 {
			panic("manualClock: too many steps")
		}
	}
	return steps
}

// Pending returns the delays of live timers relative to now.
func (c *manualClock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, t := range c.timers {
		if !t.done {
			out = append(out, t.at.Sub(c.now))
		}
	}
	return out
}

type completion struct {
	ID        int64
	Succeeded bool
}

// recorder captures listener notifications and checks snapshot invariants.
type recorder struct {
	mu         sync.Mutex
	starts     []int64
	completes  []completion
	finished   int
	results    []domain.DialTarget
	errors     []string
	statuses   []domain.StatusSnapshot
	violations []string
	log        []string
}

func (r *recorder) OnDialStart(target domain.DialTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, target.ID)
	r.log = append(r.log, fmt.Sprintf("start:%d", target.ID))
}

func (r *recorder) OnDialComplete(target domain.DialTarget, succeeded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes = append(r.completes, completion{ID: target.ID, Succeeded: succeeded})
	r.log = append(r.log, fmt.Sprintf("complete:%d:%v", target.ID, succeeded))
}

func (r *recorder) OnQueueComplete(results []domain.DialTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
	r.results = results
	r.log = append(r.log, "queue-complete")
}

func (r *recorder) OnError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

func (r *recorder) OnStatusUpdate(status domain.StatusSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	if status.SuccessCount+status.FailedCount > status.CurrentIndex {
		r.violations = append(r.violations, fmt.Sprintf("outcomes exceed cursor: %+v", status))
	}
	if status.CurrentIndex > status.TotalCount {
		r.violations = append(r.violations, fmt.Sprintf("cursor past end: %+v", status))
	}
	if status.IsPaused && !status.IsRunning {
		r.violations = append(r.violations, fmt.Sprintf("paused while idle: %+v", status))
	}
}

func (r *recorder) Starts() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.starts...)
}

func (r *recorder) Completes() []completion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]completion(nil), r.completes...)
}

func (r *recorder) Finished() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

func (r *recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

func (r *recorder) Violations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.violations...)
}

func (r *recorder) Log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

func (r *recorder) LastStatus() domain.StatusSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return domain.StatusSnapshot{}
	}
	return r.statuses[len(r.statuses)-1]
}

// callLog is a Caller that records the numbers it was asked to dial.
type callLog struct {
	mu      sync.Mutex
	numbers []string
	fail    map[string]error
}

func (c *callLog) PlaceCall(_ context.Context, phone string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.numbers = append(c.numbers, phone)
	if err, ok := c.fail[phone]; ok {
		return err
	}
	return nil
}

func (c *callLog) Numbers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.numbers...)
}

func target(id int64, level domain.Level, phone string, lastContact int64) domain.DialTarget {
	return domain.DialTarget{
		ID:          id,
		Name:        fmt.Sprintf("customer-%d", id),
		Phone:       phone,
		Level:       level,
		Status:      domain.CustomerStatusValid,
		LastContact: lastContact,
	}
}

func phone(n int) string {
	return fmt.Sprintf("138%08d", n)
}
