// Package scheduler triggers the poll and report operations on fixed cron
// intervals, guarding each against overlapping its own previous run.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrBusy is returned when an operation is triggered while a previous
// invocation is still in flight.
var ErrBusy = errors.New("operation already in progress")

// Gate is a single-flight wrapper around one operation. A trigger that
// arrives while the operation runs is skipped, never queued.
type Gate struct {
	name    string
	fn      func(ctx context.Context) error
	busy    atomic.Bool
	lastRun atomic.Int64
}

// NewGate wraps fn in an overlap guard.
func NewGate(name string, fn func(ctx context.Context) error) *Gate {
	return &Gate{name: name, fn: fn}
}

// Run executes the operation unless one is already in flight.
func (g *Gate) Run(ctx context.Context) error {
	if !g.busy.CompareAndSwap(false, true) {
		log.Printf("[sched] %s: previous run still in flight, skipping", g.name)
		return ErrBusy
	}
	defer g.busy.Store(false)
	g.lastRun.Store(time.Now().Unix())
	return g.fn(ctx)
}

// LastRun returns when the operation last started, zero if never.
func (g *Gate) LastRun() time.Time {
	ts := g.lastRun.Load()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

// Scheduler owns the cron timers. Construct, Add entries, Start; Stop waits
// for running jobs before returning.
type Scheduler struct {
	cron *cron.Cron
	jobs int
}

// New creates a stopped scheduler using standard five-field cron specs.
func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Add registers an operation on a cron spec. Errors from triggered runs are
// swallowed and logged so one failed cycle never stops future cycles.
func (s *Scheduler) Add(spec, name string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := fn(context.Background()); err != nil && !errors.Is(err, ErrBusy) {
			log.Printf("[sched] %s: %v", name, err)
		}
	})
	if err != nil {
		return err
	}
	s.jobs++
	return nil
}

// Start begins firing timers.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the timers and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Jobs returns the number of registered entries.
func (s *Scheduler) Jobs() int {
	return s.jobs
}
