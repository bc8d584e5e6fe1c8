// Package sched implements the scheduler described in spec.md §4.5: a
// fixed worker pool that repeatedly picks the oldest task for a domain,
// leases it under a picker mutex, and hands it to the matching Stage
// Runner outside that critical section.
package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asksbj/jpstamp-pipeline/l3"
	"github.com/asksbj/jpstamp-pipeline/lifecycle"
	"github.com/asksbj/jpstamp-pipeline/runner"
	"github.com/asksbj/jpstamp-pipeline/task"
)

var logger = l3.Get()

// Scheduler runs Config.WorkerCount long-lived workers against one
// domain's task roster. It implements lifecycle.Component so it can be
// registered alongside other long-running pieces of the process.
type Scheduler struct {
	*lifecycle.SimpleComponent

	cfg Config

	pickerMu sync.Mutex
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a Scheduler for cfg. compId becomes the component's Id() in
// a lifecycle.ComponentManager.
func New(compID string, cfg Config) *Scheduler {
	s := &Scheduler{cfg: cfg}
	s.SimpleComponent = &lifecycle.SimpleComponent{
		CompId:    compID,
		StartFunc: s.start,
		StopFunc:  s.stop,
	}
	return s
}

func (s *Scheduler) start() error {
	if s.cfg.Registry != nil {
		if err := s.cfg.Registry.HealthCheck(context.Background()); err != nil {
			return err
		}
	}

	s.stopCh = make(chan struct{})
	workers := s.cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.workerLoop(i)
	}
	logger.InfoF("sched: domain %s started with %d workers", s.cfg.Domain, workers)
	return nil
}

func (s *Scheduler) stop() error {
	close(s.stopCh)
	s.wg.Wait()
	logger.InfoF("sched: domain %s stopped", s.cfg.Domain)
	return nil
}

func (s *Scheduler) workerLoop(id int) {
	defer s.wg.Done()
	ctx := context.Background()

	store, runners, err := s.bind(id)
	if err != nil {
		logger.ErrorF("sched worker %d: %v", id, err)
		return
	}
	if s.cfg.DBPool != nil {
		defer s.cfg.DBPool.Release(id)
	}

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		t, leased, err := s.pickAndLease(ctx, store)
		if err != nil && !errors.Is(err, task.ErrNotFound) {
			logger.ErrorF("sched worker %d: pick/lease error: %v", id, err)
			s.sleepOrStop(s.cfg.idleSleep())
			continue
		}
		if t == nil {
			s.sleepOrStop(s.cfg.idleSleep())
			continue
		}
		if !leased {
			// Another worker won the race; retry immediately.
			continue
		}

		s.execute(ctx, id, t, runners)
	}
}

// bind resolves the Task Store and Stage Runners this worker uses for
// its entire lifetime. With DBPool set, id leases its own *sqlx.DB and
// builds both against that handle, giving the worker the per-worker
// connection affinity described in spec.md §5; otherwise it falls back
// to the statically-configured Store/Runners every worker shares.
func (s *Scheduler) bind(id int) (task.Store, map[string]*runner.Base, error) {
	if s.cfg.DBPool == nil {
		return s.cfg.Store, s.cfg.Runners, nil
	}

	db, err := s.cfg.DBPool.Get(id)
	if err != nil {
		return nil, nil, fmt.Errorf("acquiring pooled connection: %w", err)
	}
	return s.cfg.NewStore(db), s.cfg.NewRunners(db), nil
}

// pickAndLease is the picker mutex's critical section: a single "read
// oldest" plus a CAS lease, with no I/O beyond those two DB round-trips.
func (s *Scheduler) pickAndLease(ctx context.Context, store task.Store) (*task.Task, bool, error) {
	s.pickerMu.Lock()
	defer s.pickerMu.Unlock()

	t, err := store.PickOldest(ctx, s.cfg.Domain)
	if err != nil {
		return nil, false, err
	}

	observed := t.LastUpdate
	ok, err := store.Lease(ctx, t, observed)
	if err != nil {
		return nil, false, err
	}
	return t, ok, nil
}

// execute runs the leased task's runner outside the picker mutex, and
// recovers from a panicking Stage so one bad stage cannot take the whole
// worker pool down.
func (s *Scheduler) execute(ctx context.Context, workerID int, t *task.Task, runners map[string]*runner.Base) {
	r, ok := runners[t.Type]
	if !ok {
		logger.ErrorF("sched worker %d: no runner registered for task type %s", workerID, t.Type)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorF("sched worker %d: runner panic on %s/%s: %v", workerID, t.Domain, t.Owner, rec)
		}
	}()

	status := r.Run(ctx, t)
	logger.DebugF("sched worker %d: %s/%s -> %s", workerID, t.Domain, t.Owner, status)
}

func (s *Scheduler) sleepOrStop(d time.Duration) {
	select {
	case <-s.stopCh:
	case <-time.After(d):
	}
}
