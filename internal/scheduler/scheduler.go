// Package scheduler fires monitoring cycles on each resource's cadence. One
// loop owns all due-time bookkeeping; cycles themselves run concurrently, with
// an in-flight guard so the same resource never runs twice at once.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/formwatch/formwatch/internal/metrics"
	"github.com/formwatch/formwatch/internal/watch"
	"github.com/formwatch/formwatch/internal/worker"
)

// ErrAlreadyRunning is returned when a manual trigger races an in-flight
// cycle for the same resource.
var ErrAlreadyRunning = errors.New("cycle already in flight for resource")

// Config carries the loop timings.
type Config struct {
	// Tick is how often due times are evaluated.
	Tick time.Duration
	// InitialDelay pushes the first firing of every job past startup so the
	// process is fully up before fetches begin.
	InitialDelay time.Duration
}

type job struct {
	resourceID string
	interval   time.Duration
	nextFire   time.Time
}

// JobStatus describes one scheduled resource for the control API.
type JobStatus struct {
	ResourceID string        `json:"resource_id"`
	Interval   time.Duration `json:"interval"`
	NextFire   time.Time     `json:"next_fire"`
	InFlight   bool          `json:"in_flight"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running bool        `json:"running"`
	Jobs    []JobStatus `json:"jobs"`
}

// Scheduler drives the monitoring loop.
type Scheduler struct {
	store  watch.Store
	runner *worker.Runner
	clock  watch.Clock
	ids    watch.IDGenerator
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	jobs     map[string]*job
	inFlight map[string]struct{}
	running  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	cycles   sync.WaitGroup
}

// New constructs a stopped scheduler.
func New(store watch.Store, runner *worker.Runner, clock watch.Clock, ids watch.IDGenerator, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:    store,
		runner:   runner,
		clock:    clock,
		ids:      ids,
		cfg:      cfg,
		logger:   logger,
		jobs:     make(map[string]*job),
		inFlight: make(map[string]struct{}),
	}
}

// Start loads the job table and launches the loop. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.Reload(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	s.running = true
	go s.loop(loopCtx)

	s.logger.Info("scheduler started",
		zap.Int("jobs", len(s.jobs)),
		zap.Duration("tick", s.cfg.Tick),
	)
	return nil
}

// Stop halts the loop and waits for in-flight cycles to finish. Calling Stop
// on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.loopDone
	s.mu.Unlock()

	cancel()
	<-done
	s.cycles.Wait()
	s.logger.Info("scheduler stopped")
}

// Reload rebuilds the job table from the store. Resources already scheduled
// keep their next fire time; new ones start after the initial delay. Reload
// is safe while the loop runs and is idempotent.
func (s *Scheduler) Reload(ctx context.Context) error {
	resources, err := s.store.ListResources(ctx)
	if err != nil {
		return fmt.Errorf("loading resources: %w", err)
	}

	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*job, len(resources))
	for _, r := range resources {
		interval, known := r.PollInterval()
		if !known {
			s.logger.Warn("unknown cadence, defaulting to weekly",
				zap.String("resource", r.ID),
				zap.String("cadence", string(r.Cadence)),
			)
		}
		j := &job{resourceID: r.ID, interval: interval}
		if prev, ok := s.jobs[r.ID]; ok {
			j.nextFire = prev.nextFire
		} else {
			j.nextFire = now.Add(s.cfg.InitialDelay)
		}
		next[r.ID] = j
	}
	s.jobs = next
	metrics.SetScheduledJobs(len(next))
	return nil
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns the current job table, sorted by resource id.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Running: s.running, Jobs: make([]JobStatus, 0, len(s.jobs))}
	for id, j := range s.jobs {
		_, busy := s.inFlight[id]
		st.Jobs = append(st.Jobs, JobStatus{
			ResourceID: id,
			Interval:   j.interval,
			NextFire:   j.nextFire,
			InFlight:   busy,
		})
	}
	sort.Slice(st.Jobs, func(i, k int) bool { return st.Jobs[i].ResourceID < st.Jobs[k].ResourceID })
	return st
}

// RunNow fires one resource immediately, outside its cadence, and waits for
// the cycle. A concurrent cycle for the same resource yields ErrAlreadyRunning
// rather than a second firing.
func (s *Scheduler) RunNow(ctx context.Context, resourceID string) (worker.Result, error) {
	resource, err := s.store.GetResource(ctx, resourceID)
	if err != nil {
		return worker.Result{}, err
	}
	if !s.acquire(resourceID) {
		metrics.ObserveOverlapSkip()
		return worker.Result{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, resourceID)
	}
	defer s.release(resourceID)

	started := s.clock.Now()
	result := s.runner.RunCycle(ctx, resource)
	s.recordRun(ctx, watch.TriggerManual, started, []worker.Result{result})
	return result, nil
}

// RunAll fires every resource immediately and waits for the batch. Resources
// with cycles already in flight are skipped, not queued.
func (s *Scheduler) RunAll(ctx context.Context) (watch.JobRun, error) {
	resources, err := s.store.ListResources(ctx)
	if err != nil {
		return watch.JobRun{}, fmt.Errorf("loading resources: %w", err)
	}

	started := s.clock.Now()
	results := s.runBatch(ctx, resources)
	return s.recordRun(ctx, watch.TriggerManual, started, results), nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopDone)

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

// fire runs every due resource. The batch executes asynchronously so a slow
// cycle never stalls the loop; its job run is recorded when the batch ends.
func (s *Scheduler) fire(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	var due []string
	for id, j := range s.jobs {
		if !j.nextFire.After(now) {
			due = append(due, id)
			j.nextFire = now.Add(j.interval)
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}

	var resources []watch.Resource
	for _, id := range due {
		resource, err := s.store.GetResource(ctx, id)
		if err != nil {
			s.logger.Error("loading due resource", zap.String("resource", id), zap.Error(err))
			continue
		}
		resources = append(resources, resource)
	}

	// Stop only wakes the loop; cycles already dispatched run to completion,
	// so the batch context must not inherit the loop cancel.
	batchCtx := context.WithoutCancel(ctx)

	started := now
	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		results := s.runBatch(batchCtx, resources)
		s.recordRun(batchCtx, watch.TriggerSchedule, started, results)
	}()
}

// runBatch runs cycles for the given resources concurrently and waits for all
// of them. Resources already in flight are skipped with a metric.
func (s *Scheduler) runBatch(ctx context.Context, resources []watch.Resource) []worker.Result {
	var (
		mu      sync.Mutex
		results []worker.Result
		wg      sync.WaitGroup
	)
	for _, resource := range resources {
		if !s.acquire(resource.ID) {
			metrics.ObserveOverlapSkip()
			s.logger.Warn("skipping firing, cycle still in flight",
				zap.String("resource", resource.ID))
			continue
		}
		wg.Add(1)
		go func(resource watch.Resource) {
			defer wg.Done()
			defer s.release(resource.ID)
			result := s.runner.RunCycle(ctx, resource)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(resource)
	}
	wg.Wait()
	return results
}

// acquire marks a resource's cycle as in flight. It never blocks: a false
// return means another cycle holds the slot.
func (s *Scheduler) acquire(resourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[resourceID]; busy {
		return false
	}
	s.inFlight[resourceID] = struct{}{}
	metrics.IncInFlight()
	return true
}

func (s *Scheduler) release(resourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, resourceID)
	metrics.DecInFlight()
}

// recordRun aggregates a batch into one job run row.
func (s *Scheduler) recordRun(ctx context.Context, trigger watch.JobRunTrigger, started time.Time, results []worker.Result) watch.JobRun {
	var failures, changes int
	var firstErr string
	for _, r := range results {
		if r.Err != nil {
			failures++
			if firstErr == "" {
				firstErr = r.Err.Error()
			}
		}
		if r.Changed {
			changes++
		}
	}

	status := watch.JobRunSuccess
	switch {
	case len(results) > 0 && failures == len(results):
		status = watch.JobRunFailure
	case failures > 0:
		status = watch.JobRunPartial
	}

	id, err := s.ids.NewID()
	if err != nil {
		s.logger.Error("generating job run id", zap.Error(err))
		id = fmt.Sprintf("run-%d", started.UnixNano())
	}
	run := watch.JobRun{
		ID:               id,
		Trigger:          trigger,
		StartedAt:        started,
		FinishedAt:       s.clock.Now(),
		Status:           status,
		ResourcesChecked: len(results),
		ChangesDetected:  changes,
		ErrorText:        firstErr,
	}
	if err := s.store.RecordJobRun(ctx, run); err != nil {
		s.logger.Error("recording job run", zap.Error(err))
	}
	return run
}
