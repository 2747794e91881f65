package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/formwatch/formwatch/internal/detector"
	hashsha256 "github.com/formwatch/formwatch/internal/hash/sha256"
	"github.com/formwatch/formwatch/internal/metrics"
	"github.com/formwatch/formwatch/internal/notify"
	storememory "github.com/formwatch/formwatch/internal/store/memory"
	"github.com/formwatch/formwatch/internal/watch"
	"github.com/formwatch/formwatch/internal/watch/watchtest"
	"github.com/formwatch/formwatch/internal/worker"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return time.Now().Format("150405.000000000") + string(rune('a'+g.n%26)), nil
}

// blockingFetcher parks every Fetch until released, so tests can hold a cycle
// in flight deliberately.
type blockingFetcher struct {
	started chan string
	release chan struct{}
	err     error
}

func (f *blockingFetcher) Fetch(ctx context.Context, r watch.Resource) (watch.Snapshot, error) {
	if f.started != nil {
		f.started <- r.ID
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return watch.Snapshot{}, ctx.Err()
		}
	}
	if f.err != nil {
		return watch.Snapshot{}, f.err
	}
	return watch.Snapshot{Text: "body for " + r.ID}, nil
}

func newScheduler(t *testing.T, store watch.Store, fetcher watch.Fetcher, clock watch.Clock, cfg Config) *Scheduler {
	t.Helper()
	runner := worker.New(
		store, fetcher,
		detector.New(hashsha256.New()), detector.NewKeywordClassifier(),
		notify.New(nil, "", zap.NewNop()),
		nil, clock, &seqIDs{}, worker.Config{}, zap.NewNop(),
	)
	return New(store, runner, clock, &seqIDs{}, cfg, zap.NewNop())
}

func seedResource(t *testing.T, store *storememory.Store, id string, cadence watch.Cadence) {
	t.Helper()
	res := watchtest.NewResource(id).Cadence(cadence).Build()
	require.NoError(t, store.UpsertResource(context.Background(), res))
}

func TestRunNowRejectsOverlappingCycle(t *testing.T) {
	store := storememory.New()
	seedResource(t, store, "wh-347", watch.CadenceDaily)

	fetcher := &blockingFetcher{started: make(chan string, 1), release: make(chan struct{})}
	clock := &manualClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	s := newScheduler(t, store, fetcher, clock, Config{Tick: time.Hour})

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.RunNow(context.Background(), "wh-347")
		firstDone <- err
	}()

	// Wait until the first cycle is actually inside the fetch.
	<-fetcher.started

	_, err := s.RunNow(context.Background(), "wh-347")
	require.ErrorIs(t, err, ErrAlreadyRunning)

	close(fetcher.release)
	require.NoError(t, <-firstDone)

	// With the first cycle finished the resource can fire again.
	fetcher.release = nil
	fetcher.started = nil
	_, err = s.RunNow(context.Background(), "wh-347")
	require.NoError(t, err)
}

func TestRunNowUnknownResource(t *testing.T) {
	store := storememory.New()
	clock := &manualClock{now: time.Now().UTC()}
	s := newScheduler(t, store, &blockingFetcher{}, clock, Config{Tick: time.Hour})

	_, err := s.RunNow(context.Background(), "ghost")
	require.Error(t, err)
}

func TestRunAllRecordsJobRun(t *testing.T) {
	store := storememory.New()
	seedResource(t, store, "wh-347", watch.CadenceDaily)
	seedResource(t, store, "a1-131", watch.CadenceWeekly)

	clock := &manualClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	s := newScheduler(t, store, &blockingFetcher{}, clock, Config{Tick: time.Hour})

	run, err := s.RunAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, watch.TriggerManual, run.Trigger)
	require.Equal(t, watch.JobRunSuccess, run.Status)
	require.Equal(t, 2, run.ResourcesChecked)

	runs := store.JobRuns()
	require.Len(t, runs, 1)
	require.Equal(t, run.ID, runs[0].ID)
}

func TestRunAllPartialStatusOnMixedFailures(t *testing.T) {
	store := storememory.New()
	seedResource(t, store, "wh-347", watch.CadenceDaily)

	// First seed succeeds with a healthy fetcher, then fail every fetch for a
	// second resource by switching the fetcher error on.
	clock := &manualClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}

	calls := 0
	var mu sync.Mutex
	fetcher := fetchFunc(func(ctx context.Context, r watch.Resource) (watch.Snapshot, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n%2 == 0 {
			return watch.Snapshot{}, watch.NewFetchError(watch.FetchUnreachable, r.PrimaryURL, errors.New("connection refused"))
		}
		return watch.Snapshot{Text: "ok"}, nil
	})
	seedResource(t, store, "a1-131", watch.CadenceWeekly)
	s := newScheduler(t, store, fetcher, clock, Config{Tick: time.Hour})

	run, err := s.RunAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, watch.JobRunPartial, run.Status)
	require.Equal(t, 2, run.ResourcesChecked)
	require.NotEmpty(t, run.ErrorText)
}

type fetchFunc func(ctx context.Context, r watch.Resource) (watch.Snapshot, error)

func (f fetchFunc) Fetch(ctx context.Context, r watch.Resource) (watch.Snapshot, error) {
	return f(ctx, r)
}

func TestReloadPreservesNextFire(t *testing.T) {
	store := storememory.New()
	seedResource(t, store, "wh-347", watch.CadenceDaily)

	clock := &manualClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	s := newScheduler(t, store, &blockingFetcher{}, clock, Config{Tick: time.Hour, InitialDelay: time.Minute})

	require.NoError(t, s.Reload(context.Background()))
	first := s.Status().Jobs
	require.Len(t, first, 1)
	wantFire := clock.Now().Add(time.Minute)
	require.True(t, first[0].NextFire.Equal(wantFire))

	// A later reload must not reset the pending fire time.
	clock.Advance(30 * time.Second)
	seedResource(t, store, "a1-131", watch.CadenceWeekly)
	require.NoError(t, s.Reload(context.Background()))

	jobs := s.Status().Jobs
	require.Len(t, jobs, 2)
	require.Equal(t, "a1-131", jobs[0].ResourceID)
	require.True(t, jobs[0].NextFire.Equal(clock.Now().Add(time.Minute)), "new job starts after initial delay")
	require.Equal(t, "wh-347", jobs[1].ResourceID)
	require.True(t, jobs[1].NextFire.Equal(wantFire), "existing job keeps its fire time")
}

func TestReloadDropsRemovedResources(t *testing.T) {
	store := storememory.New()
	seedResource(t, store, "wh-347", watch.CadenceDaily)

	clock := &manualClock{now: time.Now().UTC()}
	s := newScheduler(t, store, &blockingFetcher{}, clock, Config{Tick: time.Hour})
	require.NoError(t, s.Reload(context.Background()))
	require.Len(t, s.Status().Jobs, 1)

	// Simulate a registry rebuilt without the resource.
	fresh := storememory.New()
	s.store = fresh
	require.NoError(t, s.Reload(context.Background()))
	require.Empty(t, s.Status().Jobs)
}

func TestUnknownCadenceDefaultsToWeekly(t *testing.T) {
	store := storememory.New()
	res := watchtest.NewResource("odd-form").Cadence(watch.Cadence("fortnightly")).Build()
	require.NoError(t, store.UpsertResource(context.Background(), res))

	clock := &manualClock{now: time.Now().UTC()}
	s := newScheduler(t, store, &blockingFetcher{}, clock, Config{Tick: time.Hour})
	require.NoError(t, s.Reload(context.Background()))

	jobs := s.Status().Jobs
	require.Len(t, jobs, 1)
	require.Equal(t, 7*24*time.Hour, jobs[0].Interval)
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	store := storememory.New()
	seedResource(t, store, "wh-347", watch.CadenceDaily)

	clock := &manualClock{now: time.Now().UTC()}
	s := newScheduler(t, store, &blockingFetcher{}, clock, Config{Tick: time.Hour, InitialDelay: time.Hour})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.True(t, s.Running())

	s.Stop()
	s.Stop()
	require.False(t, s.Running())

	// A stopped scheduler can be started again.
	require.NoError(t, s.Start(context.Background()))
	require.True(t, s.Running())
	s.Stop()
}

func TestStopDoesNotCancelInFlightCycles(t *testing.T) {
	store := storememory.New()
	seedResource(t, store, "wh-347", watch.CadenceDaily)

	started := make(chan struct{})
	release := make(chan struct{})
	ctxErr := make(chan error, 1)
	fetcher := fetchFunc(func(ctx context.Context, r watch.Resource) (watch.Snapshot, error) {
		close(started)
		<-release
		ctxErr <- ctx.Err()
		return watch.Snapshot{Text: "ok"}, nil
	})

	clock := &manualClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	s := newScheduler(t, store, fetcher, clock, Config{Tick: 5 * time.Millisecond})
	require.NoError(t, s.Start(context.Background()))

	// Wait for the scheduled firing to park inside the fetch, then stop the
	// scheduler underneath it.
	<-started
	stopDone := make(chan struct{})
	go func() {
		s.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.Fatal("Stop returned while a cycle was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-stopDone

	// The cycle finished cleanly: its context survived the shutdown and the
	// run was recorded as a success, not a cancellation failure.
	require.NoError(t, <-ctxErr)
	runs := store.JobRuns()
	require.Len(t, runs, 1)
	require.Equal(t, watch.JobRunSuccess, runs[0].Status)
}

func TestFireSkipsResourcesStillInFlight(t *testing.T) {
	store := storememory.New()
	seedResource(t, store, "wh-347", watch.CadenceDaily)

	fetcher := &blockingFetcher{started: make(chan string, 2), release: make(chan struct{})}
	clock := &manualClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	s := newScheduler(t, store, fetcher, clock, Config{Tick: time.Hour})
	require.NoError(t, s.Reload(context.Background()))

	// First firing parks inside the fetch.
	s.fire(context.Background())
	<-fetcher.started

	// Force the job due again and fire: the in-flight cycle must be skipped,
	// not doubled.
	clock.Advance(48 * time.Hour)
	s.fire(context.Background())

	select {
	case id := <-fetcher.started:
		t.Fatalf("second cycle started for %s while first was in flight", id)
	case <-time.After(100 * time.Millisecond):
	}

	close(fetcher.release)
	s.cycles.Wait()

	// Both firings are accounted for: one ran, one was skipped with an empty
	// batch.
	runs := store.JobRuns()
	require.Len(t, runs, 2)
}
