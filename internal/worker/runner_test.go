package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	archivememory "github.com/formwatch/formwatch/internal/archive/memory"
	"github.com/formwatch/formwatch/internal/detector"
	hashsha256 "github.com/formwatch/formwatch/internal/hash/sha256"
	"github.com/formwatch/formwatch/internal/metrics"
	"github.com/formwatch/formwatch/internal/notify"
	storememory "github.com/formwatch/formwatch/internal/store/memory"
	"github.com/formwatch/formwatch/internal/watch"
	"github.com/formwatch/formwatch/internal/watch/watchtest"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return string(rune('a'+g.n-1)) + "-event", nil
}

type stubFetcher struct {
	snap watch.Snapshot
	err  error
}

func (f *stubFetcher) Fetch(_ context.Context, _ watch.Resource) (watch.Snapshot, error) {
	return f.snap, f.err
}

type recordingChannel struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (c *recordingChannel) Name() string  { return "recording" }
func (c *recordingChannel) Enabled() bool { return true }

func (c *recordingChannel) Send(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *recordingChannel) messages() []notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Message(nil), c.msgs...)
}

type harness struct {
	runner  *Runner
	store   *storememory.Store
	archive *archivememory.Store
	channel *recordingChannel
}

func newHarness(t *testing.T, fetcher watch.Fetcher, cfg Config) *harness {
	t.Helper()

	hasher := hashsha256.New()
	store := storememory.New()
	arch := archivememory.New()
	channel := &recordingChannel{}
	notifier := notify.New([]notify.Channel{channel}, "", zap.NewNop())
	clock := &fixedClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}

	runner := New(
		store, fetcher, detector.New(hasher), detector.NewKeywordClassifier(),
		notifier, arch, clock, &seqIDs{}, cfg, zap.NewNop(),
	)
	return &harness{runner: runner, store: store, archive: arch, channel: channel}
}

func TestRunCycleDetectsChangeAndNotifies(t *testing.T) {
	h := newHarness(t, &stubFetcher{snap: watch.Snapshot{Text: "revised form body"}}, Config{})
	ctx := context.Background()

	hasher := hashsha256.New()
	oldDigest, err := hasher.HashString("original form body")
	require.NoError(t, err)
	res := watchtest.NewResource("wh-347").Digest(oldDigest).Build()
	require.NoError(t, h.store.UpsertResource(ctx, res))

	result := h.runner.RunCycle(ctx, res)
	require.NoError(t, result.Err)
	require.True(t, result.Changed)
	require.NotNil(t, result.Event)
	require.Equal(t, "content hash changed", result.Event.Description)

	// Digest replaced and event persisted together.
	got, err := h.store.GetResource(ctx, "wh-347")
	require.NoError(t, err)
	newDigest, err := hasher.HashString("revised form body")
	require.NoError(t, err)
	require.Equal(t, newDigest, got.LastDigest)

	changes, err := h.store.ListChanges(ctx, 0)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, result.Event.ID, changes[0].ID)

	// Notification carries the event fields.
	msgs := h.channel.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, res.Name, msgs[0].ResourceName)
	require.Equal(t, "content hash changed", msgs[0].Description)
}

func TestRunCycleNoChange(t *testing.T) {
	body := "stable form body"
	h := newHarness(t, &stubFetcher{snap: watch.Snapshot{Text: body}}, Config{})
	ctx := context.Background()

	digest, err := hashsha256.New().HashString(body)
	require.NoError(t, err)
	res := watchtest.NewResource("wh-347").Digest(digest).Build()
	require.NoError(t, h.store.UpsertResource(ctx, res))

	result := h.runner.RunCycle(ctx, res)
	require.NoError(t, result.Err)
	require.False(t, result.Changed)
	require.Nil(t, result.Event)

	changes, err := h.store.ListChanges(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, changes)
	require.Empty(t, h.channel.messages())

	// Timestamp still advances on a quiet cycle.
	got, err := h.store.GetResource(ctx, "wh-347")
	require.NoError(t, err)
	require.NotNil(t, got.LastCheckedAt)
}

func TestRunCycleFetchFailurePreservesDigest(t *testing.T) {
	fetchErr := watch.NewFetchError(watch.FetchUnreachable, "https://example.gov/form", context.DeadlineExceeded)
	h := newHarness(t, &stubFetcher{err: fetchErr}, Config{})
	ctx := context.Background()

	res := watchtest.NewResource("wh-347").Digest("baseline-digest").Build()
	require.NoError(t, h.store.UpsertResource(ctx, res))

	result := h.runner.RunCycle(ctx, res)
	require.Error(t, result.Err)
	require.False(t, result.Changed)

	got, err := h.store.GetResource(ctx, "wh-347")
	require.NoError(t, err)
	require.Equal(t, "baseline-digest", got.LastDigest, "failed fetch must not lose the baseline")
	require.NotNil(t, got.LastCheckedAt, "failed fetch still advances the check timestamp")

	require.Empty(t, h.channel.messages())
}

func TestRunCycleBaselineIsSilentByDefault(t *testing.T) {
	h := newHarness(t, &stubFetcher{snap: watch.Snapshot{Text: "first observation"}}, Config{})
	ctx := context.Background()

	res := watchtest.NewResource("wh-347").Build() // no digest yet
	require.NoError(t, h.store.UpsertResource(ctx, res))

	result := h.runner.RunCycle(ctx, res)
	require.NoError(t, result.Err)
	require.False(t, result.Changed)
	require.Empty(t, h.channel.messages())

	got, err := h.store.GetResource(ctx, "wh-347")
	require.NoError(t, err)
	require.NotEmpty(t, got.LastDigest, "baseline digest must be recorded")
}

func TestRunCycleBaselineAlertsWhenConfigured(t *testing.T) {
	h := newHarness(t, &stubFetcher{snap: watch.Snapshot{Text: "first observation"}}, Config{AlertOnBaseline: true})
	ctx := context.Background()

	res := watchtest.NewResource("wh-347").Build()
	require.NoError(t, h.store.UpsertResource(ctx, res))

	result := h.runner.RunCycle(ctx, res)
	require.NoError(t, result.Err)
	require.True(t, result.Changed)
	require.NotNil(t, result.Event)
	require.Equal(t, "initial content recorded", result.Event.Description)
	require.Equal(t, watch.SeverityLow, result.Event.Severity)
	require.Len(t, h.channel.messages(), 1)
}

func TestRunCycleArchivesChangedSnapshot(t *testing.T) {
	h := newHarness(t, &stubFetcher{snap: watch.Snapshot{Text: "revised form body"}}, Config{})
	ctx := context.Background()

	res := watchtest.NewResource("wh-347").Digest("old-digest").Build()
	require.NoError(t, h.store.UpsertResource(ctx, res))

	result := h.runner.RunCycle(ctx, res)
	require.NoError(t, result.Err)
	require.NotNil(t, result.Event)
	require.NotEmpty(t, result.Event.SnapshotURI)
	require.Equal(t, 1, h.archive.Len())
}

func TestRunCycleDocumentChangeHasNoArchive(t *testing.T) {
	// Document fetches carry only a digest; there is no text to archive.
	h := newHarness(t, &stubFetcher{snap: watch.Snapshot{Digest: "pdf-digest-v2"}}, Config{})
	ctx := context.Background()

	res := watchtest.NewResource("wh-347").Mode(watch.ModeDocument).Digest("pdf-digest-v1").Build()
	require.NoError(t, h.store.UpsertResource(ctx, res))

	result := h.runner.RunCycle(ctx, res)
	require.NoError(t, result.Err)
	require.NotNil(t, result.Event)
	require.Empty(t, result.Event.SnapshotURI)
	require.Zero(t, h.archive.Len())
}
