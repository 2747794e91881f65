package fetcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/formwatch/formwatch/internal/watch"
	"github.com/formwatch/formwatch/internal/watch/watchtest"
)

type recordingFetcher struct {
	name  string
	calls int
}

func (r *recordingFetcher) Fetch(_ context.Context, _ watch.Resource) (watch.Snapshot, error) {
	r.calls++
	return watch.Snapshot{Text: r.name}, nil
}

func TestRouterDispatchesByMode(t *testing.T) {
	t.Parallel()

	plain := &recordingFetcher{name: "plain"}
	rendered := &recordingFetcher{name: "rendered"}
	document := &recordingFetcher{name: "document"}
	router := NewRouter(plain, rendered, document)

	cases := []struct {
		mode watch.FetchMode
		want string
	}{
		{watch.ModeStatic, "plain"},
		{watch.ModeRendered, "rendered"},
		{watch.ModeDocument, "document"},
		{watch.FetchMode("unknown"), "plain"},
	}
	for _, tc := range cases {
		resource := watchtest.NewResource("r1").Mode(tc.mode).Build()
		snap, err := router.Fetch(context.Background(), resource)
		require.NoError(t, err)
		require.Equal(t, tc.want, snap.Text, "mode %q", tc.mode)
	}
}

func TestRouterFallsBackWhenModeFetcherMissing(t *testing.T) {
	t.Parallel()

	plain := &recordingFetcher{name: "plain"}
	router := NewRouter(plain, nil, nil)

	resource := watchtest.NewResource("r1").Mode(watch.ModeRendered).Build()
	snap, err := router.Fetch(context.Background(), resource)
	require.NoError(t, err)
	require.Equal(t, "plain", snap.Text)
}
