// Package fetcher routes each resource to the fetch path its mode requires.
package fetcher

import (
	"context"

	"github.com/formwatch/formwatch/internal/watch"
)

// Router implements watch.Fetcher by dispatching on the resource's fetch
// mode: static pages over plain HTTP, script-built pages through the headless
// renderer, binary documents through the streaming digest path.
type Router struct {
	plain    watch.Fetcher
	rendered watch.Fetcher
	document watch.Fetcher
}

// NewRouter builds a Router from the three mode-specific fetchers.
func NewRouter(plain, rendered, document watch.Fetcher) *Router {
	return &Router{
		plain:    plain,
		rendered: rendered,
		document: document,
	}
}

// Fetch dispatches to the fetcher for the resource's mode. Unknown modes use
// the plain path.
func (r *Router) Fetch(ctx context.Context, resource watch.Resource) (watch.Snapshot, error) {
	switch resource.Mode {
	case watch.ModeRendered:
		if r.rendered != nil {
			return r.rendered.Fetch(ctx, resource)
		}
	case watch.ModeDocument:
		if r.document != nil {
			return r.document.Fetch(ctx, resource)
		}
	}
	return r.plain.Fetch(ctx, resource)
}
