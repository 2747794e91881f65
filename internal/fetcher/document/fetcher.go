// Package document fetches binary documents as streaming digests.
package document

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/formwatch/formwatch/internal/hash/sha256"
	"github.com/formwatch/formwatch/internal/watch"
)

// Config controls document fetch behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements watch.Fetcher for binary documents (PDFs and similar).
// The body streams straight through a SHA-256 digest, so a multi-hundred-MB
// document never sits in memory.
type Fetcher struct {
	cfg    Config
	client *http.Client
	hasher *sha256.Hasher
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		hasher: sha256.New(),
	}
}

// Fetch downloads the document and returns only its digest.
func (f *Fetcher) Fetch(ctx context.Context, resource watch.Resource) (watch.Snapshot, error) {
	url := resource.TargetURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return watch.Snapshot{}, watch.NewFetchError(watch.FetchUnreachable, url, err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return watch.Snapshot{}, classify(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return watch.Snapshot{}, watch.NewFetchError(watch.FetchUnreachable, url,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	digest, _, err := f.hasher.HashReader(resp.Body)
	if err != nil {
		return watch.Snapshot{}, classify(url, err)
	}
	return watch.Snapshot{Digest: digest}, nil
}

func classify(url string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return watch.NewFetchError(watch.FetchTimeout, url, err)
	}
	return watch.NewFetchError(watch.FetchUnreachable, url, err)
}
