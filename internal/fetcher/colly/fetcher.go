// Package collyfetcher implements the plain HTTP fetch path using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/formwatch/formwatch/internal/watch"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements watch.Fetcher for static pages using a Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single GET and returns the body as text. Any transport
// error, non-2xx status, or caller cancellation is an unreachable fetch
// error; deadline expiry is a timeout.
func (f *Fetcher) Fetch(ctx context.Context, resource watch.Resource) (watch.Snapshot, error) {
	url := resource.TargetURL()

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		// The collector's request timeout bounds the orphaned Visit; the
		// buffered channel lets its goroutine exit once it finishes.
		return watch.Snapshot{}, classify(url, ctx.Err())
	case visitErr := <-done:
		if err := firstError(fetchErr, visitErr); err != nil {
			return watch.Snapshot{}, classify(url, err)
		}
	}

	if status < 200 || status >= 300 {
		return watch.Snapshot{}, watch.NewFetchError(watch.FetchUnreachable, url,
			errors.New(http.StatusText(status)))
	}
	return watch.Snapshot{Text: string(body)}, nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func classify(url string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return watch.NewFetchError(watch.FetchTimeout, url, err)
	}
	return watch.NewFetchError(watch.FetchUnreachable, url, err)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
