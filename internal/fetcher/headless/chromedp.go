// Package headless fetches script-rendered pages via a headless browser.
package headless

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/formwatch/formwatch/internal/watch"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// Fetcher implements watch.Fetcher using chromedp and headless Chrome. Every
// Fetch launches its own browser instance and tears it down on all exit
// paths, so no render state leaks between resources.
type Fetcher struct {
	cfg     Config
	limiter chan struct{}
}

// New creates a headless fetcher backed by chromedp.
func New(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}
	return &Fetcher{cfg: cfg, limiter: limiter}, nil
}

// Fetch renders the resource URL and returns the visible document text.
func (f *Fetcher) Fetch(ctx context.Context, resource watch.Resource) (watch.Snapshot, error) {
	url := resource.TargetURL()

	if err := f.acquire(ctx); err != nil {
		return watch.Snapshot{}, watch.NewFetchError(watch.FetchTimeout, url, err)
	}
	defer f.release()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, browserOptions()...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	text, err := f.render(taskCtx, url)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return watch.Snapshot{}, watch.NewFetchError(watch.FetchTimeout, url, err)
		}
		return watch.Snapshot{}, watch.NewFetchError(watch.FetchRenderFailure, url, err)
	}
	if strings.TrimSpace(text) == "" {
		return watch.Snapshot{}, watch.NewFetchError(watch.FetchRenderFailure, url,
			errors.New("rendered document is empty"))
	}
	return watch.Snapshot{Text: text}, nil
}

func (f *Fetcher) render(ctx context.Context, url string) (string, error) {
	var text string
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Text("body", &text, chromedp.ByQuery),
	}
	if f.cfg.UserAgent != "" {
		actions = append([]chromedp.Action{
			chromedp.ActionFunc(func(ctx context.Context) error {
				if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
					return fmt.Errorf("set user-agent: %w", err)
				}
				return nil
			}),
		}, actions...)
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return text, nil
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

func browserOptions() []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
}
