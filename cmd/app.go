// Package cmd defines and implements the CLI commands for the formwatch
// executable.
package cmd

import (
	"context"
	"fmt"
	"strings"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/formwatch/formwatch/internal/archive"
	archivegcs "github.com/formwatch/formwatch/internal/archive/gcs"
	archivelocal "github.com/formwatch/formwatch/internal/archive/local"
	"github.com/formwatch/formwatch/internal/clock/system"
	"github.com/formwatch/formwatch/internal/config"
	"github.com/formwatch/formwatch/internal/detector"
	"github.com/formwatch/formwatch/internal/fetcher"
	collyfetcher "github.com/formwatch/formwatch/internal/fetcher/colly"
	documentfetcher "github.com/formwatch/formwatch/internal/fetcher/document"
	headlessfetcher "github.com/formwatch/formwatch/internal/fetcher/headless"
	"github.com/formwatch/formwatch/internal/hash/sha256"
	"github.com/formwatch/formwatch/internal/id/uuid"
	"github.com/formwatch/formwatch/internal/logging"
	"github.com/formwatch/formwatch/internal/metrics"
	"github.com/formwatch/formwatch/internal/notify"
	"github.com/formwatch/formwatch/internal/scheduler"
	storememory "github.com/formwatch/formwatch/internal/store/memory"
	storepostgres "github.com/formwatch/formwatch/internal/store/postgres"
	"github.com/formwatch/formwatch/internal/watch"
	"github.com/formwatch/formwatch/internal/worker"
)

// app holds every wired subsystem a command might need.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	store     watch.Store
	runner    *worker.Runner
	scheduler *scheduler.Scheduler
	notifier  *notify.Notifier

	closers []func()
}

// newApp builds the full service graph from the config file.
func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() {
		_ = logger.Sync()
	})

	if err := a.buildStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildPipeline(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close tears subsystems down in reverse construction order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) buildStore(ctx context.Context) error {
	switch a.cfg.DB.Provider {
	case "postgres":
		pg, err := storepostgres.New(ctx, storepostgres.Config{
			DSN:      a.cfg.DB.DSN,
			MaxConns: a.cfg.DB.MaxConns,
			MinConns: a.cfg.DB.MinConns,
		})
		if err != nil {
			return fmt.Errorf("connect store: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return fmt.Errorf("migrate store: %w", err)
		}
		a.store = pg
		a.closers = append(a.closers, pg.Close)
	case "memory", "":
		// The in-memory store starts empty on every boot, so it is seeded
		// from the config file here rather than by an explicit load run.
		mem := storememory.New()
		if err := seedStore(ctx, mem, a.cfg.Agencies); err != nil {
			return err
		}
		a.store = mem
	default:
		return fmt.Errorf("unknown db provider %q", a.cfg.DB.Provider)
	}
	return nil
}

func (a *app) buildPipeline(ctx context.Context) error {
	hasher := sha256.New()
	clock := system.New()
	ids := uuid.NewGenerator()

	plain := collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.Fetch.UserAgent,
		Timeout:   a.cfg.FetchTimeout(),
	})
	rendered, err := headlessfetcher.New(headlessfetcher.Config{
		MaxParallel:       a.cfg.Headless.MaxParallel,
		UserAgent:         a.cfg.Fetch.UserAgent,
		NavigationTimeout: a.cfg.NavTimeout(),
	})
	if err != nil {
		return fmt.Errorf("init headless fetcher: %w", err)
	}
	document := documentfetcher.New(documentfetcher.Config{
		UserAgent: a.cfg.Fetch.UserAgent,
		Timeout:   a.cfg.FetchTimeout(),
	})
	router := fetcher.NewRouter(plain, rendered, document)

	arch, err := a.buildArchive(ctx)
	if err != nil {
		return err
	}

	notifier, err := a.buildNotifier(ctx)
	if err != nil {
		return err
	}
	a.notifier = notifier

	a.runner = worker.New(
		a.store, router,
		detector.New(hasher), detector.NewKeywordClassifier(),
		notifier, arch, clock, ids,
		worker.Config{AlertOnBaseline: a.cfg.Monitor.AlertOnBaseline},
		logging.Component(a.logger, "worker"),
	)
	a.scheduler = scheduler.New(
		a.store, a.runner, clock, ids,
		scheduler.Config{Tick: a.cfg.Tick(), InitialDelay: a.cfg.InitialDelay()},
		logging.Component(a.logger, "scheduler"),
	)
	return nil
}

func (a *app) buildArchive(ctx context.Context) (archive.Store, error) {
	switch a.cfg.Archive.Provider {
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func() {
			_ = client.Close()
		})
		return archivegcs.New(client, a.cfg.Archive.GCSBucket, a.cfg.Archive.Prefix)
	case "local":
		return archivelocal.New(a.cfg.Archive.LocalDir, a.cfg.Archive.Prefix)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown archive provider %q", a.cfg.Archive.Provider)
	}
}

func (a *app) buildNotifier(ctx context.Context) (*notify.Notifier, error) {
	pubsubCh, err := notify.NewPubSub(ctx, a.cfg.Notify.PubSub)
	if err != nil {
		return nil, fmt.Errorf("init pubsub channel: %w", err)
	}
	channels := []notify.Channel{
		notify.NewEmail(a.cfg.Notify.Email),
		notify.NewSlack(a.cfg.Notify.Slack),
		notify.NewTeams(a.cfg.Notify.Teams),
		pubsubCh,
	}
	return notify.New(channels, a.cfg.Notify.DashboardBaseURL, logging.Component(a.logger, "notify")), nil
}

// seedStore upserts the agencies and resources declared in the config file.
func seedStore(ctx context.Context, store watch.Store, agencies map[string]config.AgencySeed) error {
	for agencyID, seed := range agencies {
		err := store.UpsertAgency(ctx, watch.Agency{
			ID:           agencyID,
			Name:         seed.Name,
			Abbreviation: seed.Abbreviation,
			BaseURL:      seed.BaseURL,
			ContactEmail: seed.ContactEmail,
			ContactPhone: seed.ContactPhone,
		})
		if err != nil {
			return fmt.Errorf("seed agency %s: %w", agencyID, err)
		}

		for _, r := range seed.Resources {
			mode := watch.FetchMode(r.Mode)
			if mode == "" {
				mode = watch.ModeStatic
			}
			cadence := watch.Cadence(r.Cadence)
			if cadence == "" {
				cadence = watch.CadenceWeekly
			}
			err := store.UpsertResource(ctx, watch.Resource{
				ID:         resourceID(agencyID, r.Name),
				AgencyID:   agencyID,
				AgencyName: seed.Name,
				Name:       r.Name,
				Title:      r.Title,
				PrimaryURL: r.URL,
				ContentURL: r.ContentURL,
				Mode:       mode,
				Cadence:    cadence,
			})
			if err != nil {
				return fmt.Errorf("seed resource %s: %w", r.Name, err)
			}
		}
	}
	return nil
}

// resourceID derives a stable store id from the agency and form name.
func resourceID(agencyID, name string) string {
	slug := strings.ToLower(name)
	slug = strings.NewReplacer(" ", "-", "/", "-", "_", "-").Replace(slug)
	return agencyID + "-" + slug
}
