// Package worker executes one monitoring cycle for one resource: fetch,
// detect, persist, archive, notify — in that order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/formwatch/formwatch/internal/archive"
	"github.com/formwatch/formwatch/internal/detector"
	"github.com/formwatch/formwatch/internal/metrics"
	"github.com/formwatch/formwatch/internal/notify"
	"github.com/formwatch/formwatch/internal/watch"
)

// Config carries the cycle policy knobs.
type Config struct {
	// AlertOnBaseline controls whether the first-ever observation of a
	// resource fires notifications. Off by default: onboarding a catalog of
	// resources should not page anyone.
	AlertOnBaseline bool
}

// Runner runs monitoring cycles. It is safe for concurrent use across
// different resources; callers serialize cycles for the same resource.
type Runner struct {
	store      watch.Store
	fetcher    watch.Fetcher
	detector   *detector.Detector
	classifier detector.Classifier
	notifier   *notify.Notifier
	archive    archive.Store
	clock      watch.Clock
	ids        watch.IDGenerator
	cfg        Config
	logger     *zap.Logger
}

// New wires a Runner. The archive may be nil when snapshot archiving is off.
func New(
	store watch.Store,
	fetcher watch.Fetcher,
	det *detector.Detector,
	classifier detector.Classifier,
	notifier *notify.Notifier,
	arch archive.Store,
	clock watch.Clock,
	ids watch.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:      store,
		fetcher:    fetcher,
		detector:   det,
		classifier: classifier,
		notifier:   notifier,
		archive:    arch,
		clock:      clock,
		ids:        ids,
		cfg:        cfg,
		logger:     logger,
	}
}

// Result summarizes one cycle for the scheduler's job accounting.
type Result struct {
	ResourceID string
	Changed    bool
	Event      *watch.ChangeEvent
	Err        error
}

// RunCycle executes one full cycle for the resource. The returned error is
// also carried in the Result; callers only need one of the two.
func (r *Runner) RunCycle(ctx context.Context, resource watch.Resource) Result {
	started := r.clock.Now()
	log := r.logger.With(
		zap.String("resource", resource.ID),
		zap.String("mode", string(resource.Mode)),
	)

	snap, err := r.fetcher.Fetch(ctx, resource)
	if err != nil {
		return r.failCycle(ctx, resource, started, log, err)
	}

	verdict, err := r.detector.Detect(resource.LastDigest, snap)
	if err != nil {
		return r.failCycle(ctx, resource, started, log, err)
	}

	checkedAt := r.clock.Now()
	event, err := r.eventFor(ctx, resource, snap, verdict, checkedAt)
	if err != nil {
		return r.failCycle(ctx, resource, started, log, err)
	}

	if err := r.store.RecordCycle(ctx, resource.ID, verdict.NewDigest, checkedAt, event); err != nil {
		return r.failCycle(ctx, resource, started, log, fmt.Errorf("persisting cycle: %w", err))
	}

	// Notify only after the event is durable, so every alert a reviewer
	// receives has a matching store row.
	if event != nil {
		r.notifier.Send(ctx, *event)
		metrics.ObserveChange(string(event.Severity))
		log.Info("change detected",
			zap.String("severity", string(event.Severity)),
			zap.String("description", event.Description),
		)
	} else {
		log.Debug("cycle complete", zap.String("description", verdict.Description))
	}

	metrics.ObserveCycle(string(resource.Mode), "success", r.clock.Now().Sub(started))
	return Result{ResourceID: resource.ID, Changed: event != nil, Event: event}
}

// eventFor decides whether the verdict becomes a change event and builds it.
func (r *Runner) eventFor(
	ctx context.Context,
	resource watch.Resource,
	snap watch.Snapshot,
	verdict detector.Verdict,
	checkedAt time.Time,
) (*watch.ChangeEvent, error) {
	alert := verdict.Changed || (verdict.Baseline && r.cfg.AlertOnBaseline)
	if !alert {
		return nil, nil
	}

	id, err := r.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generating event id: %w", err)
	}

	severity := r.classifier.Classify(verdict.Description, resource.Title)
	if verdict.Baseline {
		// First observations are informational, not actionable.
		severity = watch.SeverityLow
	}

	event := &watch.ChangeEvent{
		ID:           id,
		ResourceID:   resource.ID,
		ResourceName: resource.Name,
		AgencyName:   resource.AgencyName,
		URL:          resource.TargetURL(),
		Timestamp:    checkedAt,
		Description:  verdict.Description,
		Severity:     severity,
	}

	if r.archive != nil && snap.Text != "" {
		path := archive.ObjectPath(resource.ID, verdict.NewDigest, checkedAt)
		uri, err := r.archive.Put(ctx, path, "text/plain; charset=utf-8", strings.NewReader(snap.Text))
		if err != nil {
			// The cycle proceeds without a snapshot; the event itself is
			// more important than its archive copy.
			r.logger.Warn("archiving snapshot failed",
				zap.String("resource", resource.ID), zap.Error(err))
		} else {
			event.SnapshotURI = uri
		}
	}
	return event, nil
}

// failCycle records a failed cycle: the old digest is written back unchanged
// so the baseline survives, but the check timestamp still advances.
func (r *Runner) failCycle(
	ctx context.Context,
	resource watch.Resource,
	started time.Time,
	log *zap.Logger,
	cause error,
) Result {
	var fetchErr *watch.FetchError
	if errors.As(cause, &fetchErr) {
		metrics.ObserveFetchFailure(string(fetchErr.Kind))
	}

	if err := r.store.UpdateDigest(ctx, resource.ID, resource.LastDigest, r.clock.Now()); err != nil {
		log.Error("recording failed cycle", zap.Error(err))
	}

	metrics.ObserveCycle(string(resource.Mode), "failure", r.clock.Now().Sub(started))
	log.Warn("cycle failed", zap.Error(cause))
	return Result{ResourceID: resource.ID, Err: cause}
}
