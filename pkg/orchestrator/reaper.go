package orchestrator

import (
	"context"
	"time"

	"github.com/tailot/taylored-orchestrator/pkg/log"
	"github.com/tailot/taylored-orchestrator/pkg/metrics"
	"github.com/tailot/taylored-orchestrator/pkg/registry"
	"github.com/tailot/taylored-orchestrator/pkg/runtime"
	"github.com/tailot/taylored-orchestrator/pkg/storage"
	"github.com/tailot/taylored-orchestrator/pkg/types"
)

// ReaperConfig configures a Reaper.
type ReaperConfig struct {
	Registry *registry.Registry
	Driver   runtime.Driver
	Store    *storage.BoltStore

	// SweepInterval is how often the reaper checks for expired runners.
	// Defaults to 30s if zero.
	SweepInterval time.Duration

	// InactivityTimeout is how long a runner may sit idle before the
	// reaper stops and removes it. Defaults to 60s if zero.
	InactivityTimeout time.Duration
}

// Reaper periodically removes runners that have exceeded their
// inactivity timeout.
type Reaper struct {
	cfg    ReaperConfig
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewReaper constructs a Reaper from cfg, filling in defaults.
func NewReaper(cfg ReaperConfig) *Reaper {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.InactivityTimeout == 0 {
		cfg.InactivityTimeout = 60 * time.Second
	}
	return &Reaper{
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the sweep loop in a background goroutine.
func (r *Reaper) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop halts the sweep loop and waits for it to exit.
func (r *Reaper) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep removes every runner whose last activity is older than the
// configured inactivity timeout. Errors are logged, never surfaced:
// the reaper runs unattended and must never block on a single bad
// container.
func (r *Reaper) sweep(ctx context.Context) {
	metrics.ReaperSweepsTotal.Inc()
	now := time.Now()

	for _, run := range r.cfg.Registry.Snapshot() {
		if !run.Expired(now, r.cfg.InactivityTimeout) {
			continue
		}

		logger := log.WithSessionID(run.SessionID)
		handle := runtime.Handle{ID: run.ContainerID}

		if err := r.cfg.Driver.Stop(ctx, handle); err != nil {
			logger.Warn("reaper: failed to stop expired runner container")
		}
		if err := r.cfg.Driver.Remove(ctx, handle); err != nil {
			logger.Warn("reaper: failed to remove expired runner container")
		}

		r.cfg.Registry.Remove(run.SessionID)
		if r.cfg.Store != nil {
			if err := r.cfg.Store.Delete(run.SessionID); err != nil {
				logger.Warn("reaper: failed to delete persisted runner record")
			}
		}

		metrics.ReaperReapedTotal.Inc()
		logger.Info("reaper: reaped expired runner")
	}
}

// Reconcile runs once at orchestrator startup, before requests are
// served. It lists driver-visible containers carrying the session-id
// label and compares them against any registry snapshot loaded from
// storage: containers with no matching record are removed as orphans,
// and records with no matching container are dropped rather than
// leaked forever, mirroring the reconcile-then-reap shape used
// elsewhere in the pack for session-scoped container cleanup.
func (r *Reaper) Reconcile(ctx context.Context) error {
	live, err := r.cfg.Driver.ListBySessionLabel(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]types.Runner)
	if r.cfg.Store != nil {
		records, err := r.cfg.Store.LoadAll()
		if err != nil {
			return err
		}
		for _, rec := range records {
			known[rec.SessionID] = rec
		}
	} else {
		for _, run := range r.cfg.Registry.Snapshot() {
			known[run.SessionID] = run
		}
	}

	for sessionID, handle := range live {
		rec, ok := known[sessionID]
		if !ok {
			log.WithSessionID(sessionID).Warn("reconcile: orphan container with no registry record, removing")
			if err := r.cfg.Driver.Remove(ctx, handle); err != nil {
				log.WithSessionID(sessionID).Warn("reconcile: failed to remove orphan container")
			}
			metrics.ReaperReconciledTotal.WithLabelValues("orphan_container").Inc()
			continue
		}
		rec.ContainerID = handle.ID
		r.cfg.Registry.Insert(sessionID, rec)
	}

	for sessionID := range known {
		if _, ok := live[sessionID]; ok {
			continue
		}
		log.WithSessionID(sessionID).Warn("reconcile: registry record with no live container, dropping")
		r.cfg.Registry.Remove(sessionID)
		if r.cfg.Store != nil {
			if err := r.cfg.Store.Delete(sessionID); err != nil {
				log.WithSessionID(sessionID).Warn("reconcile: failed to delete dangling record")
			}
		}
		metrics.ReaperReconciledTotal.WithLabelValues("dangling_record").Inc()
	}

	return nil
}
