// Package service wires the stores, cache and remote clients into the
// long-running behaviors of the app: scheduled maintenance, offline
// snapshots, connectivity probing, local search and request supersession.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kaede-io/anibox/internal/bookmarks"
	"github.com/kaede-io/anibox/internal/cache"
	"github.com/kaede-io/anibox/internal/progress"
)

// probeTimeout bounds the connectivity check so a dead network answers fast.
const probeTimeout = 3 * time.Second

// Orchestrator runs the periodic maintenance checkpoint: mirror local state
// for offline bootstrap, sweep expired cache entries, and clean finished
// episodes out of the continue-watching projection.
type Orchestrator struct {
	bookmarks *bookmarks.Store
	progress  *progress.Tracker
	cache     *cache.Cache
	logger    *slog.Logger

	probeURL    string
	probeClient *http.Client

	cron *cron.Cron
}

// NewOrchestrator creates the maintenance orchestrator. probeURL should be a
// cheap known-good endpoint; it is only ever issued a GET.
func NewOrchestrator(bm *bookmarks.Store, tracker *progress.Tracker, c *cache.Cache, probeURL string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		bookmarks: bm,
		progress:  tracker,
		cache:     c,
		logger:    logger,
		probeURL:  probeURL,
		probeClient: &http.Client{
			Timeout: probeTimeout,
		},
		cron: cron.New(),
	}
}

// OfflineSnapshot mirrors the current bookmarks and watch progress into the
// cache so the app can boot with local state while unreachable.
func (o *Orchestrator) OfflineSnapshot() {
	o.cache.MirrorBookmarks(o.bookmarks.List())
	o.cache.MirrorWatchProgress(o.progress.AllRecords())
	o.logger.Debug("offline snapshot written")
}

// IsOffline probes the configured endpoint with a 3 second budget. Timeout,
// transport failure or a non-2xx status all count as offline.
func (o *Orchestrator) IsOffline(ctx context.Context) bool {
	if o.probeURL == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.probeURL, nil)
	if err != nil {
		return true
	}

	resp, err := o.probeClient.Do(req)
	if err != nil {
		o.logger.Debug("connectivity probe failed", "error", err)
		return true
	}
	defer resp.Body.Close()

	return resp.StatusCode < 200 || resp.StatusCode >= 300
}

// RunMaintenance performs one maintenance checkpoint.
func (o *Orchestrator) RunMaintenance() {
	swept := o.cache.SweepExpired()
	cleaned := o.progress.CleanupFinishedEpisodes()
	o.OfflineSnapshot()

	if o.cache.OverBudget() {
		stats := o.cache.Stats()
		o.logger.Warn("cache over size budget", "bytes", stats.TotalBytes)
	}

	o.logger.Info("maintenance checkpoint", "sweptEntries", swept, "cleanedEpisodes", cleaned)
}

// Start schedules RunMaintenance on the given cron expression and runs one
// checkpoint immediately.
func (o *Orchestrator) Start(schedule string) error {
	if _, err := o.cron.AddFunc(schedule, o.RunMaintenance); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}
	o.cron.Start()
	go o.RunMaintenance()
	return nil
}

// Stop halts the schedule and waits for a running checkpoint to finish.
func (o *Orchestrator) Stop() {
	ctx := o.cron.Stop()
	<-ctx.Done()
}
