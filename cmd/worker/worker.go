package main

import (
	"context"
	"os"
	"time"

	"sage/internal/domain/homologation"
	"sage/pkg/logger"
)

const (
	defaultMatchInterval   = time.Hour
	defaultCleanupInterval = time.Hour
)

// Homologation is the periodic work of the homologation service.
type Homologation interface {
	SendReportIfDue(ctx context.Context) (bool, error)
	AutoMatch(ctx context.Context) ([]homologation.MatchReport, error)
}

// KeyPurger removes expired idempotency keys.
type KeyPurger interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// WorkerConfig sets the job intervals.
type WorkerConfig struct {
	// Tick drives the report check; the report itself follows the
	// configured frequency.
	Tick            time.Duration
	MatchInterval   time.Duration
	CleanupInterval time.Duration
}

// Worker runs the scheduled homologation report, auto-matching and
// idempotency key cleanup.
type Worker struct {
	cfg   WorkerConfig
	homol Homologation
	keys  KeyPurger
	log   *logger.Logger
}

func NewWorker(cfg WorkerConfig, h Homologation, keys KeyPurger, log *logger.Logger) *Worker {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Minute
	}
	if cfg.MatchInterval <= 0 {
		cfg.MatchInterval = defaultMatchInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	return &Worker{cfg: cfg, homol: h, keys: keys, log: log.WithComponent("worker")}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	tick := time.NewTicker(w.cfg.Tick)
	defer tick.Stop()
	match := time.NewTicker(w.cfg.MatchInterval)
	defer match.Stop()
	cleanup := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanup.Stop()

	w.report(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			w.report(ctx)
		case <-match.C:
			w.autoMatch(ctx)
		case <-cleanup.C:
			w.cleanup(ctx)
		}
	}
}

func (w *Worker) report(ctx context.Context) {
	sent, err := w.homol.SendReportIfDue(ctx)
	if err != nil {
		w.log.Errorw("homologation report failed", "error", err)
		return
	}
	if sent {
		w.log.Info("homologation report sent")
	}
}

func (w *Worker) autoMatch(ctx context.Context) {
	start := time.Now()
	reports, err := w.homol.AutoMatch(ctx)
	if err != nil {
		w.log.Errorw("auto-match failed", "error", err)
		return
	}
	w.log.Infow("auto-match finished", "matched", len(reports), "duration", time.Since(start))
}

func (w *Worker) cleanup(ctx context.Context) {
	n, err := w.keys.CleanupExpired(ctx)
	if err != nil {
		w.log.Warnw("idempotency cleanup failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("expired idempotency keys removed", "count", n)
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
