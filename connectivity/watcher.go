// Package connectivity turns periodic health probes into the recorder's
// "became reachable" / "became unreachable" signals.
package connectivity

import (
	"context"
	"time"

	"github.com/MaldivaSky/mercadinhosys-sub003/jsonlog"
	"github.com/MaldivaSky/mercadinhosys-sub003/models"
)

type Prober interface {
	Ping(ctx context.Context) error
}

type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Ping(ctx context.Context) error { return f(ctx) }

// Target receives the signals; *ponto.Recorder implements it.
type Target interface {
	Reachable(ctx context.Context) (models.DrainReport, error)
	Unreachable()
}

type Config struct {
	Interval     time.Duration // probe period (e.g. 15s)
	ProbeTimeout time.Duration // per-probe deadline (e.g. 5s)
}

func DefaultConfig() Config {
	return Config{
		Interval:     15 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// CheckOnce probes once and forwards the result. It reports whether the API
// answered.
func CheckOnce(ctx context.Context, probe Prober, target Target, cfg Config, logger *jsonlog.Logger) bool {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = jsonlog.Discard()
	}

	pctx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	err := probe.Ping(pctx)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		target.Unreachable()
		return false
	}

	report, err := target.Reachable(ctx)
	if err != nil {
		logger.Warn("reconnect_drain_failed", map[string]any{
			"confirmed": len(report.Confirmed),
			"pending":   report.Pending,
			"err":       err,
		})
	} else if len(report.Confirmed) > 0 {
		logger.Info("reconnect_drain_done", map[string]any{"confirmed": len(report.Confirmed)})
	}
	return true
}

// Run probes right away and then every cfg.Interval until ctx is cancelled.
func Run(ctx context.Context, probe Prober, target Target, cfg Config, logger *jsonlog.Logger) {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if logger == nil {
		logger = jsonlog.Discard()
	}

	logger.Info("connectivity_watcher_started", map[string]any{"interval": cfg.Interval.String()})
	CheckOnce(ctx, probe, target, cfg, logger)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("connectivity_watcher_stopping", map[string]any{"err": ctx.Err()})
			return
		case <-ticker.C:
			CheckOnce(ctx, probe, target, cfg, logger)
		}
	}
}
