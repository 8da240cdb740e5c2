package app

import (
	"fmt"
	"strings"
	"time"

	"festpush/internal/config"
	"festpush/internal/notify"
	"festpush/internal/observability/metrics"
	"festpush/internal/observability/pprof"
	"festpush/internal/scheduler"
	"festpush/internal/storage"
)

// The mapping functions translate the wire config (strings, omitted fields)
// into per-service configs. Each one validates as it maps, so the config
// manager can reject a bad hot-reload before anything is applied.

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	lookback, err := config.ParseDurationOrDefault("scheduler.lookback", cfg.Scheduler.Lookback, 2*time.Hour)
	if err != nil {
		return scheduler.Config{}, err
	}
	sendTimeout, err := config.ParseDurationOrDefault("scheduler.send_timeout", cfg.Scheduler.SendTimeout, 10*time.Second)
	if err != nil {
		return scheduler.Config{}, err
	}
	if cfg.Scheduler.Workers < 0 {
		return scheduler.Config{}, fmt.Errorf("scheduler.workers must be >= 0")
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return scheduler.Config{}, fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	return scheduler.Config{
		Enabled:     cfg.Scheduler.Enabled,
		Timezone:    cfg.Scheduler.Timezone,
		Lookback:    lookback,
		Workers:     cfg.Scheduler.Workers,
		SendTimeout: sendTimeout,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch driver {
	case "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required for sqlite")
		}
	case "postgres", "pg":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return storage.Config{}, fmt.Errorf("storage.dsn is required for postgres")
		}
	case "memory":
	case "":
		return storage.Config{}, fmt.Errorf("storage.driver is required")
	default:
		return storage.Config{}, fmt.Errorf("storage.driver: unknown %q", cfg.Storage.Driver)
	}
	return storage.Config{
		Driver:      driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		BusyTimeout: busy,
	}, nil
}

func mapNotifyConfig(cfg *config.Config) (notify.Config, error) {
	timeout, err := config.ParseDurationOrDefault("notify.timeout", cfg.Notify.Timeout, 10*time.Second)
	if err != nil {
		return notify.Config{}, err
	}
	if cfg.Notify.RatePerSec < 0 {
		return notify.Config{}, fmt.Errorf("notify.rate_per_sec must be >= 0")
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Notify.Driver))
	switch driver {
	case "amqp":
		if strings.TrimSpace(cfg.Notify.URL) == "" {
			return notify.Config{}, fmt.Errorf("notify.url is required for amqp")
		}
	case "webhook":
		if strings.TrimSpace(cfg.Notify.WebhookURL) == "" {
			return notify.Config{}, fmt.Errorf("notify.webhook_url is required for webhook")
		}
	case "log", "":
	default:
		return notify.Config{}, fmt.Errorf("notify.driver: unknown %q", cfg.Notify.Driver)
	}
	return notify.Config{
		Driver:     driver,
		URL:        cfg.Notify.URL,
		Queue:      cfg.Notify.Queue,
		WebhookURL: cfg.Notify.WebhookURL,
		RatePerSec: cfg.Notify.RatePerSec,
		Timeout:    timeout,
	}, nil
}

func mapMetricsConfig(cfg *config.Config) metrics.Config {
	if cfg.Metrics == nil {
		return metrics.Config{}
	}
	return metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
	}
}

func mapPprofConfig(cfg *config.Config) pprof.Config {
	if cfg.Pprof == nil {
		return pprof.Config{}
	}
	return pprof.Config{
		Enabled:       cfg.Pprof.Enabled,
		Addr:          cfg.Pprof.Addr,
		AllowInsecure: cfg.Pprof.AllowInsecure,
	}
}
