package config

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
	Notify    NotifyConfig    `json:"notify"`
	Metrics   *MetricsConfig  `json:"metrics,omitempty"`
	Pprof     *PprofConfig    `json:"pprof,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the campaign tick loop.
//
// All durations are Go duration strings (e.g. "10s", "2h").
//
// Timezone is the festival's local IANA timezone (e.g. "Europe/Berlin").
// Every calendar/weekday decision is made in this zone, never in the host
// zone, so campaigns don't drift across day boundaries for servers deployed
// elsewhere.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`

	Timezone string `json:"timezone,omitempty"`

	// Lookback is the trailing window re-checked on every tick so that a
	// missed or delayed tick is not a lost notification. Default "2h".
	Lookback string `json:"lookback,omitempty"`

	// Workers is the per-tick fan-out for campaign evaluation. Default 4.
	Workers int `json:"workers,omitempty"`

	// SendTimeout bounds a single delivery call. Default "10s".
	SendTimeout string `json:"send_timeout,omitempty"`
}

// StorageConfig selects the database holding campaign definitions and the
// send log.
//
// Driver values:
//   - "sqlite": embedded database file (Path)
//   - "postgres": shared database with the admin app (DSN)
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// NotifyConfig selects the delivery hand-off.
//
// Driver values:
//   - "amqp": publish to a RabbitMQ queue consumed by the web-push worker
//   - "webhook": POST to an internal push-gateway URL
//   - "log": dry-run (log only)
type NotifyConfig struct {
	Driver     string `json:"driver"`
	URL        string `json:"url,omitempty"`         // amqp
	Queue      string `json:"queue,omitempty"`       // amqp
	WebhookURL string `json:"webhook_url,omitempty"` // webhook
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	Timeout    string `json:"timeout,omitempty"` // per-request (webhook/amqp publish)
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9180"
	Path    string `json:"path,omitempty"` // default: "/metrics"
}

// PprofConfig controls the optional pprof HTTP server. Prefer binding to
// localhost; a non-loopback bind requires allow_insecure.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"` // default: "127.0.0.1:6060"
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}
