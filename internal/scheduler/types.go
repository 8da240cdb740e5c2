package scheduler

import "time"

// Config controls the tick runner.
type Config struct {
	Enabled     bool
	Timezone    string // IANA name; all campaign dates and times live here
	Lookback    time.Duration
	Workers     int
	SendTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Lookback <= 0 {
		c.Lookback = 2 * time.Hour
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Snapshot is the runner's state for status reporting.
type Snapshot struct {
	Running  bool
	Timezone string
	LastTick time.Time
	Ticks    uint64
	Sent     uint64
	Deduped  uint64
	Failed   uint64
}
