package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": embedded database file (Path)
//   - "postgres": shared database with the admin app (DSN)
//   - "memory": in-process store, campaigns seeded by hand (dev/dry-run)
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// SentEntry is one row of the send log. The message id is recorded for
// auditing but is not part of the dedup key: the slot identity alone decides
// whether a slot has been handled, so a re-evaluation that would pick a
// different message can never double-send.
type SentEntry struct {
	Kind       string
	CampaignID string
	Date       string // "2006-01-02"
	Time       string // "HH:mm"
	MessageID  string
	SentAt     time.Time
}
