package storage

import (
	"context"
	"errors"
	"strings"

	"festpush/internal/campaign"
	logx "festpush/pkg/logx"
)

// Store is the persistence API used by the scheduler.
//
// Campaign queries are read-only snapshots; the send-log pair is the
// idempotency contract: WasSent looks up the slot key exactly, LogSent
// inserts exactly once and tolerates replays (a duplicate insert is not an
// error).
type Store interface {
	ListRecurringPools(ctx context.Context) ([]campaign.RecurringPool, error)
	ListSingleMessages(ctx context.Context) ([]campaign.SingleMessage, error)

	WasSent(ctx context.Context, kind campaign.Kind, campaignID, date, timeOfDay string) (bool, error)
	LogSent(ctx context.Context, e SentEntry) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "postgres", "pg":
		return openPostgres(cfg, log)
	case "memory":
		return NewMemory(), nil
	case "", "none":
		return nil, ErrDisabled
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
