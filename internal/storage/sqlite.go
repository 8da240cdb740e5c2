package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"festpush/internal/campaign"
	logx "festpush/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) ListRecurringPools(ctx context.Context) ([]campaign.RecurringPool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, start_date, end_date, repeat, weekdays, window_from, window_to, slots_per_day
		 FROM pool_campaigns ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []campaign.RecurringPool
	for rows.Next() {
		var p campaign.RecurringPool
		var weekdays string
		if err := rows.Scan(&p.ID, &p.Title, &p.StartDate, &p.EndDate, (*string)(&p.Repeat),
			&weekdays, &p.Window.From, &p.Window.To, &p.SlotsPerDay); err != nil {
			return nil, err
		}
		p.Weekdays, err = parseWeekdays(weekdays)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", p.ID, err)
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range pools {
		msgs, err := s.poolMessages(ctx, pools[i].ID)
		if err != nil {
			return nil, err
		}
		pools[i].Messages = msgs
	}
	return pools, nil
}

func (s *sqliteStore) poolMessages(ctx context.Context, poolID string) ([]campaign.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text FROM pool_messages WHERE campaign_id = ? ORDER BY pos, id`, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []campaign.Message
	for rows.Next() {
		var m campaign.Message
		if err := rows.Scan(&m.ID, &m.Text); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *sqliteStore) ListSingleMessages(ctx context.Context) ([]campaign.SingleMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, text FROM single_campaigns ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var singles []campaign.SingleMessage
	for rows.Next() {
		var c campaign.SingleMessage
		if err := rows.Scan(&c.ID, &c.Title, &c.Text); err != nil {
			return nil, err
		}
		singles = append(singles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range singles {
		times, err := s.sendTimes(ctx, singles[i].ID)
		if err != nil {
			return nil, err
		}
		singles[i].SendTimes = times
	}
	return singles, nil
}

func (s *sqliteStore) sendTimes(ctx context.Context, id string) ([]campaign.SendTime, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, time FROM single_send_times WHERE campaign_id = ? ORDER BY date, time`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []campaign.SendTime
	for rows.Next() {
		var st campaign.SendTime
		if err := rows.Scan(&st.Date, &st.Time); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *sqliteStore) WasSent(ctx context.Context, kind campaign.Kind, campaignID, date, timeOfDay string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sent_log WHERE kind = ? AND campaign_id = ? AND date = ? AND time = ?`,
		string(kind), campaignID, date, timeOfDay).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) LogSent(ctx context.Context, e SentEntry) error {
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sent_log(kind, campaign_id, date, time, message_id, sent_at)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(kind, campaign_id, date, time) DO NOTHING`,
		e.Kind, e.CampaignID, e.Date, e.Time, e.MessageID, e.SentAt.Format(time.RFC3339))
	return err
}

func parseWeekdays(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad weekday list %q", s)
		}
		out = append(out, d)
	}
	return out, nil
}
