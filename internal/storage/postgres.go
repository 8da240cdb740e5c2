package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"festpush/internal/campaign"
	logx "festpush/pkg/logx"
)

// postgresStore reads campaigns from the database the admin app writes to
// and keeps the send log next to them. The campaign schema is owned by the
// admin app; only the sent_log table is ensured on open.
type postgresStore struct {
	db  *sql.DB
	log logx.Logger
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	st := &postgresStore{db: db, log: log}
	if err := st.ensureSentLog(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *postgresStore) ensureSentLog(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sent_log (
			kind        TEXT NOT NULL,
			campaign_id TEXT NOT NULL,
			date        TEXT NOT NULL,
			time        TEXT NOT NULL,
			message_id  TEXT NOT NULL,
			sent_at     TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (kind, campaign_id, date, time)
		)`)
	return err
}

func (s *postgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *postgresStore) ListRecurringPools(ctx context.Context) ([]campaign.RecurringPool, error) {
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
		if p.Weekdays, err = parseWeekdays(weekdays); err != nil {
			return nil, err
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

func (s *postgresStore) poolMessages(ctx context.Context, poolID string) ([]campaign.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text FROM pool_messages WHERE campaign_id = $1 ORDER BY pos, id`, poolID)
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

func (s *postgresStore) ListSingleMessages(ctx context.Context) ([]campaign.SingleMessage, error) {
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
		rows, err := s.db.QueryContext(ctx,
			`SELECT date, time FROM single_send_times WHERE campaign_id = $1 ORDER BY date, time`,
			singles[i].ID)
		if err != nil {
			return nil, err
		}
		var times []campaign.SendTime
		for rows.Next() {
			var st campaign.SendTime
			if err := rows.Scan(&st.Date, &st.Time); err != nil {
				rows.Close()
				return nil, err
			}
			times = append(times, st)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
		singles[i].SendTimes = times
	}
	return singles, nil
}

func (s *postgresStore) WasSent(ctx context.Context, kind campaign.Kind, campaignID, date, timeOfDay string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sent_log WHERE kind = $1 AND campaign_id = $2 AND date = $3 AND time = $4`,
		string(kind), campaignID, date, timeOfDay).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *postgresStore) LogSent(ctx context.Context, e SentEntry) error {
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sent_log(kind, campaign_id, date, time, message_id, sent_at)
		 VALUES($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (kind, campaign_id, date, time) DO NOTHING`,
		e.Kind, e.CampaignID, e.Date, e.Time, e.MessageID, e.SentAt)
	return err
}
