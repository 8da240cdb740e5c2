package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"festpush/internal/campaign"
	logx "festpush/pkg/logx"
)

func openTestStore(t *testing.T) *sqliteStore {
	t.Helper()
	st, err := Open(Config{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "festpush.db"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st.(*sqliteStore)
}

func TestSQLiteCampaignRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.db.ExecContext(ctx, `
		INSERT INTO pool_campaigns(id, title, start_date, end_date, repeat, weekdays, window_from, window_to, slots_per_day)
		VALUES ('p1', 'Food stands', '2026-07-13', '2026-07-19', 'custom', '1,3,5', '11:00', '20:00', 4)`)
	if err != nil {
		t.Fatalf("insert pool: %v", err)
	}
	_, err = st.db.ExecContext(ctx, `
		INSERT INTO pool_messages(campaign_id, id, text, pos) VALUES
		('p1', 'm1', 'Try the noodles', 0),
		('p1', 'm2', 'Happy hour at the taps', 1)`)
	if err != nil {
		t.Fatalf("insert messages: %v", err)
	}
	_, err = st.db.ExecContext(ctx, `
		INSERT INTO single_campaigns(id, title, text) VALUES ('s1', 'Headliner', 'Main stage in 30 minutes')`)
	if err != nil {
		t.Fatalf("insert single: %v", err)
	}
	_, err = st.db.ExecContext(ctx, `
		INSERT INTO single_send_times(campaign_id, date, time) VALUES
		('s1', '2026-07-14', '21:30'), ('s1', '2026-07-15', '21:30')`)
	if err != nil {
		t.Fatalf("insert send times: %v", err)
	}

	pools, err := st.ListRecurringPools(ctx)
	if err != nil {
		t.Fatalf("ListRecurringPools: %v", err)
	}
	if len(pools) != 1 {
		t.Fatalf("expected 1 pool, got %d", len(pools))
	}
	p := pools[0]
	if p.ID != "p1" || p.Repeat != campaign.RepeatCustom || p.SlotsPerDay != 4 {
		t.Fatalf("pool mismatch: %+v", p)
	}
	if len(p.Weekdays) != 3 || p.Weekdays[0] != 1 || p.Weekdays[2] != 5 {
		t.Fatalf("weekdays mismatch: %v", p.Weekdays)
	}
	if len(p.Messages) != 2 || p.Messages[0].ID != "m1" {
		t.Fatalf("messages mismatch: %+v", p.Messages)
	}

	singles, err := st.ListSingleMessages(ctx)
	if err != nil {
		t.Fatalf("ListSingleMessages: %v", err)
	}
	if len(singles) != 1 || len(singles[0].SendTimes) != 2 {
		t.Fatalf("singles mismatch: %+v", singles)
	}
}

func TestSQLiteSendLogIdempotent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	sent, err := st.WasSent(ctx, campaign.KindPool, "p1", "2026-07-14", "12:34")
	if err != nil {
		t.Fatalf("WasSent: %v", err)
	}
	if sent {
		t.Fatal("fresh slot reported as sent")
	}

	entry := SentEntry{
		Kind:       string(campaign.KindPool),
		CampaignID: "p1",
		Date:       "2026-07-14",
		Time:       "12:34",
		MessageID:  "m1",
		SentAt:     time.Date(2026, 7, 14, 12, 34, 5, 0, time.UTC),
	}
	if err := st.LogSent(ctx, entry); err != nil {
		t.Fatalf("LogSent: %v", err)
	}
	// A replayed insert with a different message id must be a no-op.
	entry.MessageID = "m2"
	if err := st.LogSent(ctx, entry); err != nil {
		t.Fatalf("replayed LogSent: %v", err)
	}

	sent, err = st.WasSent(ctx, campaign.KindPool, "p1", "2026-07-14", "12:34")
	if err != nil {
		t.Fatalf("WasSent after log: %v", err)
	}
	if !sent {
		t.Fatal("logged slot not reported as sent")
	}

	var messageID string
	if err := st.db.QueryRowContext(ctx,
		`SELECT message_id FROM sent_log WHERE campaign_id = 'p1'`).Scan(&messageID); err != nil {
		t.Fatalf("read row: %v", err)
	}
	if messageID != "m1" {
		t.Fatalf("replay overwrote message_id: got %s", messageID)
	}

	// The same slot under the other kind is a distinct key.
	sent, err = st.WasSent(ctx, campaign.KindSingle, "p1", "2026-07-14", "12:34")
	if err != nil {
		t.Fatalf("WasSent other kind: %v", err)
	}
	if sent {
		t.Fatal("kind must be part of the slot key")
	}
}
