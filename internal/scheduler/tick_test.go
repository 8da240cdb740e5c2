package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"festpush/internal/campaign"
	"festpush/internal/notify"
	"festpush/internal/schedule"
	"festpush/internal/storage"
	logx "festpush/pkg/logx"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeSender struct {
	mu       sync.Mutex
	sent     []notify.Notification
	failNext int
}

func (f *fakeSender) Send(ctx context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return errors.New("downstream unavailable")
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeSender) Close() error { return nil }

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestService(t *testing.T, now time.Time, store *storage.Memory, sender notify.Sender) *Service {
	t.Helper()
	return New(Config{
		Enabled:     true,
		Timezone:    "UTC",
		Lookback:    2 * time.Hour,
		Workers:     2,
		SendTimeout: 5 * time.Second,
	}, store, sender, logx.Nop(),
		WithClock(fixedClock{t: now}),
		WithSelector(NewMessageSelectorSeeded(1)))
}

func testPool() campaign.RecurringPool {
	return campaign.RecurringPool{
		ID:          "breakfast",
		Title:       "Breakfast specials",
		StartDate:   "2026-07-13",
		EndDate:     "2026-07-19",
		Repeat:      campaign.RepeatDaily,
		Window:      campaign.Window{From: "10:00", To: "10:30"},
		SlotsPerDay: 3,
		Messages: []campaign.Message{
			{ID: "m1", Text: "pancakes"},
			{ID: "m2", Text: "waffles"},
		},
	}
}

func TestTickDeliversPoolSlotsExactlyOnce(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	store.SeedPools(testPool())
	sender := &fakeSender{}
	// 11:00 with a 2h lookback covers the whole 10:00-10:30 window.
	now := time.Date(2026, 7, 14, 11, 0, 0, 0, time.UTC)
	s := newTestService(t, now, store, sender)

	if err := s.runTick(context.Background()); err != nil {
		t.Fatalf("runTick error: %v", err)
	}
	if got := sender.count(); got != 3 {
		t.Fatalf("expected 3 sends, got %d", got)
	}
	if got := len(store.Entries()); got != 3 {
		t.Fatalf("expected 3 send-log entries, got %d", got)
	}

	// A second tick replays the same evaluation and must send nothing.
	if err := s.runTick(context.Background()); err != nil {
		t.Fatalf("second runTick error: %v", err)
	}
	if got := sender.count(); got != 3 {
		t.Fatalf("expected sends to stay at 3 after replay, got %d", got)
	}

	// Sent slots match the deterministic generator output.
	want, err := schedule.Slots("breakfast", "2026-07-14", "10:00", "10:30", 3)
	if err != nil {
		t.Fatalf("Slots error: %v", err)
	}
	wantSet := map[string]bool{}
	for _, w := range want {
		wantSet[w] = true
	}
	sender.mu.Lock()
	defer sender.mu.Unlock()
	for _, n := range sender.sent {
		if !wantSet[n.Time] {
			t.Fatalf("sent unexpected slot %s, want one of %v", n.Time, want)
		}
		if n.Body != "pancakes" && n.Body != "waffles" {
			t.Fatalf("unexpected body %q", n.Body)
		}
	}
}

func TestTickLookbackBounds(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	store.SeedSingles(campaign.SingleMessage{
		ID:   "gates",
		Text: "gates are open",
		SendTimes: []campaign.SendTime{
			{Date: "2026-07-14", Time: "09:40"}, // 80 min ago: inside lookback
			{Date: "2026-07-14", Time: "08:50"}, // 130 min ago: missed for good
			{Date: "2026-07-14", Time: "12:00"}, // future: not yet
		},
	})
	sender := &fakeSender{}
	now := time.Date(2026, 7, 14, 11, 0, 0, 0, time.UTC)
	s := newTestService(t, now, store, sender)

	if err := s.runTick(context.Background()); err != nil {
		t.Fatalf("runTick error: %v", err)
	}
	if got := sender.count(); got != 1 {
		t.Fatalf("expected exactly 1 send, got %d", got)
	}
	sender.mu.Lock()
	n := sender.sent[0]
	sender.mu.Unlock()
	if n.Time != "09:40" {
		t.Fatalf("sent slot %s, want 09:40", n.Time)
	}
	if n.MessageID != "gates" || n.Body != "gates are open" {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestTickSingleAcrossMidnight(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	store.SeedSingles(campaign.SingleMessage{
		ID:        "late-show",
		Text:      "encore starting",
		SendTimes: []campaign.SendTime{{Date: "2026-07-13", Time: "23:50"}},
	})
	sender := &fakeSender{}
	// Tick shortly after midnight still catches yesterday's send time.
	now := time.Date(2026, 7, 14, 0, 10, 0, 0, time.UTC)
	s := newTestService(t, now, store, sender)

	if err := s.runTick(context.Background()); err != nil {
		t.Fatalf("runTick error: %v", err)
	}
	if got := sender.count(); got != 1 {
		t.Fatalf("expected the pre-midnight slot to fire, got %d sends", got)
	}
}

func TestTickFailedSendRetriedNextTick(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	store.SeedSingles(campaign.SingleMessage{
		ID:        "vip",
		Text:      "lounge open",
		SendTimes: []campaign.SendTime{{Date: "2026-07-14", Time: "10:30"}},
	})
	sender := &fakeSender{failNext: 1}
	now := time.Date(2026, 7, 14, 11, 0, 0, 0, time.UTC)
	s := newTestService(t, now, store, sender)

	if err := s.runTick(context.Background()); err != nil {
		t.Fatalf("runTick error: %v", err)
	}
	if got := sender.count(); got != 0 {
		t.Fatalf("expected no successful sends, got %d", got)
	}
	// A failed send must not be logged, or the retry would be suppressed.
	if got := len(store.Entries()); got != 0 {
		t.Fatalf("expected empty send log after failure, got %d entries", got)
	}

	if err := s.runTick(context.Background()); err != nil {
		t.Fatalf("second runTick error: %v", err)
	}
	if got := sender.count(); got != 1 {
		t.Fatalf("expected retry to deliver, got %d sends", got)
	}
	if got := len(store.Entries()); got != 1 {
		t.Fatalf("expected 1 send-log entry after retry, got %d", got)
	}
}

func TestTickSkipsInvalidCampaign(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	broken := testPool()
	broken.ID = "broken"
	broken.Window = campaign.Window{From: "18:00", To: "10:00"}
	store.SeedPools(broken)
	store.SeedSingles(campaign.SingleMessage{
		ID:        "ok",
		Text:      "still works",
		SendTimes: []campaign.SendTime{{Date: "2026-07-14", Time: "10:30"}},
	})
	sender := &fakeSender{}
	now := time.Date(2026, 7, 14, 11, 0, 0, 0, time.UTC)
	s := newTestService(t, now, store, sender)

	if err := s.runTick(context.Background()); err != nil {
		t.Fatalf("runTick error: %v", err)
	}
	// The broken pool is skipped, the valid single still goes out.
	if got := sender.count(); got != 1 {
		t.Fatalf("expected 1 send, got %d", got)
	}
}

func TestTickRespectsInactiveDays(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	p := testPool()
	p.Repeat = campaign.RepeatCustom
	p.Weekdays = []int{5} // Fridays only; 2026-07-14 is a Tuesday
	store.SeedPools(p)
	sender := &fakeSender{}
	now := time.Date(2026, 7, 14, 11, 0, 0, 0, time.UTC)
	s := newTestService(t, now, store, sender)

	if err := s.runTick(context.Background()); err != nil {
		t.Fatalf("runTick error: %v", err)
	}
	if got := sender.count(); got != 0 {
		t.Fatalf("expected no sends on inactive day, got %d", got)
	}
}

// gatedSender parks the delivery goroutine inside Send until released, so a
// test can hold a tick open at a known point.
type gatedSender struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSender) Send(ctx context.Context, n notify.Notification) error {
	g.entered <- struct{}{}
	<-g.release
	return nil
}

func (g *gatedSender) Close() error { return nil }

func TestOnTickSkipsWhileRunning(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	store.SeedSingles(campaign.SingleMessage{
		ID:        "headline",
		Text:      "main stage now",
		SendTimes: []campaign.SendTime{{Date: "2026-07-14", Time: "10:30"}},
	})
	sender := &gatedSender{entered: make(chan struct{}), release: make(chan struct{})}
	now := time.Date(2026, 7, 14, 11, 0, 0, 0, time.UTC)
	s := newTestService(t, now, store, sender)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.onTick(context.Background())
	}()
	<-sender.entered // first tick is mid-send and still holds the tick lock

	// A minute boundary landing now must return immediately without running.
	s.onTick(context.Background())
	if got := s.Snapshot().Ticks; got != 1 {
		t.Fatalf("expected the overlapping tick to be skipped, ticks = %d", got)
	}

	close(sender.release)
	<-done
	if snap := s.Snapshot(); snap.Ticks != 1 || snap.Sent != 1 {
		t.Fatalf("unexpected snapshot after first tick: %+v", snap)
	}

	// With the lock free again the next tick runs and dedups the slot.
	s.onTick(context.Background())
	if snap := s.Snapshot(); snap.Ticks != 2 || snap.Sent != 1 || snap.Deduped != 1 {
		t.Fatalf("unexpected snapshot after follow-up tick: %+v", snap)
	}
}

// stallSender hangs on one slot until its per-send context expires and
// delivers everything else immediately.
type stallSender struct {
	mu        sync.Mutex
	stallTime string
	sent      []notify.Notification
	stalled   int
}

func (f *stallSender) Send(ctx context.Context, n notify.Notification) error {
	if n.Time == f.stallTime {
		<-ctx.Done()
		f.mu.Lock()
		f.stalled++
		f.mu.Unlock()
		return ctx.Err()
	}
	f.mu.Lock()
	f.sent = append(f.sent, n)
	f.mu.Unlock()
	return nil
}

func (f *stallSender) Close() error { return nil }

func TestTickSlowSendTimesOutWithoutBlockingOthers(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	store.SeedSingles(campaign.SingleMessage{
		ID:   "lineup",
		Text: "schedule change",
		SendTimes: []campaign.SendTime{
			{Date: "2026-07-14", Time: "10:00"},
			{Date: "2026-07-14", Time: "10:10"},
			{Date: "2026-07-14", Time: "10:20"},
		},
	})
	sender := &stallSender{stallTime: "10:00"}
	now := time.Date(2026, 7, 14, 11, 0, 0, 0, time.UTC)
	s := New(Config{
		Enabled:     true,
		Timezone:    "UTC",
		Lookback:    2 * time.Hour,
		Workers:     2,
		SendTimeout: 50 * time.Millisecond,
	}, store, sender, logx.Nop(),
		WithClock(fixedClock{t: now}),
		WithSelector(NewMessageSelectorSeeded(1)))

	start := time.Now()
	if err := s.runTick(context.Background()); err != nil {
		t.Fatalf("runTick error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("tick blocked on the hanging send for %v", elapsed)
	}

	sender.mu.Lock()
	delivered, stalled := len(sender.sent), sender.stalled
	sender.mu.Unlock()
	if delivered != 2 {
		t.Fatalf("expected the 2 healthy slots to deliver, got %d", delivered)
	}
	if stalled != 1 {
		t.Fatalf("expected exactly 1 send to hit the timeout, got %d", stalled)
	}

	// The timed-out slot stays unlogged so a later tick retries it.
	entries := store.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 send-log entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Time == "10:00" {
			t.Fatal("timed-out slot must not be logged as sent")
		}
	}
}

func TestMessageSelectorPick(t *testing.T) {
	t.Parallel()
	sel := NewMessageSelectorSeeded(42)
	if _, ok := sel.Pick(nil); ok {
		t.Fatal("expected no pick from empty pool")
	}
	msgs := []campaign.Message{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		m, ok := sel.Pick(msgs)
		if !ok {
			t.Fatal("expected a pick")
		}
		seen[m.ID] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all messages to be picked over 200 draws, saw %d", len(seen))
	}
}
