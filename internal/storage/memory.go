package storage

import (
	"context"
	"sync"
	"time"

	"festpush/internal/campaign"
)

// Memory is an in-process store. It backs the "memory" driver for dry runs
// and is the fake of choice in tests.
type Memory struct {
	mu      sync.Mutex
	pools   []campaign.RecurringPool
	singles []campaign.SingleMessage
	sent    map[string]SentEntry
}

func NewMemory() *Memory {
	return &Memory{sent: map[string]SentEntry{}}
}

func (m *Memory) SeedPools(pools ...campaign.RecurringPool) {
	m.mu.Lock()
	m.pools = append(m.pools, pools...)
	m.mu.Unlock()
}

func (m *Memory) SeedSingles(singles ...campaign.SingleMessage) {
	m.mu.Lock()
	m.singles = append(m.singles, singles...)
	m.mu.Unlock()
}

func (m *Memory) ListRecurringPools(ctx context.Context) ([]campaign.RecurringPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]campaign.RecurringPool(nil), m.pools...), nil
}

func (m *Memory) ListSingleMessages(ctx context.Context) ([]campaign.SingleMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]campaign.SingleMessage(nil), m.singles...), nil
}

func (m *Memory) WasSent(ctx context.Context, kind campaign.Kind, campaignID, date, timeOfDay string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sent[slotKey(kind, campaignID, date, timeOfDay)]
	return ok, nil
}

func (m *Memory) LogSent(ctx context.Context, e SentEntry) error {
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := slotKey(campaign.Kind(e.Kind), e.CampaignID, e.Date, e.Time)
	if _, ok := m.sent[key]; !ok {
		m.sent[key] = e
	}
	return nil
}

// Entries returns a copy of the send log (test helper).
func (m *Memory) Entries() []SentEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentEntry, 0, len(m.sent))
	for _, e := range m.sent {
		out = append(out, e)
	}
	return out
}

func (m *Memory) Close() error { return nil }

func slotKey(kind campaign.Kind, campaignID, date, timeOfDay string) string {
	return string(kind) + "|" + campaignID + "|" + date + "|" + timeOfDay
}
