package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"festpush/internal/campaign"
	"festpush/internal/eventbus"
	"festpush/internal/notify"
	"festpush/internal/schedule"
	"festpush/internal/storage"
	logx "festpush/pkg/logx"
)

var errEmptyPool = errors.New("pool has no messages")

// slotJob is one due slot waiting for delivery.
type slotJob struct {
	kind       campaign.Kind
	campaignID string
	date       string
	timeOfDay  string
	title      string
	body       string // empty for pools; chosen at send time
	messages   []campaign.Message
}

// SlotRef identifies a slot in bus events without carrying the message body.
type SlotRef struct {
	Kind       string `json:"kind"`
	CampaignID string `json:"campaign_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

func (j slotJob) slotRef() SlotRef {
	return SlotRef{Kind: string(j.kind), CampaignID: j.campaignID, Date: j.date, Time: j.timeOfDay}
}

// runTick collects every due slot and delivers the ones the send log does
// not know yet.
func (s *Service) runTick(ctx context.Context) error {
	s.mu.Lock()
	cfg := s.cfg
	loc := s.loc
	s.mu.Unlock()

	now := s.clock.Now().In(loc)

	s.stats.Lock()
	s.stats.lastTick = now
	s.stats.ticks++
	s.stats.Unlock()

	pools, err := s.store.ListRecurringPools(ctx)
	if err != nil {
		return err
	}
	singles, err := s.store.ListSingleMessages(ctx)
	if err != nil {
		return err
	}

	var jobs []slotJob
	for i := range pools {
		due, err := s.duePoolSlots(&pools[i], now, cfg.Lookback, loc)
		if err != nil {
			s.skipCampaign(string(campaign.KindPool), pools[i].ID, err)
			continue
		}
		jobs = append(jobs, due...)
	}
	for i := range singles {
		due, err := s.dueSingleSlots(&singles[i], now, cfg.Lookback, loc)
		if err != nil {
			s.skipCampaign(string(campaign.KindSingle), singles[i].ID, err)
			continue
		}
		jobs = append(jobs, due...)
	}

	if len(jobs) == 0 {
		return nil
	}
	s.log.Debug("tick found due slots", logx.Int("count", len(jobs)),
		logx.Time("now", now))

	s.deliverAll(ctx, cfg, now, jobs)
	return nil
}

// duePoolSlots regenerates today's slot set for the pool and keeps the slots
// inside the lookback. Slots for other days never fire: yesterday's set was
// a different shuffle and is gone for good.
func (s *Service) duePoolSlots(p *campaign.RecurringPool, now time.Time, lookback time.Duration, loc *time.Location) ([]slotJob, error) {
	if err := p.Validate(loc); err != nil {
		return nil, err
	}
	active, err := schedule.IsActive(p, now)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, nil
	}

	date := now.Format(campaign.DateLayout)
	slots, err := schedule.Slots(p.ID, date, p.Window.From, p.Window.To, p.SlotsPerDay)
	if err != nil {
		return nil, err
	}

	var jobs []slotJob
	for _, slot := range slots {
		if !s.isDue(now, date, slot, lookback, loc) {
			continue
		}
		jobs = append(jobs, slotJob{
			kind:       campaign.KindPool,
			campaignID: p.ID,
			date:       date,
			timeOfDay:  slot,
			title:      p.Title,
			messages:   p.Messages,
		})
	}
	return jobs, nil
}

// dueSingleSlots checks each explicit send time against its own date, so a
// send time just before midnight is still caught by a tick just after.
func (s *Service) dueSingleSlots(c *campaign.SingleMessage, now time.Time, lookback time.Duration, loc *time.Location) ([]slotJob, error) {
	if err := c.Validate(loc); err != nil {
		return nil, err
	}

	var jobs []slotJob
	seen := make(map[campaign.SendTime]bool, len(c.SendTimes))
	for _, st := range c.SendTimes {
		// A duplicated send time is one slot, not two; within a tick the
		// send log can't be relied on to catch the second copy in flight.
		if seen[st] {
			continue
		}
		seen[st] = true
		if !s.isDue(now, st.Date, st.Time, lookback, loc) {
			continue
		}
		jobs = append(jobs, slotJob{
			kind:       campaign.KindSingle,
			campaignID: c.ID,
			date:       st.Date,
			timeOfDay:  st.Time,
			title:      c.Title,
			body:       c.Text,
		})
	}
	return jobs, nil
}

// isDue reports whether the slot's wall time is in (now-lookback, now].
// Future slots wait; slots older than the lookback are considered missed
// and stay unsent.
func (s *Service) isDue(now time.Time, date, timeOfDay string, lookback time.Duration, loc *time.Location) bool {
	day, err := campaign.ParseDate(date, loc)
	if err != nil {
		return false
	}
	minute, err := campaign.ParseHHMM(timeOfDay)
	if err != nil {
		return false
	}
	slotTime := day.Add(time.Duration(minute) * time.Minute)
	age := now.Sub(slotTime)
	return age >= 0 && age < lookback
}

func (s *Service) skipCampaign(kind, id string, err error) {
	s.log.Warn("skipping misconfigured campaign",
		logx.String("kind", kind), logx.String("campaign", id), logx.Err(err))
	if s.met != nil {
		s.met.CampaignsSkipped.Inc()
	}
}

// deliverAll fans the due slots out over the worker pool. Each slot is
// delivered at most once per tick; the send log keeps it at most once ever.
func (s *Service) deliverAll(ctx context.Context, cfg Config, now time.Time, jobs []slotJob) {
	ch := make(chan slotJob)
	var wg sync.WaitGroup
	workers := cfg.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range ch {
				s.deliverOne(ctx, cfg, now, j)
			}
		}()
	}
	for _, j := range jobs {
		select {
		case ch <- j:
		case <-ctx.Done():
			close(ch)
			wg.Wait()
			return
		}
	}
	close(ch)
	wg.Wait()
}

func (s *Service) deliverOne(ctx context.Context, cfg Config, now time.Time, j slotJob) {
	sent, err := s.store.WasSent(ctx, j.kind, j.campaignID, j.date, j.timeOfDay)
	if err != nil {
		s.log.Error("send-log lookup failed", logx.String("campaign", j.campaignID), logx.Err(err))
		if s.met != nil {
			s.met.SentLogErrors.Inc()
		}
		return
	}
	if sent {
		s.stats.Lock()
		s.stats.deduped++
		s.stats.Unlock()
		if s.met != nil {
			s.met.DedupHits.Inc()
		}
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: "push.deduped", Time: time.Now(), Data: j.slotRef()})
		}
		return
	}

	n := notify.Notification{
		Kind:       string(j.kind),
		CampaignID: j.campaignID,
		Date:       j.date,
		Time:       j.timeOfDay,
		Title:      j.title,
		Body:       j.body,
		At:         now,
	}
	if j.kind == campaign.KindPool {
		msg, ok := s.sel.Pick(j.messages)
		if !ok {
			s.skipCampaign(string(j.kind), j.campaignID, errEmptyPool)
			return
		}
		n.MessageID = msg.ID
		n.Body = msg.Text
	} else {
		n.MessageID = j.campaignID
	}

	sendCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	err = s.sender.Send(sendCtx, n)
	cancel()
	if err != nil {
		// Leave the slot unlogged; the next tick retries it while it is
		// still inside the lookback.
		s.log.Warn("send failed", logx.String("kind", n.Kind),
			logx.String("campaign", n.CampaignID), logx.String("slot", n.Date+" "+n.Time),
			logx.Err(err))
		s.stats.Lock()
		s.stats.failed++
		s.stats.Unlock()
		if s.met != nil {
			s.met.SendFailures.WithLabelValues(n.Kind).Inc()
		}
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: "push.failed", Time: time.Now(), Data: j.slotRef()})
		}
		return
	}

	if err := s.store.LogSent(ctx, storage.SentEntry{
		Kind:       string(j.kind),
		CampaignID: j.campaignID,
		Date:       j.date,
		Time:       j.timeOfDay,
		MessageID:  n.MessageID,
		SentAt:     now,
	}); err != nil {
		// Delivered but not recorded. The next tick may send a duplicate;
		// that is the documented trade-off of logging after delivery.
		s.log.Error("send-log write failed", logx.String("campaign", j.campaignID), logx.Err(err))
		if s.met != nil {
			s.met.SentLogErrors.Inc()
		}
	}

	s.stats.Lock()
	s.stats.sent++
	s.stats.Unlock()
	if s.met != nil {
		s.met.Sends.WithLabelValues(n.Kind).Inc()
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: "push.sent", Time: time.Now(), Data: n})
	}
	s.log.Info("notification sent", logx.String("kind", n.Kind),
		logx.String("campaign", n.CampaignID), logx.String("slot", n.Date+" "+n.Time),
		logx.String("message", n.MessageID))
}
