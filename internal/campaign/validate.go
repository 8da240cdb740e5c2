package campaign

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks the pool's configuration invariants. A failing pool is
// skipped for the tick (with a warning), never fatal to the run.
func (p *RecurringPool) Validate(loc *time.Location) error {
	if p.ID == "" {
		return errors.New("pool: empty id")
	}
	start, err := ParseDate(p.StartDate, loc)
	if err != nil {
		return fmt.Errorf("pool %s: start: %w", p.ID, err)
	}
	end, err := ParseDate(p.EndDate, loc)
	if err != nil {
		return fmt.Errorf("pool %s: end: %w", p.ID, err)
	}
	if end.Before(start) {
		return fmt.Errorf("pool %s: end date %s before start date %s", p.ID, p.EndDate, p.StartDate)
	}

	from, err := ParseHHMM(p.Window.From)
	if err != nil {
		return fmt.Errorf("pool %s: window from: %w", p.ID, err)
	}
	to, err := ParseHHMM(p.Window.To)
	if err != nil {
		return fmt.Errorf("pool %s: window to: %w", p.ID, err)
	}
	if to < from {
		return fmt.Errorf("pool %s: window %s-%s is inverted", p.ID, p.Window.From, p.Window.To)
	}

	if p.SlotsPerDay < 1 {
		return fmt.Errorf("pool %s: slots_per_day must be >= 1", p.ID)
	}
	// The window is inclusive on both ends, so capacity is to-from+1 minutes.
	if cap := to - from + 1; p.SlotsPerDay > cap {
		return fmt.Errorf("pool %s: slots_per_day %d exceeds window capacity %d", p.ID, p.SlotsPerDay, cap)
	}

	switch p.Repeat {
	case RepeatOnce, RepeatDaily:
	case RepeatCustom:
		if len(p.Weekdays) == 0 {
			return fmt.Errorf("pool %s: custom repeat without weekdays", p.ID)
		}
		for _, d := range p.Weekdays {
			if d < 0 || d > 6 {
				return fmt.Errorf("pool %s: weekday %d out of range 0..6", p.ID, d)
			}
		}
	default:
		return fmt.Errorf("pool %s: unknown repeat mode %q", p.ID, p.Repeat)
	}

	if len(p.Messages) == 0 {
		return fmt.Errorf("pool %s: empty message pool", p.ID)
	}
	seen := make(map[string]struct{}, len(p.Messages))
	for _, m := range p.Messages {
		if m.ID == "" {
			return fmt.Errorf("pool %s: message with empty id", p.ID)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("pool %s: duplicate message id %q", p.ID, m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return nil
}

// Validate checks the single-message campaign's configuration invariants.
func (s *SingleMessage) Validate(loc *time.Location) error {
	if s.ID == "" {
		return errors.New("single: empty id")
	}
	if s.Text == "" {
		return fmt.Errorf("single %s: empty text", s.ID)
	}
	for _, st := range s.SendTimes {
		if _, err := ParseDate(st.Date, loc); err != nil {
			return fmt.Errorf("single %s: %w", s.ID, err)
		}
		if _, err := ParseHHMM(st.Time); err != nil {
			return fmt.Errorf("single %s: %w", s.ID, err)
		}
	}
	return nil
}
