package schedule

import (
	"fmt"
	"time"

	"festpush/internal/campaign"
)

// IsActive reports whether the pool fires on the given calendar day.
// day must already be expressed in the festival timezone; only its calendar
// date matters.
//
// Rules, in order: outside [StartDate, EndDate] is inactive; "once" is
// active only on StartDate; "daily" on every day in range; "custom" on days
// whose weekday (Sunday=0..Saturday=6) is in the pool's weekday set.
func IsActive(p *campaign.RecurringPool, day time.Time) (bool, error) {
	loc := day.Location()
	start, err := campaign.ParseDate(p.StartDate, loc)
	if err != nil {
		return false, err
	}
	end, err := campaign.ParseDate(p.EndDate, loc)
	if err != nil {
		return false, err
	}

	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	if d.Before(start) || d.After(end) {
		return false, nil
	}

	switch p.Repeat {
	case campaign.RepeatOnce:
		return d.Equal(start), nil
	case campaign.RepeatDaily:
		return true, nil
	case campaign.RepeatCustom:
		// time.Weekday numbers Sunday=0, matching the stored set.
		wd := int(d.Weekday())
		for _, w := range p.Weekdays {
			if w == wd {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown repeat mode %q", p.Repeat)
	}
}
