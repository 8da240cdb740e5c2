package campaign

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind distinguishes the two campaign variants. It also namespaces the send
// log so the two variants never collide on dedup keys.
type Kind string

const (
	KindPool   Kind = "pool"
	KindSingle Kind = "single"
)

type RepeatMode string

const (
	RepeatOnce   RepeatMode = "once"
	RepeatDaily  RepeatMode = "daily"
	RepeatCustom RepeatMode = "custom"
)

// DateLayout is the calendar-date wire format used throughout.
const DateLayout = "2006-01-02"

// Message is one entry of a recurring pool.
type Message struct {
	ID   string
	Text string
}

// Window is an inclusive time-of-day range, both bounds "HH:mm".
type Window struct {
	From string
	To   string
}

// RecurringPool fires a configurable number of times per active day, at
// deterministic pseudo-random minutes inside Window, with a message drawn
// from Messages.
type RecurringPool struct {
	ID          string
	Title       string
	StartDate   string // inclusive
	EndDate     string // inclusive
	Repeat      RepeatMode
	Weekdays    []int // 0=Sunday..6=Saturday; only used when Repeat == RepeatCustom
	Window      Window
	SlotsPerDay int
	Messages    []Message
}

// SendTime is one explicit firing of a single-message campaign.
type SendTime struct {
	Date string
	Time string // "HH:mm"
}

// SingleMessage fires its fixed text at each listed send time.
type SingleMessage struct {
	ID        string
	Title     string
	Text      string
	SendTimes []SendTime
}

// ParseDate parses a calendar date in the given location (midnight).
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// ParseHHMM parses a "HH:mm" time of day into a minute-of-day (0..1439).
func ParseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q: want HH:mm", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid time %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q: bad minute", s)
	}
	return h*60 + m, nil
}

// FormatHHMM renders a minute-of-day back to "HH:mm".
func FormatHHMM(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
