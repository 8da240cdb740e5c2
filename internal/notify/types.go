package notify

import (
	"context"
	"time"
)

// Notification is one push to festival attendees. Kind, CampaignID, Date and
// Time identify the slot; MessageID names the chosen text.
type Notification struct {
	Kind       string    `json:"kind"`
	CampaignID string    `json:"campaign_id"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	MessageID  string    `json:"message_id"`
	Title      string    `json:"title,omitempty"`
	Body       string    `json:"body"`
	At         time.Time `json:"at"`
}

// Sender delivers notifications to the downstream push system. A nil error
// means the downstream accepted the message; only then may the caller mark
// the slot as sent.
type Sender interface {
	Send(ctx context.Context, n Notification) error
	Close() error
}

// Config selects and tunes the delivery driver.
type Config struct {
	Driver string // amqp | webhook | log

	// amqp
	URL   string
	Queue string

	// webhook
	WebhookURL string

	RatePerSec int
	Timeout    time.Duration
}
