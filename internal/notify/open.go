package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"

	logx "festpush/pkg/logx"
)

// Open builds the configured sender, wrapped with the rate limit if one is
// set.
func Open(cfg Config, log logx.Logger) (Sender, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	var (
		s   Sender
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "amqp":
		s, err = newAMQPSender(cfg, log)
	case "webhook":
		s, err = newWebhookSender(cfg, log)
	case "log", "":
		s = newLogSender(log)
	default:
		return nil, errors.New("unknown notify driver: " + cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RatePerSec > 0 {
		// Token bucket: burst = rate per sec, so short catch-up spikes don't
		// block too hard.
		s = &limitedSender{
			inner: s,
			lim:   rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		}
	}
	return s, nil
}

type limitedSender struct {
	inner Sender
	lim   *rate.Limiter
}

func (l *limitedSender) Send(ctx context.Context, n Notification) error {
	if err := l.lim.Wait(ctx); err != nil {
		return err
	}
	return l.inner.Send(ctx, n)
}

func (l *limitedSender) Close() error { return l.inner.Close() }
