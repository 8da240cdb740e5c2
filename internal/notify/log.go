package notify

import (
	"context"

	logx "festpush/pkg/logx"
)

// logSender is the dry-run driver: it logs what would be delivered and
// reports success, so the send log fills in exactly as it would in
// production.
type logSender struct {
	log logx.Logger
}

func newLogSender(log logx.Logger) Sender {
	return &logSender{log: log}
}

func (s *logSender) Send(ctx context.Context, n Notification) error {
	s.log.Info("dry-run send",
		logx.String("kind", n.Kind),
		logx.String("campaign", n.CampaignID),
		logx.String("date", n.Date),
		logx.String("time", n.Time),
		logx.String("message", n.MessageID))
	return nil
}

func (s *logSender) Close() error { return nil }
