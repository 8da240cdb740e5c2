package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "festpush/pkg/logx"
)

// webhookSender POSTs each notification as JSON to a single endpoint.
type webhookSender struct {
	url    string
	client *http.Client
	log    logx.Logger
}

func newWebhookSender(cfg Config, log logx.Logger) (Sender, error) {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil, errors.New("webhook url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &webhookSender{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}, nil
}

func (s *webhookSender) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

func (s *webhookSender) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
