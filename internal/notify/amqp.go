package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	logx "festpush/pkg/logx"
)

// amqpSender hands notifications to a durable queue; a separate delivery
// fleet drains it. Connection is lazy and re-established per failure, so a
// broker restart costs one failed send at most.
type amqpSender struct {
	mu    sync.Mutex
	url   string
	queue string
	log   logx.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
}

func newAMQPSender(cfg Config, log logx.Logger) (Sender, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("amqp url is required")
	}
	queue := strings.TrimSpace(cfg.Queue)
	if queue == "" {
		queue = "festpush.notifications"
	}
	return &amqpSender{url: cfg.URL, queue: queue, log: log}, nil
}

func (s *amqpSender) Send(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.channelLocked()
	if err != nil {
		return err
	}

	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		// Drop the connection; the next send redials.
		s.closeLocked()
		return err
	}
	return nil
}

func (s *amqpSender) channelLocked() (*amqp.Channel, error) {
	if s.ch != nil && !s.conn.IsClosed() {
		return s.ch, nil
	}
	s.closeLocked()

	conn, err := amqp.Dial(s.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	s.conn = conn
	s.ch = ch
	s.log.Debug("amqp connected", logx.String("queue", s.queue))
	return ch, nil
}

func (s *amqpSender) closeLocked() {
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *amqpSender) Close() error {
	s.mu.Lock()
	s.closeLocked()
	s.mu.Unlock()
	return nil
}
