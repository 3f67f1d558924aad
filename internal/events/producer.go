// Package events publishes wallet and notification events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	RoutingTopUpCredited    = "wallet.topup.credited"
	RoutingTopUpFailed      = "wallet.topup.failed"
	RoutingNotificationRead = "notification.read"
)

// TopUpEvent is published once a top-up reaches a terminal status.
type TopUpEvent struct {
	TopUpID    string    `json:"topup_id"`
	AccountID  string    `json:"account_id"`
	OrderRef   string    `json:"order_ref"`
	Amount     int64     `json:"amount"`
	Bonus      int64     `json:"bonus"`
	Status     string    `json:"status"`
	Completed  []string  `json:"completed_steps"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NotificationReadEvent is published after a notification is marked read.
type NotificationReadEvent struct {
	NotificationID string    `json:"notification_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher is implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close()
}

// Fallback is a no-op publisher used when RabbitMQ is not configured or unreachable.
type Fallback struct {
	Logger *zap.SugaredLogger
}

func (f Fallback) Publish(ctx context.Context, routingKey string, body any) error {
	if f.Logger != nil {
		f.Logger.Debugw("event publish skipped", "mode", "fallback", "routing_key", routingKey)
	}
	return nil
}

func (f Fallback) Close() {}

// Producer holds the RabbitMQ connection and channel for publishing.
type Producer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   *zap.SugaredLogger
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewProducer dials RabbitMQ and declares the durable topic exchange.
func NewProducer(amqpURL, exchange string, logger *zap.SugaredLogger) (*Producer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	p := &Producer{conn: conn, exchange: exchange, logger: logger}
	if err := p.reopen(); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *Producer) reopen() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	p.channel = ch
	return nil
}

// Publish marshals body to JSON and publishes it. A failed publish reopens the channel and retries once.
func (p *Producer) Publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}
	p.logger.Warnw("publish failed; reopening channel", "exchange", p.exchange, "routing_key", routingKey, "err", err)
	if reopenErr := p.reopen(); reopenErr != nil {
		return reopenErr
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

// Close shuts the channel and connection.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
