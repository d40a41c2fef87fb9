// Package broker publishes trade records to a RabbitMQ fanout exchange.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"emabot-go/internal/config"
	"emabot-go/internal/record"
)

// ErrDisabled is returned by Dial when no broker URL is configured.
var ErrDisabled = errors.New("rabbitmq publisher disabled")

// Publisher sends every record as a persistent JSON message.
type Publisher struct {
	exchange string
	log      zerolog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Dial connects to the broker and declares the exchange.
func Dial(cfg config.RabbitMQ, log zerolog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, ErrDisabled
	}
	if cfg.Exchange == "" {
		return nil, errors.New("exchange name cannot be empty")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	log.Info().Str("exchange", cfg.Exchange).Msg("rabbitmq publisher ready")
	return &Publisher{exchange: cfg.Exchange, log: log, conn: conn, channel: ch}, nil
}

// Record publishes rec. A nil publisher is a no-op.
func (p *Publisher) Record(ctx context.Context, rec record.TradeRecord) error {
	if p == nil {
		return nil
	}
	msg, err := Encode(rec)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil {
		return errors.New("publisher closed")
	}
	return p.channel.PublishWithContext(ctx, p.exchange, "", false, false, msg)
}

// Encode builds the AMQP message for rec.
func Encode(rec record.TradeRecord) (amqp.Publishing, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal record: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(rec.Signal),
		Body:         body,
	}, nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
		p.channel = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}
