package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"emabot-go/internal/config"
	"emabot-go/internal/record"
	"emabot-go/internal/signal"
)

func TestDialDisabledWithoutURL(t *testing.T) {
	p, err := Dial(config.RabbitMQ{Exchange: "x"}, zerolog.Nop())
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil publisher")
	}
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	if err := p.Record(context.Background(), record.TradeRecord{}); err != nil {
		t.Fatalf("Record on nil publisher: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close on nil publisher: %v", err)
	}
}

func TestEncode(t *testing.T) {
	rec := record.TradeRecord{ID: 9, Signal: signal.Sell, Reason: "r", Price: decimal.RequireFromString("42.25"), Cash: decimal.NewFromInt(100)}
	msg, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("expected persistent delivery, got %d", msg.DeliveryMode)
	}
	if msg.ContentType != "application/json" || msg.Type != "SELL" {
		t.Fatalf("unexpected headers: %q %q", msg.ContentType, msg.Type)
	}
	var got record.TradeRecord
	if err := json.Unmarshal(msg.Body, &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.ID != 9 || !got.Price.Equal(rec.Price) {
		t.Fatalf("unexpected body %+v", got)
	}
}
