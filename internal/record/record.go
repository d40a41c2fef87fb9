// Package record assembles the audit record written for every signal decision.
package record

import (
	"time"

	"github.com/shopspring/decimal"

	"emabot-go/internal/paper"
	"emabot-go/internal/signal"
)

// TradeRecord is the append-only audit row for one processed series.
type TradeRecord struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Signal    signal.Kind     `json:"signal"`
	Reason    string          `json:"reason"`
	Price     decimal.Decimal `json:"price"`
	Cash      decimal.Decimal `json:"cash"`
	Holdings  int64           `json:"holdings"`
	Executed  bool            `json:"executed"`
}

// Clock supplies the processing-time wall clock.
type Clock func() time.Time

// SystemClock reads the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

// Build assembles a record from a decision and the state after applying it. The
// timestamp is the processing time, not the bar time. ID is left for the store.
func Build(d signal.Decision, after paper.State, executed bool, now time.Time) TradeRecord {
	return TradeRecord{
		Timestamp: now.UTC(),
		Signal:    d.Kind,
		Reason:    d.Reason,
		Price:     d.Price,
		Cash:      after.Cash,
		Holdings:  after.Holdings,
		Executed:  executed,
	}
}
