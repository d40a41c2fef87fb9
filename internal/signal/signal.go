// Package signal standardizes payloads shared between data ingestion, strategy and ledger layers.
package signal

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bar models one normalized price observation. Only Close is required; the other
// OHLCV fields are carried through when the source provides them.
type Bar struct {
	Ts     time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Kind is the direction of a decision.
type Kind string

const (
	Buy  Kind = "BUY"
	Sell Kind = "SELL"
	Hold Kind = "HOLD"
)

// ParseKind accepts the upper or lower case spelling of a kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case Buy, Sell, Hold:
		return k, nil
	default:
		return "", fmt.Errorf("unknown signal kind %q", s)
	}
}

func (k Kind) String() string { return string(k) }

// Decision expresses the classification of the latest bar of a series.
type Decision struct {
	Kind     Kind
	Reason   string
	Price    decimal.Decimal
	ShortEMA float64
	LongEMA  float64
	BarTs    time.Time
}
