// Package strategy contains the EMA crossover signal logic.
package strategy

import (
	"emabot-go/internal/series"
	"emabot-go/internal/signal"
)

const (
	DefaultShortSpan = 12
	DefaultLongSpan  = 26
)

const (
	ReasonAbove  = "short EMA crossed above long EMA"
	ReasonBelow  = "short EMA crossed below long EMA"
	ReasonNone   = "no significant EMA crossover"
	ReasonNoEdge = "no EMA crossover on latest bar"
)

// EMACrossover compares the short and long EMA levels at the last bar.
type EMACrossover struct {
	ShortSpan int
	LongSpan  int
}

// NewEMACrossover builds a crossover strategy, falling back to 12/26 for non-positive spans.
func NewEMACrossover(shortSpan, longSpan int) *EMACrossover {
	if shortSpan <= 0 {
		shortSpan = DefaultShortSpan
	}
	if longSpan <= 0 {
		longSpan = DefaultLongSpan
	}
	return &EMACrossover{ShortSpan: shortSpan, LongSpan: longSpan}
}

// Name returns the identifier for the strategy implementation.
func (s *EMACrossover) Name() string { return ModeLevel }

// Evaluate recomputes both averages over the full series and classifies the last bar.
func (s *EMACrossover) Evaluate(bars []signal.Bar) (signal.Decision, error) {
	if len(bars) == 0 {
		return signal.Decision{}, series.ErrEmptySeries
	}
	short, long := emaPair(bars, s.ShortSpan, s.LongSpan)
	last := len(bars) - 1
	d := decide(short[last], long[last], bars[last])
	return d, nil
}

// ComputeSignal evaluates bars with the default 12/26 crossover.
func ComputeSignal(bars []signal.Bar) (signal.Decision, error) {
	return NewEMACrossover(DefaultShortSpan, DefaultLongSpan).Evaluate(bars)
}

// EMAEdge only reports BUY or SELL on the bar where the short/long ordering flips.
type EMAEdge struct {
	ShortSpan int
	LongSpan  int
}

// NewEMAEdge builds an edge-triggered crossover strategy.
func NewEMAEdge(shortSpan, longSpan int) *EMAEdge {
	c := NewEMACrossover(shortSpan, longSpan)
	return &EMAEdge{ShortSpan: c.ShortSpan, LongSpan: c.LongSpan}
}

// Name returns the identifier for the strategy implementation.
func (s *EMAEdge) Name() string { return ModeEdge }

// Evaluate classifies the last bar, holding unless the ordering changed on it.
func (s *EMAEdge) Evaluate(bars []signal.Bar) (signal.Decision, error) {
	if len(bars) == 0 {
		return signal.Decision{}, series.ErrEmptySeries
	}
	short, long := emaPair(bars, s.ShortSpan, s.LongSpan)
	last := len(bars) - 1
	d := decide(short[last], long[last], bars[last])
	if last == 0 {
		return d, nil
	}
	prevShort, prevLong := short[last-1], long[last-1]
	switch {
	case d.Kind == signal.Buy && prevShort <= prevLong:
	case d.Kind == signal.Sell && prevShort >= prevLong:
	case d.Kind == signal.Hold:
	default:
		d.Kind = signal.Hold
		d.Reason = ReasonNoEdge
	}
	return d, nil
}

func emaPair(bars []signal.Bar, shortSpan, longSpan int) ([]float64, []float64) {
	closes := series.Closes(bars)
	return EMASeries(closes, shortSpan), EMASeries(closes, longSpan)
}

func decide(short, long float64, bar signal.Bar) signal.Decision {
	d := signal.Decision{
		Price:    bar.Close,
		ShortEMA: short,
		LongEMA:  long,
		BarTs:    bar.Ts,
	}
	switch {
	case short > long:
		d.Kind, d.Reason = signal.Buy, ReasonAbove
	case short < long:
		d.Kind, d.Reason = signal.Sell, ReasonBelow
	default:
		d.Kind, d.Reason = signal.Hold, ReasonNone
	}
	return d
}
