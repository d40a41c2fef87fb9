package strategy

import (
	"strings"

	"emabot-go/internal/signal"
)

// Strategy classifies the latest bar of an ordered series.
type Strategy interface {
	Evaluate(bars []signal.Bar) (signal.Decision, error)
	Name() string
}

// Params expresses tunable knobs required by strategy constructors.
type Params struct {
	ShortSpan int
	LongSpan  int
}

const (
	ModeLevel = "ema_crossover"
	ModeEdge  = "ema_edge"
)

// Build returns a strategy implementation matching the configured mode.
func Build(mode string, params Params) Strategy {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "edge", ModeEdge:
		return NewEMAEdge(params.ShortSpan, params.LongSpan)
	default:
		return NewEMACrossover(params.ShortSpan, params.LongSpan)
	}
}
