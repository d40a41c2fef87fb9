// Package execution runs one price series through the strategy, the paper ledger
// and the record sinks.
package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"emabot-go/internal/metrics"
	"emabot-go/internal/paper"
	"emabot-go/internal/record"
	"emabot-go/internal/series"
	"emabot-go/internal/store"
	"emabot-go/internal/strategy"
)

// ErrPersist wraps a store failure that happened after the ledger committed.
var ErrPersist = errors.New("persist trade record")

// Sink receives every persisted record. Failures are logged and never fail a request.
type Sink interface {
	Record(ctx context.Context, rec record.TradeRecord) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec record.TradeRecord) error

func (f SinkFunc) Record(ctx context.Context, rec record.TradeRecord) error { return f(ctx, rec) }

type namedSink struct {
	name string
	sink Sink
}

// Result is the outcome of one processed payload.
type Result struct {
	Record    record.TradeRecord
	Executed  bool
	Before    paper.State
	After     paper.State
	LastTrade string
}

// Engine wires the pure core to its collaborators.
type Engine struct {
	ledger     *paper.Ledger
	strategy   strategy.Strategy
	normalizer series.Normalizer
	store      store.Store
	clock      record.Clock
	log        zerolog.Logger
	sinks      []namedSink
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the record clock.
func WithClock(c record.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithNormalizer overrides the series normalizer.
func WithNormalizer(n series.Normalizer) Option { return func(e *Engine) { e.normalizer = n } }

// WithSink registers a best-effort sink under name.
func WithSink(name string, s Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sinks = append(e.sinks, namedSink{name: name, sink: s})
		}
	}
}

// NewEngine builds an engine. A nil strategy falls back to the default crossover.
func NewEngine(ledger *paper.Ledger, strat strategy.Strategy, st store.Store, log zerolog.Logger, opts ...Option) *Engine {
	if strat == nil {
		strat = strategy.NewEMACrossover(strategy.DefaultShortSpan, strategy.DefaultLongSpan)
	}
	e := &Engine{
		ledger:   ledger,
		strategy: strat,
		store:    st,
		clock:    record.SystemClock,
		log:      log,
	}
	for _, opt := range opts {
		opt(e)
	}
	snap := ledger.Snapshot()
	updateGauges(snap)
	return e
}

// Ledger exposes the owned ledger for read-only views.
func (e *Engine) Ledger() *paper.Ledger { return e.ledger }

// Process normalizes p, evaluates the strategy, applies the decision and
// persists the resulting record. Payload errors are returned before the ledger
// is touched.
func (e *Engine) Process(ctx context.Context, p series.Payload) (Result, error) {
	bars, err := e.normalizer.Normalize(p)
	if err != nil {
		e.reject(err)
		return Result{}, err
	}
	decision, err := e.strategy.Evaluate(bars)
	if err != nil {
		e.reject(err)
		return Result{}, err
	}
	metrics.DecisionsTotal.WithLabelValues(decision.Kind.String()).Inc()

	tr, err := e.ledger.Apply(decision)
	if err != nil {
		e.log.Error().Err(err).Str("signal", decision.Kind.String()).Msg("ledger apply failed")
		return Result{}, fmt.Errorf("apply %s: %w", decision.Kind, err)
	}
	after, executed := tr.After, tr.Executed
	updateGauges(after)
	if executed {
		metrics.TradesExecutedTotal.WithLabelValues(decision.Kind.String()).Inc()
	}

	rec := record.Build(decision, after, executed, e.clock())
	res := Result{Record: rec, Executed: executed, Before: tr.Before, After: after, LastTrade: tr.LastTrade}

	if e.store != nil {
		if err := e.store.Append(ctx, &res.Record); err != nil {
			e.log.Error().Err(err).Str("signal", decision.Kind.String()).Bool("executed", executed).Msg("trade record not persisted")
			return res, fmt.Errorf("%w: %w", ErrPersist, err)
		}
	}

	e.log.Info().
		Int64("id", res.Record.ID).
		Str("signal", decision.Kind.String()).
		Str("price", decision.Price.String()).
		Float64("short_ema", decision.ShortEMA).
		Float64("long_ema", decision.LongEMA).
		Bool("executed", executed).
		Str("cash", after.Cash.String()).
		Int64("holdings", after.Holdings).
		Msg("decision applied")

	e.notify(ctx, res.Record)
	return res, nil
}

func (e *Engine) notify(ctx context.Context, rec record.TradeRecord) {
	for _, s := range e.sinks {
		if err := s.sink.Record(ctx, rec); err != nil {
			metrics.SinkErrorsTotal.WithLabelValues(s.name).Inc()
			e.log.Warn().Err(err).Str("sink", s.name).Int64("id", rec.ID).Msg("record sink failed")
		}
	}
}

func (e *Engine) reject(err error) {
	code := ErrorCode(err)
	metrics.RejectedTotal.WithLabelValues(code).Inc()
	e.log.Warn().Err(err).Str("code", code).Msg("payload rejected")
}

// ErrorCode classifies err for metrics and API responses.
func ErrorCode(err error) string {
	var malformed *series.MalformedObservationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, series.ErrEmptySeries):
		return "empty_series"
	case errors.As(err, &malformed):
		return "malformed_observation"
	case errors.Is(err, paper.ErrLedgerContention):
		return "ledger_contention"
	case errors.Is(err, ErrPersist):
		return "persist_failed"
	default:
		return "internal"
	}
}

func updateGauges(s paper.State) {
	metrics.PortfolioCash.Set(s.Cash.InexactFloat64())
	metrics.PortfolioHoldings.Set(float64(s.Holdings))
}
