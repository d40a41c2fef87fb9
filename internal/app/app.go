// Package app assembles the engine and its collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"emabot-go/internal/broker"
	"emabot-go/internal/config"
	"emabot-go/internal/execution"
	"emabot-go/internal/paper"
	"emabot-go/internal/series"
	"emabot-go/internal/store"
	"emabot-go/internal/strategy"
)

// App owns everything built from one Config.
type App struct {
	Config *config.Config
	Log    zerolog.Logger
	Ledger *paper.Ledger
	Store  store.Store
	Engine *execution.Engine

	closers []func() error
}

// Build opens storage and the optional sinks, then wires the engine. Extra
// options are applied after the configured sinks.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger, extra ...execution.Option) (*App, error) {
	loc, err := time.LoadLocation(cfg.Paper.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Paper.Timezone, err)
	}

	a := &App{Config: cfg, Log: log}
	st, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)

	opts := []execution.Option{execution.WithNormalizer(series.Normalizer{Location: loc})}

	if cfg.Paper.JournalPath != "" {
		journal, err := store.NewJournal(cfg.Paper.JournalPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.closers = append(a.closers, journal.Close)
		opts = append(opts, execution.WithSink("journal", journal))
	}

	pub, err := broker.Dial(cfg.RabbitMQ, log)
	switch {
	case err == nil:
		a.closers = append(a.closers, pub.Close)
		opts = append(opts, execution.WithSink("rabbitmq", pub))
	case errors.Is(err, broker.ErrDisabled):
	default:
		a.Close()
		return nil, err
	}

	a.Ledger = paper.NewLedger(decimal.NewFromFloat(cfg.Paper.StartingCash))
	strat := strategy.Build(cfg.Strategy.Mode, strategy.Params{
		ShortSpan: cfg.Strategy.ShortSpan,
		LongSpan:  cfg.Strategy.LongSpan,
	})
	a.Engine = execution.NewEngine(a.Ledger, strat, st, log, append(opts, extra...)...)

	log.Info().
		Str("strategy", strat.Name()).
		Int("short_span", cfg.Strategy.ShortSpan).
		Int("long_span", cfg.Strategy.LongSpan).
		Str("starting_cash", a.Ledger.Snapshot().Cash.String()).
		Str("storage", cfg.Storage.Driver).
		Msg("engine ready")
	return a, nil
}

// OnClose registers fn to run during Close, before the closers added earlier.
func (a *App) OnClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Pump feeds every payload from in through the engine until in closes or ctx ends.
// Rejected payloads are logged by the engine and do not stop the loop.
func (a *App) Pump(ctx context.Context, in <-chan series.Payload) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-in:
			if !ok {
				return nil
			}
			if _, err := a.Engine.Process(ctx, p); err != nil && errors.Is(err, execution.ErrPersist) {
				a.Log.Error().Err(err).Msg("feed decision not persisted")
			}
		}
	}
}
