package main

import (
	"context"
	"errors"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"emabot-go/internal/app"
	"emabot-go/internal/config"
	"emabot-go/internal/exchange"
	"emabot-go/internal/metrics"
	"emabot-go/internal/series"
	"emabot-go/internal/util"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		bootLog := util.NewLogger("info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	if cfg.Feed.Provider == "" || cfg.Feed.Provider == exchange.ProviderNone {
		log.Warn().Msg("no feed provider configured, using stub")
		cfg.Feed.Provider = exchange.ProviderStub
	}

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build app")
	}
	defer a.Close()

	feed := exchange.FromConfig(cfg.Feed, log.With().Str("component", "feed").Logger())
	payloads := make(chan series.Payload, 16)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feed.Run(gctx, payloads) })
	g.Go(func() error { return a.Pump(gctx, payloads) })

	log.Info().Str("provider", feed.Provider()).Str("symbol", cfg.Feed.Symbol).Msg("paper engine started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("paper engine stopped")
		return
	}
	snap := a.Ledger.Snapshot()
	log.Info().Str("cash", snap.Cash.String()).Int64("holdings", snap.Holdings).Str("last_trade", a.Ledger.LastTrade()).Msg("shutting down")
}
