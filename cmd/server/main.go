package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"emabot-go/internal/app"
	"emabot-go/internal/config"
	"emabot-go/internal/exchange"
	"emabot-go/internal/execution"
	"emabot-go/internal/httpapi"
	"emabot-go/internal/series"
	"emabot-go/internal/stream"
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
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

// run owns every resource it opens, so each return path releases them.
func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	cache, closeCache, err := newTradeCache(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}

	hub := stream.NewHub(log.With().Str("component", "stream").Logger(), nil)
	opts := []execution.Option{execution.WithSink("stream", hub)}
	if cache != nil {
		opts = append(opts, execution.WithSink("cache", httpapi.InvalidateSink(cache)))
	}
	a, err := app.Build(ctx, cfg, log, opts...)
	if err != nil {
		_ = closeCache()
		return fmt.Errorf("build app: %w", err)
	}
	a.OnClose(closeCache)
	defer func() {
		hub.Close()
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("close resources")
		}
	}()

	handler := httpapi.NewHandler(cfg.HTTP, httpapi.Deps{
		Engine: a.Engine,
		Store:  a.Store,
		Cache:  cache,
		Stream: hub,
		Log:    log.With().Str("component", "http").Logger(),
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr()).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	feed := exchange.FromConfig(cfg.Feed, log.With().Str("component", "feed").Logger())
	if feed.Enabled() {
		payloads := make(chan series.Payload, 16)
		g.Go(func() error {
			err := feed.Run(gctx, payloads)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			if err := a.Pump(gctx, payloads); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info().Str("provider", feed.Provider()).Str("symbol", cfg.Feed.Symbol).Msg("price feed started")
	}

	return g.Wait()
}

// newTradeCache connects the optional /get-trades cache. With no address it
// returns a nil cache and a no-op closer.
func newTradeCache(ctx context.Context, cfg config.Redis, log zerolog.Logger) (httpapi.TradeCache, func() error, error) {
	noop := func() error { return nil }
	if cfg.Addr == "" {
		return nil, noop, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	return httpapi.NewRedisCache(client, time.Duration(cfg.CacheTTLSeconds)*time.Second, log), client.Close, nil
}
