// Package exchange hosts the price sources that feed series snapshots into the engine.
package exchange

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"emabot-go/internal/config"
	"emabot-go/internal/series"
)

const (
	// ProviderNone disables polling.
	ProviderNone = "none"
	// ProviderStub emits deterministic synthetic minute bars (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderAlphaVantage polls the Alpha Vantage intraday endpoint for one symbol.
	ProviderAlphaVantage = "alphavantage"
)

// ErrDisabled is returned by Run when the feed provider is "none".
var ErrDisabled = errors.New("price feed disabled")

// Feed polls one instrument and pushes full series snapshots downstream.
type Feed struct {
	provider     string
	symbol       string
	interval     string
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	window       int
	start        time.Time
	client       *http.Client
	log          zerolog.Logger
}

// Option configures Feed construction parameters.
type Option func(*Feed)

const (
	defaultPollInterval = time.Minute
	defaultBaseURL      = "https://www.alphavantage.co"
	defaultWindow       = 100
)

// WithPollInterval overrides the polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.pollInterval = d
		}
	}
}

// WithAlphaVantage sets the endpoint, bar interval and API key.
func WithAlphaVantage(baseURL, interval, apiKey string) Option {
	return func(f *Feed) {
		if baseURL != "" {
			f.baseURL = strings.TrimSuffix(baseURL, "/")
		}
		if interval != "" {
			f.interval = interval
		}
		f.apiKey = apiKey
	}
}

// WithHTTPClient swaps the client used for HTTP providers.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Feed) {
		if c != nil {
			f.client = c
		}
	}
}

// WithStubStart fixes the first synthetic bar time.
func WithStubStart(t time.Time) Option {
	return func(f *Feed) { f.start = t.UTC().Truncate(time.Minute) }
}

// WithWindow caps the number of bars in each stub snapshot.
func WithWindow(n int) Option {
	return func(f *Feed) {
		if n > 0 {
			f.window = n
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider, symbol string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderNone
	}
	f := &Feed{
		provider:     strings.ToLower(strings.TrimSpace(provider)),
		symbol:       strings.ToUpper(strings.TrimSpace(symbol)),
		interval:     "1min",
		baseURL:      defaultBaseURL,
		pollInterval: defaultPollInterval,
		window:       defaultWindow,
		client:       &http.Client{Timeout: 15 * time.Second},
		log:          log,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.start.IsZero() {
		f.start = time.Now().UTC().Truncate(time.Minute)
	}
	return f
}

// FromConfig builds a feed from the feed section of the config.
func FromConfig(cfg config.Feed, log zerolog.Logger) *Feed {
	return NewFeed(cfg.Provider, cfg.Symbol, log,
		WithPollInterval(time.Duration(cfg.PollInterval)*time.Millisecond),
		WithAlphaVantage(cfg.BaseURL, cfg.Interval, cfg.APIKey),
	)
}

// Provider reports the normalized provider name.
func (f *Feed) Provider() string { return f.provider }

// Enabled reports whether Run would emit anything.
func (f *Feed) Enabled() bool { return f.provider != ProviderNone }

// Run pushes payload snapshots onto out until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- series.Payload) error {
	switch f.provider {
	case ProviderNone:
		return ErrDisabled
	case ProviderAlphaVantage:
		return f.runAlphaVantage(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

// emit delivers p unless ctx ends first.
func emit(ctx context.Context, out chan<- series.Payload, p series.Payload) error {
	select {
	case out <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
