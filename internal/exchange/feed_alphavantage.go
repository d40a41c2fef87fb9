package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"emabot-go/internal/metrics"
	"emabot-go/internal/series"
)

// avNotices are the keys Alpha Vantage uses instead of a series when it
// refuses a request (rate limits, bad symbol, missing key).
var avNotices = []string{"Error Message", "Note", "Information"}

func (f *Feed) runAlphaVantage(ctx context.Context, out chan<- series.Payload) error {
	if f.symbol == "" {
		return fmt.Errorf("alphavantage feed requires a symbol")
	}
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		p, err := f.fetchAlphaVantage(ctx)
		switch {
		case err == nil:
			metrics.FeedPollsTotal.WithLabelValues(ProviderAlphaVantage, "ok").Inc()
			if err := emit(ctx, out, p); err != nil {
				return err
			}
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			metrics.FeedPollsTotal.WithLabelValues(ProviderAlphaVantage, "error").Inc()
			f.log.Warn().Err(err).Str("symbol", f.symbol).Msg("alphavantage poll failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (f *Feed) fetchAlphaVantage(ctx context.Context) (series.Payload, error) {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_INTRADAY")
	q.Set("symbol", f.symbol)
	q.Set("interval", f.interval)
	q.Set("apikey", f.apiKey)
	endpoint := f.baseURL + "/query?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "emabot-go/1.0 (paper)")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var top series.Payload
	if err := top.UnmarshalJSON(body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	for _, key := range avNotices {
		if raw, ok := top.Lookup(key); ok {
			return nil, fmt.Errorf("alphavantage %s: %s", key, string(raw))
		}
	}
	p, err := series.Extract(body)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(p) == 0 {
		return nil, errors.New("no time series in response")
	}
	return p, nil
}
