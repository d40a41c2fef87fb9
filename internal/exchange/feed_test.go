package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"emabot-go/internal/config"
	"emabot-go/internal/series"
)

func TestFeedStubEmitsGrowingSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	feed := NewFeed(ProviderStub, "IBM", zerolog.Nop(), WithStubStart(start), WithPollInterval(10*time.Millisecond), WithWindow(3))
	out := make(chan series.Payload, 1)

	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, out) }()

	var sizes []int
	var last series.Payload
	for len(sizes) < 5 {
		select {
		case p := <-out:
			sizes = append(sizes, len(p))
			last = p
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for snapshot")
		}
	}
	cancel()

	want := []int{1, 2, 3, 3, 3}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("snapshot sizes %v, want %v", sizes, want)
		}
	}
	bars, err := series.Normalize(last)
	if err != nil {
		t.Fatalf("stub payload does not normalize: %v", err)
	}
	if !bars[len(bars)-1].Ts.Equal(start.Add(4 * time.Minute)) {
		t.Fatalf("unexpected last bar time %v", bars[len(bars)-1].Ts)
	}

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("feed did not stop after cancel")
	}
}

func TestStubSnapshotDeterministic(t *testing.T) {
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	a := NewFeed(ProviderStub, "", zerolog.Nop(), WithStubStart(start)).stubSnapshot(40)
	b := NewFeed(ProviderStub, "", zerolog.Nop(), WithStubStart(start)).stubSnapshot(40)
	if len(a) != len(b) {
		t.Fatalf("length mismatch")
	}
	for i := range a {
		if a[i].Key != b[i].Key || string(a[i].Raw) != string(b[i].Raw) {
			t.Fatalf("entry %d differs", i)
		}
	}
}

func TestFeedDisabled(t *testing.T) {
	feed := FromConfig(config.Default().Feed, zerolog.Nop())
	if feed.Enabled() {
		t.Fatalf("default feed should be disabled")
	}
	if err := feed.Run(context.Background(), make(chan series.Payload)); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestAlphaVantageFetch(t *testing.T) {
	const body = `{"Meta Data":{"2. Symbol":"IBM"},"Time Series (5min)":{
		"2024-01-02 09:35:00":{"1. open":"10","2. high":"11","3. low":"9","4. close":"10.5","5. volume":"100"},
		"2024-01-02 09:30:00":{"1. open":"9","2. high":"10","3. low":"8","4. close":"9.5","5. volume":"50"}}}`
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"path":     r.URL.Path,
			"function": q.Get("function"),
			"symbol":   q.Get("symbol"),
			"interval": q.Get("interval"),
			"apikey":   q.Get("apikey"),
		}
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	feed := NewFeed(ProviderAlphaVantage, "ibm", zerolog.Nop(), WithAlphaVantage(server.URL, "5min", "demo"))
	p, err := feed.fetchAlphaVantage(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(p) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(p))
	}
	want := map[string]string{"path": "/query", "function": "TIME_SERIES_INTRADAY", "symbol": "IBM", "interval": "5min", "apikey": "demo"}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Fatalf("query %s=%q, want %q", k, gotQuery[k], v)
		}
	}
	bars, err := series.Normalize(p)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if bars[0].Close.String() != "9.5" {
		t.Fatalf("bars not ascending: first close %s", bars[0].Close)
	}
}

func TestAlphaVantageNotice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Note":"Thank you for using Alpha Vantage! call frequency exceeded"}`))
	}))
	defer server.Close()

	feed := NewFeed(ProviderAlphaVantage, "IBM", zerolog.Nop(), WithAlphaVantage(server.URL, "", ""))
	if _, err := feed.fetchAlphaVantage(context.Background()); err == nil {
		t.Fatalf("expected error for rate limit notice")
	}
}

func TestAlphaVantageRunEmits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Time Series (1min)":{"2024-01-02 09:30:00":{"4. close":"1"}}}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := NewFeed(ProviderAlphaVantage, "IBM", zerolog.Nop(), WithAlphaVantage(server.URL, "", "k"), WithPollInterval(20*time.Millisecond))
	out := make(chan series.Payload, 1)
	go func() { _ = feed.Run(ctx, out) }()

	select {
	case p := <-out:
		if len(p) != 1 {
			t.Fatalf("unexpected payload %v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
	}
}
