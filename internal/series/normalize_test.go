package series

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mustExtract(t *testing.T, body string) Payload {
	t.Helper()
	p, err := Extract([]byte(body))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	return p
}

func TestNormalizeAlphaVantageFixture(t *testing.T) {
	body, err := os.ReadFile(filepath.Join("testdata", "intraday.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	p, err := Extract(body)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	bars, err := Normalize(p)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Ts.After(bars[i-1].Ts) {
			t.Fatalf("bars not strictly ascending at %d: %v <= %v", i, bars[i].Ts, bars[i-1].Ts)
		}
	}
	if got := bars[2].Close.String(); got != "185.2" {
		t.Fatalf("expected last close 185.2, got %s", got)
	}
	if bars[0].Volume != 95 {
		t.Fatalf("expected first volume 95, got %d", bars[0].Volume)
	}
	if got := bars[1].High.String(); got != "185.1" {
		t.Fatalf("expected high 185.1, got %s", got)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	for _, body := range []string{"", "null", "{}", `{"Time Series (1min)": {}}`, `{"Meta Data": {"2. Symbol": "IBM"}}`} {
		p := mustExtract(t, body)
		if _, err := Normalize(p); !errors.Is(err, ErrEmptySeries) {
			t.Fatalf("body %q: expected ErrEmptySeries, got %v", body, err)
		}
	}
}

func TestNormalizeMalformedClose(t *testing.T) {
	p := mustExtract(t, `{"t1": {"close": "abc"}}`)
	bars, err := Normalize(p)
	if bars != nil {
		t.Fatalf("expected no partial result, got %+v", bars)
	}
	var malformed *MalformedObservationError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedObservationError, got %v", err)
	}
	if malformed.Timestamp != "t1" {
		t.Fatalf("expected timestamp t1, got %q", malformed.Timestamp)
	}
	if malformed.Field != "close" {
		t.Fatalf("expected close field, got %q", malformed.Field)
	}
}

func TestNormalizeMalformedCases(t *testing.T) {
	cases := map[string]string{
		"missing close":   `{"2024-01-01 10:00:00": {"open": "1"}}`,
		"null close":      `{"2024-01-01 10:00:00": {"close": null}}`,
		"bool close":      `{"2024-01-01 10:00:00": {"close": true}}`,
		"nan close":       `{"2024-01-01 10:00:00": {"close": "NaN"}}`,
		"bad volume":      `{"2024-01-01 10:00:00": {"close": "1", "volume": "lots"}}`,
		"bar not object":  `{"2024-01-01 10:00:00": "1.0"}`,
		"bad timestamp":   `{"yesterday": {"close": "1"}}`,
		"one bad of many": `{"2024-01-01 10:00:00": {"close": "1"}, "2024-01-01 10:01:00": {"4. close": ""}}`,
	}
	for name, body := range cases {
		p := mustExtract(t, body)
		_, err := Normalize(p)
		var malformed *MalformedObservationError
		if !errors.As(err, &malformed) {
			t.Fatalf("%s: expected MalformedObservationError, got %v", name, err)
		}
	}
}

func TestNormalizeAcceptsNumbersAndBareMapping(t *testing.T) {
	p := mustExtract(t, `{"2024-01-01T10:01:00Z": {"close": 11.5}, "2024-01-01T10:00:00Z": {"close": 10}}`)
	bars, err := Normalize(p)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if len(bars) != 2 || bars[0].Close.String() != "10" || bars[1].Close.String() != "11.5" {
		t.Fatalf("unexpected bars %+v", bars)
	}
}

func TestNormalizeDuplicateInstantLastSeenWins(t *testing.T) {
	body := `{
		"2024-01-01 10:00:00": {"close": "1"},
		"2024-01-01 10:01:00": {"close": "2"},
		"2024-01-01T10:00:00Z": {"close": "3"},
		"2024-01-01 10:01:00": {"close": "4"}
	}`
	bars, err := Normalize(mustExtract(t, body))
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars after dedup, got %d", len(bars))
	}
	if bars[0].Close.String() != "3" || bars[1].Close.String() != "4" {
		t.Fatalf("expected last-seen closes 3 and 4, got %s and %s", bars[0].Close, bars[1].Close)
	}
}

func TestNormalizerLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	p := mustExtract(t, `{"2024-03-01 09:30:00": {"close": "1"}}`)
	bars, err := Normalizer{Location: loc}.Normalize(p)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	want := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	if !bars[0].Ts.Equal(want) {
		t.Fatalf("expected %v, got %v", want, bars[0].Ts)
	}
}

func TestExtractPicksAnyInterval(t *testing.T) {
	p := mustExtract(t, `{"Meta Data": {}, "Time Series (5min)": {"2024-01-01 10:00:00": {"4. close": "7"}}}`)
	if len(p) != 1 || p[0].Key != "2024-01-01 10:00:00" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestExtractRejectsNonObject(t *testing.T) {
	if _, err := Extract([]byte(`[1,2,3]`)); err == nil {
		t.Fatalf("expected error for array body")
	}
}
