package series

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"emabot-go/internal/signal"
)

// ErrEmptySeries is returned when a payload carries no observations.
var ErrEmptySeries = errors.New("no usable price observations")

// MalformedObservationError names the bar whose field could not be parsed.
type MalformedObservationError struct {
	Timestamp string
	Field     string
	Value     string
	Err       error
}

func (e *MalformedObservationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("malformed observation at %q: %s: %v", e.Timestamp, e.Field, e.Err)
	}
	return fmt.Sprintf("malformed observation at %q: %s=%s: %v", e.Timestamp, e.Field, e.Value, e.Err)
}

func (e *MalformedObservationError) Unwrap() error { return e.Err }

var (
	errMissingField = errors.New("field missing")
	errNotNumeric   = errors.New("not numeric")
	errBadTimestamp = errors.New("unrecognized timestamp format")
)

// Field aliases, Alpha Vantage numbering first.
var (
	openFields   = []string{"1. open", "open"}
	highFields   = []string{"2. high", "high"}
	lowFields    = []string{"3. low", "low"}
	closeFields  = []string{"4. close", "close"}
	volumeFields = []string{"5. volume", "volume"}
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalizer converts payloads into ascending bars. Timestamps without a zone are
// read in Location (UTC when nil).
type Normalizer struct {
	Location *time.Location
}

// Normalize uses a UTC Normalizer.
func Normalize(p Payload) ([]signal.Bar, error) {
	return Normalizer{}.Normalize(p)
}

// Normalize returns bars sorted strictly ascending by time. Entries resolving to
// the same instant collapse to the last one in payload order. Any malformed entry
// fails the whole payload.
func (n Normalizer) Normalize(p Payload) ([]signal.Bar, error) {
	if len(p) == 0 {
		return nil, ErrEmptySeries
	}
	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}

	bars := make([]signal.Bar, 0, len(p))
	index := make(map[int64]int, len(p))
	for _, entry := range p {
		bar, err := parseBar(entry, loc)
		if err != nil {
			return nil, err
		}
		key := bar.Ts.UnixNano()
		if i, ok := index[key]; ok {
			bars[i] = bar
			continue
		}
		index[key] = len(bars)
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Ts.Before(bars[j].Ts) })
	return bars, nil
}

// Closes projects the closing prices of bars as float64 for indicator math.
func Closes(bars []signal.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close.InexactFloat64()
	}
	return out
}

func parseBar(entry Entry, loc *time.Location) (signal.Bar, error) {
	malformed := func(field, value string, err error) error {
		return &MalformedObservationError{Timestamp: entry.Key, Field: field, Value: value, Err: err}
	}

	var fields Payload
	if err := json.Unmarshal(entry.Raw, &fields); err != nil || fields == nil {
		if err == nil {
			err = errMissingField
		}
		return signal.Bar{}, malformed("bar", "", err)
	}

	var bar signal.Bar
	closeRaw, name, ok := lookupAny(fields, closeFields)
	if !ok {
		return signal.Bar{}, malformed("close", "", errMissingField)
	}
	px, err := parseDecimal(closeRaw)
	if err != nil {
		return signal.Bar{}, malformed(name, string(closeRaw), err)
	}
	bar.Close = px

	for _, opt := range []struct {
		names []string
		dst   *decimal.Decimal
	}{
		{openFields, &bar.Open},
		{highFields, &bar.High},
		{lowFields, &bar.Low},
	} {
		raw, name, ok := lookupAny(fields, opt.names)
		if !ok {
			continue
		}
		v, err := parseDecimal(raw)
		if err != nil {
			return signal.Bar{}, malformed(name, string(raw), err)
		}
		*opt.dst = v
	}
	if raw, name, ok := lookupAny(fields, volumeFields); ok {
		v, err := parseVolume(raw)
		if err != nil {
			return signal.Bar{}, malformed(name, string(raw), err)
		}
		bar.Volume = v
	}

	ts, err := parseTimestamp(entry.Key, loc)
	if err != nil {
		return signal.Bar{}, malformed("timestamp", "", err)
	}
	bar.Ts = ts
	return bar, nil
}

func lookupAny(fields Payload, names []string) (json.RawMessage, string, bool) {
	for _, name := range names {
		if raw, ok := fields.Lookup(name); ok {
			return raw, name, true
		}
	}
	return nil, "", false
}

// parseDecimal accepts a JSON number or a JSON string holding a number.
func parseDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	text, err := numericText(raw)
	if err != nil {
		return decimal.Decimal{}, err
	}
	v, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, errNotNumeric
	}
	return v, nil
}

func parseVolume(raw json.RawMessage) (int64, error) {
	text, err := numericText(raw)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, errNotNumeric
	}
	return v, nil
}

func numericText(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", errMissingField
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
			return "", errNotNumeric
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", errNotNumeric
		}
		return s, nil
	}
	if trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9') {
		return trimmed, nil
	}
	return "", errNotNumeric
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, errBadTimestamp
}
