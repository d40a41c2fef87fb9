// Package series turns raw timestamp-keyed price payloads into ordered bars.
package series

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Entry is one timestamp key and its undecoded bar object, in payload order.
type Entry struct {
	Key string
	Raw json.RawMessage
}

// Payload is a JSON object decoded without losing key order, so duplicate keys
// resolve to the last one seen.
type Payload []Entry

const timeSeriesPrefix = "Time Series"

// UnmarshalJSON reads an object token by token. null decodes to an empty payload.
func (p *Payload) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("series payload must be a JSON object")
	}
	out := make(Payload, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode value for %q: %w", key, err)
		}
		out = append(out, Entry{Key: key, Raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

// Lookup returns the last entry stored under key.
func (p Payload) Lookup(key string) (json.RawMessage, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Key == key {
			return p[i].Raw, true
		}
	}
	return nil, false
}

// Extract pulls the bar mapping out of a request body. Alpha Vantage envelopes
// ("Time Series (1min)", "Time Series (5min)", ...) are unwrapped; any other
// object is treated as the bar mapping itself. An envelope without a time
// series yields an empty payload.
func Extract(body []byte) (Payload, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var top Payload
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, err
	}
	for i := len(top) - 1; i >= 0; i-- {
		if !strings.HasPrefix(top[i].Key, timeSeriesPrefix) {
			continue
		}
		var inner Payload
		if err := json.Unmarshal(top[i].Raw, &inner); err != nil {
			return nil, fmt.Errorf("decode %q: %w", top[i].Key, err)
		}
		return inner, nil
	}
	if _, ok := top.Lookup("Meta Data"); ok {
		return nil, nil
	}
	return top, nil
}
