package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"emabot-go/internal/paper"
	"emabot-go/internal/record"
	"emabot-go/internal/series"
	"emabot-go/internal/signal"
	"emabot-go/internal/store"
	"emabot-go/internal/strategy"
)

func payloadFromCloses(closes ...float64) series.Payload {
	p := make(series.Payload, 0, len(closes))
	for i, c := range closes {
		raw, _ := json.Marshal(map[string]string{"4. close": fmt.Sprintf("%g", c)})
		p = append(p, series.Entry{Key: fmt.Sprintf("2024-01-02 09:%02d:00", i), Raw: raw})
	}
	return p
}

func rising() series.Payload {
	closes := make([]float64, 0, 31)
	for v := 10.0; v <= 40; v++ {
		closes = append(closes, v)
	}
	return payloadFromCloses(closes...)
}

func newEngine(t *testing.T, cash int64, st store.Store, opts ...Option) *Engine {
	t.Helper()
	ledger := paper.NewLedger(decimal.NewFromInt(cash))
	return NewEngine(ledger, strategy.Build(strategy.ModeLevel, strategy.Params{}), st, zerolog.Nop(), opts...)
}

func TestProcessBuyPersistsRecord(t *testing.T) {
	st := store.NewMemory(0)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	engine := newEngine(t, 10000, st, WithClock(func() time.Time { return now }))

	res, err := engine.Process(context.Background(), rising())
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !res.Executed || res.Record.Signal != signal.Buy {
		t.Fatalf("expected executed BUY, got %+v", res)
	}
	if !res.Record.Cash.Equal(decimal.NewFromInt(9960)) || res.Record.Holdings != 1 {
		t.Fatalf("unexpected state in record: cash=%s holdings=%d", res.Record.Cash, res.Record.Holdings)
	}
	if !res.Record.Timestamp.Equal(now) {
		t.Fatalf("record timestamp %v, want %v", res.Record.Timestamp, now)
	}
	if res.LastTrade != "BUY at 40" {
		t.Fatalf("unexpected last trade %q", res.LastTrade)
	}
	if res.Record.ID != 1 {
		t.Fatalf("expected store-assigned id 1, got %d", res.Record.ID)
	}
	recs, _ := st.List(context.Background(), 0)
	if len(recs) != 1 {
		t.Fatalf("expected one persisted record, got %d", len(recs))
	}
}

func TestProcessMalformedLeavesStateUntouched(t *testing.T) {
	st := store.NewMemory(0)
	engine := newEngine(t, 10000, st)
	before := engine.Ledger().Snapshot()

	p := series.Payload{{Key: "t1", Raw: json.RawMessage(`{"close":"abc"}`)}}
	_, err := engine.Process(context.Background(), p)
	var malformed *series.MalformedObservationError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedObservationError, got %v", err)
	}
	if malformed.Timestamp != "t1" {
		t.Fatalf("error names %q, want t1", malformed.Timestamp)
	}
	if ErrorCode(err) != "malformed_observation" {
		t.Fatalf("unexpected code %q", ErrorCode(err))
	}
	if !engine.Ledger().Snapshot().Equal(before) {
		t.Fatalf("ledger changed on malformed input")
	}
	if recs, _ := st.List(context.Background(), 0); len(recs) != 0 {
		t.Fatalf("expected nothing persisted, got %d", len(recs))
	}
}

func TestProcessEmptySeries(t *testing.T) {
	st := store.NewMemory(0)
	engine := newEngine(t, 10000, st)
	_, err := engine.Process(context.Background(), nil)
	if !errors.Is(err, series.ErrEmptySeries) {
		t.Fatalf("expected ErrEmptySeries, got %v", err)
	}
	if ErrorCode(err) != "empty_series" {
		t.Fatalf("unexpected code %q", ErrorCode(err))
	}
	if recs, _ := st.List(context.Background(), 0); len(recs) != 0 {
		t.Fatalf("expected nothing persisted")
	}
}

func TestConcurrentBuysExecuteExactlyAffordable(t *testing.T) {
	const n, k = 20, 5
	st := store.NewMemory(n)
	engine := newEngine(t, 40*k, st)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		executed int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.Process(context.Background(), rising())
			if err != nil {
				t.Errorf("Process returned error: %v", err)
				return
			}
			if res.Executed {
				mu.Lock()
				executed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if executed != k {
		t.Fatalf("expected %d executed buys, got %d", k, executed)
	}
	final := engine.Ledger().Snapshot()
	if final.Holdings != k || !final.Cash.IsZero() {
		t.Fatalf("unexpected final state %+v", final)
	}
	recs, _ := st.List(context.Background(), 0)
	if len(recs) != n {
		t.Fatalf("expected %d records, got %d", n, len(recs))
	}
}

func TestSinkFailureDoesNotFailRequest(t *testing.T) {
	var got []record.TradeRecord
	failing := SinkFunc(func(context.Context, record.TradeRecord) error { return errors.New("down") })
	capture := SinkFunc(func(_ context.Context, rec record.TradeRecord) error {
		got = append(got, rec)
		return nil
	})
	engine := newEngine(t, 10000, store.NewMemory(0), WithSink("broken", failing), WithSink("capture", capture), WithSink("nil", nil))

	if _, err := engine.Process(context.Background(), rising()); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("capture sink did not receive persisted record: %+v", got)
	}
}

func TestStoreFailureReturnsErrPersist(t *testing.T) {
	st := store.NewMemory(0)
	_ = st.Close()
	var buf bytes.Buffer
	ledger := paper.NewLedger(decimal.NewFromInt(100))
	engine := NewEngine(ledger, nil, st, zerolog.New(&buf))

	res, err := engine.Process(context.Background(), rising())
	if !errors.Is(err, ErrPersist) || !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrPersist wrapping ErrClosed, got %v", err)
	}
	if ErrorCode(err) != "persist_failed" {
		t.Fatalf("unexpected code %q", ErrorCode(err))
	}
	if !res.Executed || ledger.Snapshot().Holdings != 1 {
		t.Fatalf("ledger should keep the committed trade")
	}
	if !strings.Contains(buf.String(), "trade record not persisted") {
		t.Fatalf("store failure not logged: %s", buf.String())
	}
}

func TestProcessHoldOnSingleBar(t *testing.T) {
	engine := newEngine(t, 10000, nil)
	res, err := engine.Process(context.Background(), payloadFromCloses(101.5))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if res.Record.Signal != signal.Hold || res.Executed {
		t.Fatalf("expected unexecuted HOLD, got %+v", res.Record)
	}
	if res.LastTrade != paper.NoTrades {
		t.Fatalf("unexpected last trade %q", res.LastTrade)
	}
}

func TestProcessHoldReportsEarlierFill(t *testing.T) {
	engine := newEngine(t, 10000, store.NewMemory(0))
	if _, err := engine.Process(context.Background(), rising()); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	res, err := engine.Process(context.Background(), payloadFromCloses(55))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if res.Executed || res.LastTrade != "BUY at 40" {
		t.Fatalf("expected unexecuted HOLD reporting BUY at 40, got executed=%v last=%q", res.Executed, res.LastTrade)
	}
}
