package record

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"emabot-go/internal/paper"
	"emabot-go/internal/signal"
)

func TestBuildUsesProcessingTime(t *testing.T) {
	barTs := time.Date(2024, 3, 1, 19, 59, 0, 0, time.UTC)
	now := time.Date(2024, 3, 2, 8, 0, 0, 0, time.FixedZone("CET", 3600))
	d := signal.Decision{Kind: signal.Buy, Reason: "short EMA crossed above long EMA", Price: decimal.RequireFromString("185.2"), BarTs: barTs}
	after := paper.State{Cash: decimal.RequireFromString("9814.8"), Holdings: 1}

	rec := Build(d, after, true, now)
	if !rec.Timestamp.Equal(now) || rec.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC processing time %v, got %v", now.UTC(), rec.Timestamp)
	}
	if rec.Timestamp.Equal(barTs) {
		t.Fatalf("record must not carry the bar timestamp")
	}
	if rec.Signal != signal.Buy || rec.Reason != d.Reason || !rec.Price.Equal(d.Price) {
		t.Fatalf("decision fields not copied: %+v", rec)
	}
	if !rec.Cash.Equal(after.Cash) || rec.Holdings != 1 || !rec.Executed {
		t.Fatalf("state fields not copied: %+v", rec)
	}
	if rec.ID != 0 {
		t.Fatalf("expected unassigned id, got %d", rec.ID)
	}
}

func TestSystemClockIsUTC(t *testing.T) {
	if SystemClock().Location() != time.UTC {
		t.Fatalf("expected UTC clock")
	}
}
