package exchange

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"emabot-go/internal/metrics"
	"emabot-go/internal/series"
)

const stubLayout = "2006-01-02 15:04:05"

type stubBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// stubClose is a slow sine around 100 so the averages cross every few dozen bars.
func stubClose(i int) decimal.Decimal {
	px := 100 + 5*math.Sin(float64(i)/8)
	return decimal.NewFromFloat(px).Round(4)
}

// stubSnapshot renders bars [n-window, n) as a payload.
func (f *Feed) stubSnapshot(n int) series.Payload {
	from := n - f.window
	if from < 0 {
		from = 0
	}
	p := make(series.Payload, 0, n-from)
	for i := from; i < n; i++ {
		closePx := stubClose(i)
		openPx := closePx
		if i > 0 {
			openPx = stubClose(i - 1)
		}
		bar := stubBar{
			Open:   openPx.StringFixed(4),
			High:   decimal.Max(openPx, closePx).Add(decimal.New(5, -2)).StringFixed(4),
			Low:    decimal.Min(openPx, closePx).Sub(decimal.New(5, -2)).StringFixed(4),
			Close:  closePx.StringFixed(4),
			Volume: "1000",
		}
		raw, _ := json.Marshal(bar)
		ts := f.start.Add(time.Duration(i) * time.Minute)
		p = append(p, series.Entry{Key: ts.Format(stubLayout), Raw: raw})
	}
	return p
}

func (f *Feed) runStub(ctx context.Context, out chan<- series.Payload) error {
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	n := 1
	for {
		if err := emit(ctx, out, f.stubSnapshot(n)); err != nil {
			return err
		}
		metrics.FeedPollsTotal.WithLabelValues(ProviderStub, "ok").Inc()
		n++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
