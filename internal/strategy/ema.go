package strategy

// EMA is an unadjusted exponential moving average accumulator. The first update
// seeds the average with the observed value; no simple-average warmup is used.
type EMA struct {
	alpha  float64
	value  float64
	primed bool
}

// NewEMA returns an accumulator with decay 2/(span+1). Spans below one are treated as one.
func NewEMA(span int) *EMA {
	if span < 1 {
		span = 1
	}
	return &EMA{alpha: 2.0 / float64(span+1)}
}

// Update folds x into the average and returns the new value.
// ema + α(x-ema) equals α·x + (1-α)·ema and keeps a flat series exactly flat.
func (e *EMA) Update(x float64) float64 {
	if !e.primed {
		e.value = x
		e.primed = true
		return e.value
	}
	e.value += e.alpha * (x - e.value)
	return e.value
}

// Value reports the current average and whether any value has been folded in.
func (e *EMA) Value() (float64, bool) { return e.value, e.primed }

// Alpha returns the decay factor.
func (e *EMA) Alpha() float64 { return e.alpha }

// EMASeries recomputes the average over the whole series.
func EMASeries(closes []float64, span int) []float64 {
	ema := NewEMA(span)
	out := make([]float64, len(closes))
	for i, x := range closes {
		out[i] = ema.Update(x)
	}
	return out
}
