// Package paper owns the simulated portfolio: cash, whole-share holdings and the
// rule that turns a signal decision into a one-lot trade.
package paper

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"emabot-go/internal/signal"
)

// ErrLedgerContention is returned if the state changed between the read and the
// commit of an apply. It cannot happen while every mutation goes through Ledger.Apply.
var ErrLedgerContention = errors.New("ledger state changed during apply")

// State is the portfolio at one point in time.
type State struct {
	Cash     decimal.Decimal `json:"cash"`
	Holdings int64           `json:"holdings"`
}

// Equal reports whether both fields match.
func (s State) Equal(o State) bool {
	return s.Holdings == o.Holdings && s.Cash.Equal(o.Cash)
}

// Apply is the one-lot transition. A BUY executes when cash covers the price, a
// SELL when at least one share is held; everything else leaves the state as is.
func Apply(state State, d signal.Decision) (State, bool) {
	switch d.Kind {
	case signal.Buy:
		if state.Cash.GreaterThanOrEqual(d.Price) {
			return State{Cash: state.Cash.Sub(d.Price), Holdings: state.Holdings + 1}, true
		}
	case signal.Sell:
		if state.Holdings > 0 {
			return State{Cash: state.Cash.Add(d.Price), Holdings: state.Holdings - 1}, true
		}
	}
	return state, false
}

// Fill describes the last executed lot.
type Fill struct {
	Side  signal.Kind
	Price decimal.Decimal
}

func (f Fill) String() string {
	return fmt.Sprintf("%s at %s", f.Side, f.Price.String())
}

// NoTrades is reported by LastTrade before any lot has executed.
const NoTrades = "No trades executed yet."

// Ledger is the single owner of the process-wide portfolio state.
type Ledger struct {
	mu       sync.Mutex
	start    State
	state    State
	lastFill *Fill
}

// NewLedger starts a ledger with the given cash and no holdings.
func NewLedger(startingCash decimal.Decimal) *Ledger {
	s := State{Cash: startingCash}
	return &Ledger{start: s, state: s}
}

// Transition is what one Ledger.Apply observed while holding the lock.
type Transition struct {
	Before   State
	After    State
	Executed bool
	// LastTrade describes the latest executed lot as of this apply, or NoTrades.
	LastTrade string
}

// Apply runs the transition for d under the ledger lock.
func (l *Ledger) Apply(d signal.Decision) (Transition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	before := l.state
	after, executed := Apply(before, d)
	// Unreachable while mu is held for the whole read-check-mutate.
	if err := l.commit(before, after); err != nil {
		return Transition{Before: before, After: before, LastTrade: l.lastTradeLocked()}, err
	}
	if executed {
		l.lastFill = &Fill{Side: d.Kind, Price: d.Price}
	}
	return Transition{Before: before, After: after, Executed: executed, LastTrade: l.lastTradeLocked()}, nil
}

// commit swaps in next only if the state is still prev. Caller holds mu.
func (l *Ledger) commit(prev, next State) error {
	if !l.state.Equal(prev) {
		return ErrLedgerContention
	}
	l.state = next
	return nil
}

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// StartingState returns the state the ledger was created with.
func (l *Ledger) StartingState() State { return l.start }

// LastTrade describes the most recent executed lot, or NoTrades.
func (l *Ledger) LastTrade() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastTradeLocked()
}

func (l *Ledger) lastTradeLocked() string {
	if l.lastFill == nil {
		return NoTrades
	}
	return l.lastFill.String()
}
