package store

import (
	"context"
	"sort"
	"sync"

	"emabot-go/internal/record"
)

// Memory stores records in process memory.
type Memory struct {
	mu      sync.Mutex
	nextID  int64
	records []record.TradeRecord
	closed  bool
}

// NewMemory creates an empty store optionally pre-sizing storage.
func NewMemory(capacity int) *Memory {
	if capacity < 0 {
		capacity = 0
	}
	return &Memory{records: make([]record.TradeRecord, 0, capacity)}
}

func (m *Memory) Append(_ context.Context, rec *record.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.nextID++
	rec.ID = m.nextID
	m.records = append(m.records, *rec)
	return nil
}

func (m *Memory) List(_ context.Context, limit int) ([]record.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]record.TradeRecord, len(m.records))
	copy(out, m.records)
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func sortNewestFirst(recs []record.TradeRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].Timestamp.After(recs[j].Timestamp)
		}
		return recs[i].ID > recs[j].ID
	})
}
