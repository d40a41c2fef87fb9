package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"emabot-go/internal/record"
)

// Journal appends records as JSON lines for offline analysis.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJournal creates/opens the target file and returns a journal.
func NewJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Record writes a single record to the underlying JSONL file.
func (j *Journal) Record(_ context.Context, rec record.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return ErrClosed
	}
	return j.enc.Encode(rec)
}

// Close flushes and closes the file handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
