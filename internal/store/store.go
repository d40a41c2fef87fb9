// Package store persists trade records. Records are append-only and listed newest first.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"emabot-go/internal/config"
	"emabot-go/internal/record"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Store is the persistence collaborator for trade records.
type Store interface {
	// Append writes rec and sets rec.ID to the assigned identifier.
	Append(ctx context.Context, rec *record.TradeRecord) error
	// List returns up to limit records by descending timestamp; limit <= 0 means all.
	List(ctx context.Context, limit int) ([]record.TradeRecord, error)
	Close() error
}

// Open selects the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.Storage) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "sqlite", "":
		return OpenSQLite(ctx, cfg.DSN)
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN)
	case "memory":
		return NewMemory(0), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
