package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"emabot-go/internal/record"
	"emabot-go/internal/signal"
)

// Fixed width so lexical order in TEXT matches time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS trades (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT    NOT NULL,
		signal    TEXT    NOT NULL,
		reason    TEXT    NOT NULL,
		price     TEXT    NOT NULL,
		cash      TEXT    NOT NULL,
		holdings  INTEGER NOT NULL,
		executed  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS trades_timestamp_idx ON trades (timestamp);`

const sqliteInsert = `
	INSERT INTO trades (timestamp, signal, reason, price, cash, holdings, executed)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

const sqliteSelect = `
	SELECT id, timestamp, signal, reason, price, cash, holdings, executed
	FROM trades
	ORDER BY timestamp DESC, id DESC
	LIMIT ?`

// SQLite keeps records in a single-file database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dsn and ensures the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	if dsn == "" {
		dsn = "trades.db"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(ctx context.Context, rec *record.TradeRecord) error {
	res, err := s.db.ExecContext(ctx, sqliteInsert,
		rec.Timestamp.UTC().Format(sqliteTimeLayout),
		string(rec.Signal),
		rec.Reason,
		rec.Price.String(),
		rec.Cash.String(),
		rec.Holdings,
		boolToInt(rec.Executed),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("trade id: %w", err)
	}
	rec.ID = id
	return nil
}

func (s *SQLite) List(ctx context.Context, limit int) ([]record.TradeRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelect, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	out := make([]record.TradeRecord, 0)
	for rows.Next() {
		rec, err := scanSQLiteTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func scanSQLiteTrade(rows *sql.Rows) (record.TradeRecord, error) {
	var (
		rec                record.TradeRecord
		ts, kind, px, cash string
		executed           int64
	)
	if err := rows.Scan(&rec.ID, &ts, &kind, &rec.Reason, &px, &cash, &rec.Holdings, &executed); err != nil {
		return record.TradeRecord{}, fmt.Errorf("scan trade: %w", err)
	}
	parsed, err := time.Parse(sqliteTimeLayout, ts)
	if err != nil {
		return record.TradeRecord{}, fmt.Errorf("trade %d timestamp: %w", rec.ID, err)
	}
	rec.Timestamp = parsed
	if rec.Signal, err = signal.ParseKind(kind); err != nil {
		return record.TradeRecord{}, fmt.Errorf("trade %d: %w", rec.ID, err)
	}
	if rec.Price, err = decimal.NewFromString(px); err != nil {
		return record.TradeRecord{}, fmt.Errorf("trade %d price: %w", rec.ID, err)
	}
	if rec.Cash, err = decimal.NewFromString(cash); err != nil {
		return record.TradeRecord{}, fmt.Errorf("trade %d cash: %w", rec.ID, err)
	}
	rec.Executed = executed != 0
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
