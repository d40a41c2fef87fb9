package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"emabot-go/internal/record"
	"emabot-go/internal/signal"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS trades (
		id        BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		signal    TEXT        NOT NULL,
		reason    TEXT        NOT NULL,
		price     NUMERIC     NOT NULL,
		cash      NUMERIC     NOT NULL,
		holdings  BIGINT      NOT NULL,
		executed  BOOLEAN     NOT NULL
	);
	CREATE INDEX IF NOT EXISTS trades_timestamp_idx ON trades (timestamp DESC);`

const postgresInsert = `
	INSERT INTO trades (timestamp, signal, reason, price, cash, holdings, executed)
	VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7)
	RETURNING id`

const postgresSelect = `
	SELECT id, timestamp, signal, reason, price::text, cash::text, holdings, executed
	FROM trades
	ORDER BY timestamp DESC, id DESC`

// Postgres keeps records in a PostgreSQL table through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Append(ctx context.Context, rec *record.TradeRecord) error {
	err := p.pool.QueryRow(ctx, postgresInsert,
		rec.Timestamp.UTC(),
		string(rec.Signal),
		rec.Reason,
		rec.Price.String(),
		rec.Cash.String(),
		rec.Holdings,
		rec.Executed,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, limit int) ([]record.TradeRecord, error) {
	query := postgresSelect
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	out := make([]record.TradeRecord, 0)
	for rows.Next() {
		rec, err := scanPostgresTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	if p == nil || p.pool == nil {
		return nil
	}
	p.pool.Close()
	return nil
}

func scanPostgresTrade(row pgx.Row) (record.TradeRecord, error) {
	var (
		rec            record.TradeRecord
		kind, px, cash string
	)
	if err := row.Scan(&rec.ID, &rec.Timestamp, &kind, &rec.Reason, &px, &cash, &rec.Holdings, &rec.Executed); err != nil {
		return record.TradeRecord{}, fmt.Errorf("scan trade: %w", err)
	}
	var err error
	rec.Timestamp = rec.Timestamp.UTC()
	if rec.Signal, err = signal.ParseKind(kind); err != nil {
		return record.TradeRecord{}, fmt.Errorf("trade %d: %w", rec.ID, err)
	}
	if rec.Price, err = decimal.NewFromString(px); err != nil {
		return record.TradeRecord{}, fmt.Errorf("trade %d price: %w", rec.ID, err)
	}
	if rec.Cash, err = decimal.NewFromString(cash); err != nil {
		return record.TradeRecord{}, fmt.Errorf("trade %d cash: %w", rec.ID, err)
	}
	return rec, nil
}
