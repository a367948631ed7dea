package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Vodeneev/raceodds/internal/oddsstore"
	"github.com/Vodeneev/raceodds/internal/pkg/config"
)

// PostgresSink keeps one row per (race_key, runner, source) holding the
// latest quote.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(cfg *config.PostgresConfig) (*PostgresSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &PostgresSink{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL latest quote storage initialized successfully")
	return s, nil
}

func (s *PostgresSink) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS latest_quotes (
		race_key VARCHAR(200) NOT NULL,
		runner VARCHAR(200) NOT NULL,
		source VARCHAR(50) NOT NULL,
		number VARCHAR(20) NOT NULL DEFAULT '',
		best_back DECIMAL(10, 4),
		best_lay DECIMAL(10, 4),
		quote JSONB NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (race_key, runner, source)
	);

	CREATE INDEX IF NOT EXISTS idx_latest_quotes_updated_at ON latest_quotes(updated_at);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *PostgresSink) Name() string { return "postgres" }

// Publish upserts every quote of the generation in one statement. Rows for
// runners missing from odds are left as they were.
func (s *PostgresSink) Publish(ctx context.Context, odds *oddsstore.Odds) error {
	rows, err := BuildRows(odds)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	cols := newUpsertColumns(rows)
	query := `
	INSERT INTO latest_quotes (race_key, runner, source, number, best_back, best_lay, quote, updated_at)
	SELECT * FROM UNNEST($1::text[], $2::text[], $3::text[], $4::text[], $5::float8[], $6::float8[], $7::jsonb[], $8::timestamp[])
	ON CONFLICT (race_key, runner, source) DO UPDATE SET
		number = EXCLUDED.number,
		best_back = EXCLUDED.best_back,
		best_lay = EXCLUDED.best_lay,
		quote = EXCLUDED.quote,
		updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		pq.Array(cols.raceKeys), pq.Array(cols.runners), pq.Array(cols.sources), pq.Array(cols.numbers),
		pq.Array(cols.bestBacks), pq.Array(cols.bestLays), pq.Array(cols.quotes), pq.Array(cols.updatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert latest quotes: %w", err)
	}
	return nil
}

// upsertColumns holds rows transposed into UNNEST arrays.
type upsertColumns struct {
	raceKeys  []string
	runners   []string
	sources   []string
	numbers   []string
	bestBacks []sql.NullFloat64
	bestLays  []sql.NullFloat64
	quotes    []string
	updatedAt []string
}

func newUpsertColumns(rows []QuoteRow) upsertColumns {
	c := upsertColumns{
		raceKeys:  make([]string, len(rows)),
		runners:   make([]string, len(rows)),
		sources:   make([]string, len(rows)),
		numbers:   make([]string, len(rows)),
		bestBacks: make([]sql.NullFloat64, len(rows)),
		bestLays:  make([]sql.NullFloat64, len(rows)),
		quotes:    make([]string, len(rows)),
		updatedAt: make([]string, len(rows)),
	}
	for i, r := range rows {
		c.raceKeys[i] = r.RaceKey
		c.runners[i] = r.Runner
		c.sources[i] = r.Source
		c.numbers[i] = r.Number
		c.bestBacks[i] = nullFloat(r.BestBack)
		c.bestLays[i] = nullFloat(r.BestLay)
		c.quotes[i] = string(r.Quote)
		c.updatedAt[i] = r.UpdatedAt.UTC().Format("2006-01-02 15:04:05.999999")
	}
	return c
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

// Close closes the database connection.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
