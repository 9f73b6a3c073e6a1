// Package postgres publishes the rollup tables to Postgres.
//
// Publication is a full replace inside one transaction: both target tables
// are created if absent, truncated, and refilled with COPY. Readers of the
// Postgres side therefore see either the previous run or this one.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"salesetl/internal/analytics"
	"salesetl/internal/warehouse"
)

// Config configures the exporter.
type Config struct {
	DSN string
	// Schema defaults to "public".
	Schema string
}

// Counts reports the rows copied per table.
type Counts struct {
	Monthly int64
	Daily   int64
}

// Beginner starts a transaction. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Exporter copies rollups into Postgres.
type Exporter struct {
	db     Beginner
	schema string
	log    *zap.Logger
	close  func()
}

// Open connects a pgx pool for cfg.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*Exporter, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("export/postgres: dsn is empty")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("export/postgres: pgxpool: %w", err)
	}
	e, err := New(pool, cfg.Schema, log)
	if err != nil {
		pool.Close()
		return nil, err
	}
	e.close = pool.Close
	return e, nil
}

// New returns an Exporter on an existing connection source.
func New(db Beginner, schema string, log *zap.Logger) (*Exporter, error) {
	if schema == "" {
		schema = "public"
	}
	if !warehouse.ValidIdent(schema) {
		return nil, fmt.Errorf("export/postgres: invalid schema %q", schema)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{db: db, schema: schema, log: log.Named("export.postgres")}, nil
}

// Close releases the pool opened by Open.
func (e *Exporter) Close() {
	if e.close != nil {
		e.close()
	}
}

var (
	monthlyColumns = []string{"year_month", "category", "total_revenue", "order_count", "avg_order_value"}
	dailyColumns   = []string{"order_date", "status", "order_count", "total_quantity", "total_amount"}
)

func (e *Exporter) ddl() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  year_month      VARCHAR NOT NULL,
  category        VARCHAR NOT NULL,
  total_revenue   NUMERIC(12,2),
  order_count     INTEGER,
  avg_order_value NUMERIC(10,2),
  published_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`, e.table(warehouse.TableMonthlyRevenue)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  order_date     DATE NOT NULL,
  status         VARCHAR NOT NULL,
  order_count    INTEGER,
  total_quantity INTEGER,
  total_amount   NUMERIC(12,2),
  published_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`, e.table(warehouse.TableDailyOrders)),
	}
}

func (e *Exporter) table(t warehouse.Table) string {
	return pgx.Identifier{e.schema, t.String()}.Sanitize()
}

// Publish replaces both target tables with monthly and daily.
func (e *Exporter) Publish(ctx context.Context, monthly []analytics.MonthlyRow, daily []analytics.DailyRow) (Counts, error) {
	start := time.Now()
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("export/postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	for _, stmt := range e.ddl() {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return Counts{}, fmt.Errorf("export/postgres: create: %w", err)
		}
	}
	trunc := fmt.Sprintf("TRUNCATE %s, %s",
		e.table(warehouse.TableMonthlyRevenue), e.table(warehouse.TableDailyOrders))
	if _, err := tx.Exec(ctx, trunc); err != nil {
		return Counts{}, fmt.Errorf("export/postgres: truncate: %w", err)
	}

	var c Counts
	c.Monthly, err = tx.CopyFrom(ctx, pgx.Identifier{e.schema, warehouse.TableMonthlyRevenue.String()},
		monthlyColumns, pgx.CopyFromRows(monthlyRows(monthly)))
	if err != nil {
		return Counts{}, fmt.Errorf("export/postgres: copy %s: %w", warehouse.TableMonthlyRevenue, err)
	}
	c.Daily, err = tx.CopyFrom(ctx, pgx.Identifier{e.schema, warehouse.TableDailyOrders.String()},
		dailyColumns, pgx.CopyFromRows(dailyRows(daily)))
	if err != nil {
		return Counts{}, fmt.Errorf("export/postgres: copy %s: %w", warehouse.TableDailyOrders, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Counts{}, fmt.Errorf("export/postgres: commit: %w", err)
	}
	e.log.Info("rollups published",
		zap.String("schema", e.schema),
		zap.Int64("monthly_rows", c.Monthly),
		zap.Int64("daily_rows", c.Daily),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)),
	)
	return c, nil
}

func monthlyRows(in []analytics.MonthlyRow) [][]any {
	out := make([][]any, len(in))
	for i, r := range in {
		out[i] = []any{r.YearMonth, r.Category, r.TotalRevenue, r.OrderCount, r.AvgOrderValue}
	}
	return out
}

func dailyRows(in []analytics.DailyRow) [][]any {
	out := make([][]any, len(in))
	for i, r := range in {
		out[i] = []any{r.OrderDate, r.Status, r.OrderCount, r.TotalQuantity, r.TotalAmount}
	}
	return out
}
