//go:build cgo

package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

// duckdbDialect is the default backend: a single-file columnar store. Batches
// are staged through the DuckDB Appender, which bypasses per-row statement
// execution.
type duckdbDialect struct{}

func init() { Register(duckdbDialect{}) }

func (duckdbDialect) Name() string { return "duckdb" }

func (duckdbDialect) Open(path string) (*sql.DB, error) {
	if isMemory(path) {
		path = ""
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}
	return db, nil
}

func (duckdbDialect) YearMonth(col string) string {
	return fmt.Sprintf("strftime(%s, '%%Y-%%m')", col)
}

func (duckdbDialect) DateText(col string) string {
	return fmt.Sprintf("strftime(%s, '%%Y-%%m-%%d')", col)
}

func (duckdbDialect) Stage(ctx context.Context, conn *sql.Conn, name string, cols []Column, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	return conn.Raw(func(raw any) error {
		dc, ok := raw.(driver.Conn)
		if !ok {
			return fmt.Errorf("duckdb: unexpected driver connection %T", raw)
		}
		app, err := duckdb.NewAppenderFromConn(dc, "", name)
		if err != nil {
			return fmt.Errorf("duckdb: appender for %s: %w", name, err)
		}
		vals := make([]driver.Value, len(cols))
		for n, row := range rows {
			if n%4096 == 0 {
				if err := ctx.Err(); err != nil {
					_ = app.Close()
					return err
				}
			}
			for i, v := range row {
				vals[i] = v
			}
			if err := app.AppendRow(vals...); err != nil {
				_ = app.Close()
				return fmt.Errorf("duckdb: append row %d: %w", n, err)
			}
		}
		if err := app.Close(); err != nil {
			return fmt.Errorf("duckdb: flush appender: %w", err)
		}
		return nil
	})
}
