package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteDialect backs the store with modernc.org/sqlite. It needs no cgo and
// is what the integration tests run against. SQLite has no bulk-load API, so
// batches are staged with one prepared INSERT inside a single transaction.
type sqliteDialect struct{}

func init() { Register(sqliteDialect{}) }

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Open(path string) (*sql.DB, error) {
	if isMemory(path) {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	return db, nil
}

func (sqliteDialect) YearMonth(col string) string {
	return fmt.Sprintf("strftime('%%Y-%%m', %s)", col)
}

func (sqliteDialect) DateText(col string) string {
	return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", col)
}

func (sqliteDialect) Stage(ctx context.Context, conn *sql.Conn, name string, cols []Column, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	names := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		placeholders[i] = "?"
	}
	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		name, strings.Join(names, ", "), strings.Join(placeholders, ", "))

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for _, row := range rows {
		for i, v := range row {
			// Dates are stored as ISO text so strftime() can read them back.
			if t, ok := v.(time.Time); ok {
				v = t.Format(time.DateOnly)
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}
