// Package storage appends cleaned sales records to the raw table.
//
// A batch is mapped onto the raw schema (see ColumnMapping), staged in the
// store with the backend's bulk primitive, and moved into the raw table with a
// single INSERT ... SELECT. The staging table is always dropped afterwards.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"salesetl/internal/metrics"
	"salesetl/internal/warehouse"
	"salesetl/pkg/records"
)

// Store is the part of a warehouse handle the loader needs.
type Store interface {
	BulkRegister(ctx context.Context, name string, cols []warehouse.Column, rows [][]any) error
	Unregister(ctx context.Context, name string) error
	Exec(ctx context.Context, stmt string, args ...any) (sql.Result, error)
	Count(ctx context.Context, t warehouse.Table) (int64, error)
}

// Loader appends batches to the raw table.
type Loader struct {
	store Store
	log   *zap.Logger
	job   string
}

// NewLoader returns a Loader writing through store. job labels metrics.
func NewLoader(store Store, job string, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{store: store, job: job, log: log.Named("loader")}
}

// Load appends recs to the raw table and returns the table's total row count
// after the insert, not the number of rows in this batch. An empty batch
// stages nothing and still reports the current count.
func (l *Loader) Load(ctx context.Context, recs []records.Record) (int64, error) {
	if len(recs) == 0 {
		n, err := l.store.Count(ctx, warehouse.TableRaw)
		if err != nil {
			return 0, fmt.Errorf("storage: load: %w", err)
		}
		l.log.Info("empty batch; nothing to insert", zap.Int64("raw_rows", n))
		return n, nil
	}

	cols, rows, err := MapRecords(recs)
	if err != nil {
		return 0, err
	}
	l.warnMissing(cols)

	start := time.Now()
	stg := "stg_raw_" + uuid.NewString()[:8]
	if err := l.store.BulkRegister(ctx, stg, cols, rows); err != nil {
		return 0, fmt.Errorf("storage: load: %w", err)
	}
	defer func() {
		if err := l.store.Unregister(context.WithoutCancel(ctx), stg); err != nil {
			l.log.Warn("drop staging table failed", zap.String("table", stg), zap.Error(err))
		}
	}()

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	list := strings.Join(names, ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", warehouse.TableRaw, list, list, stg)
	if _, err := l.store.Exec(ctx, stmt); err != nil {
		return 0, fmt.Errorf("storage: insert raw: %w", err)
	}

	total, err := l.store.Count(ctx, warehouse.TableRaw)
	if err != nil {
		return 0, fmt.Errorf("storage: load: %w", err)
	}
	metrics.RecordRow(l.job, "inserted", int64(len(rows)))
	metrics.RecordBatches(l.job, 1)
	l.log.Info("batch loaded",
		zap.Int("inserted", len(rows)),
		zap.Int64("raw_rows", total),
		zap.Int("columns", len(cols)),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)),
	)
	return total, nil
}

func (l *Loader) warnMissing(cols []warehouse.Column) {
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c.Name] = true
	}
	var missing []string
	for _, c := range CriticalColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		l.log.Warn("batch lacks columns used by the rollups", zap.Strings("missing", missing))
	}
}
