// Package analytics rebuilds the rollup tables derived from the raw sales
// table. Every rebuild is a full replace: the destination is emptied and
// refilled from a single INSERT ... SELECT, so running it twice on an
// unchanged raw table yields identical contents.
package analytics

import (
	"context"
	"fmt"
	"strings"

	"salesetl/internal/warehouse"
)

// StatusCancelled is the exact, case-sensitive status excluded from revenue.
const StatusCancelled = "Cancelled"

// Engine rebuilds one rollup table. rawCount is the raw table's size after
// loading; it only signals that loading finished and does not filter rows.
type Engine interface {
	Name() string
	Rebuild(ctx context.Context, h *warehouse.Handle, rawCount int64) (int64, error)
}

// Options tune how engines rebuild.
type Options struct {
	// Transactional runs the delete and the insert in one transaction so a
	// failed insert leaves the previous contents in place.
	Transactional bool
	// Diagnostics logs data-profile queries around each rebuild.
	Diagnostics bool
}

// DefaultOptions returns transactional rebuilds with diagnostics on.
func DefaultOptions() Options {
	return Options{Transactional: true, Diagnostics: true}
}

// Rebuilder is the shared full-replace protocol.
type Rebuilder struct {
	Dest    warehouse.Table
	Columns []string
	// Select produces the rows to insert, in Columns order.
	Select string
	Args   []any

	Transactional bool
}

// Run empties Dest, refills it from Select and returns the new row count.
func (r Rebuilder) Run(ctx context.Context, h *warehouse.Handle) (int64, error) {
	if !r.Dest.Valid() {
		return 0, fmt.Errorf("analytics: rebuild: unknown table %v", r.Dest)
	}
	replace := func(ctx context.Context) error {
		if _, err := h.Exec(ctx, "DELETE FROM "+r.Dest.String()); err != nil {
			return fmt.Errorf("analytics: clear %s: %w", r.Dest, err)
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s)\n%s", r.Dest, strings.Join(r.Columns, ", "), r.Select)
		if _, err := h.Exec(ctx, stmt, r.Args...); err != nil {
			return fmt.Errorf("analytics: fill %s: %w", r.Dest, err)
		}
		return nil
	}

	var err error
	if r.Transactional {
		err = h.InTx(ctx, replace)
	} else {
		err = replace(ctx)
	}
	if err != nil {
		return 0, err
	}
	return h.Count(ctx, r.Dest)
}
