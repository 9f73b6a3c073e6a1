package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"salesetl/internal/warehouse"
)

// MonthlyProfile counts dated raw rows passing each monthly revenue filter.
type MonthlyProfile struct {
	Total          int64
	NonCancelled   int64
	PositiveAmount int64
	ValidRevenue   int64
	Categories     int64
	MinAmount      float64
	MaxAmount      float64
}

func profileMonthly(ctx context.Context, h *warehouse.Handle) (MonthlyProfile, error) {
	stmt := fmt.Sprintf(`SELECT COUNT(*),
       CAST(SUM(CASE WHEN status IS NULL OR status != ? THEN 1 ELSE 0 END) AS BIGINT),
       CAST(SUM(CASE WHEN amount > 0 THEN 1 ELSE 0 END) AS BIGINT),
       CAST(SUM(CASE WHEN %s THEN 1 ELSE 0 END) AS BIGINT),
       COUNT(DISTINCT category),
       CAST(MIN(amount) AS DOUBLE),
       CAST(MAX(amount) AS DOUBLE)
FROM %s
WHERE date_col IS NOT NULL`, monthlyFilter, warehouse.TableRaw)

	var (
		p                    MonthlyProfile
		nc, pos, valid       sql.NullInt64
		minAmount, maxAmount sql.NullFloat64
	)
	err := h.QueryRows(ctx, stmt, func(r *sql.Rows) error {
		return r.Scan(&p.Total, &nc, &pos, &valid, &p.Categories, &minAmount, &maxAmount)
	}, StatusCancelled, StatusCancelled)
	if err != nil {
		return MonthlyProfile{}, fmt.Errorf("analytics: monthly profile: %w", err)
	}
	p.NonCancelled, p.PositiveAmount, p.ValidRevenue = nc.Int64, pos.Int64, valid.Int64
	p.MinAmount, p.MaxAmount = minAmount.Float64, maxAmount.Float64
	return p, nil
}

// NullStatus labels the bucket of raw rows without a status.
const NullStatus = "<null>"

// DailyProfile describes the date and status spread of the raw table.
type DailyProfile struct {
	Total       int64
	Dates       int64
	Statuses    int64
	FirstDate   string
	LastDate    string
	TopStatuses []StatusTotal
}

func profileDaily(ctx context.Context, h *warehouse.Handle) (DailyProfile, error) {
	d := h.Dialect()
	stmt := fmt.Sprintf(`SELECT COUNT(*), COUNT(DISTINCT date_col), COUNT(DISTINCT status), %s, %s FROM %s`,
		d.DateText("MIN(date_col)"), d.DateText("MAX(date_col)"), warehouse.TableRaw)

	var (
		p           DailyProfile
		first, last sql.NullString
	)
	err := h.QueryRows(ctx, stmt, func(r *sql.Rows) error {
		return r.Scan(&p.Total, &p.Dates, &p.Statuses, &first, &last)
	})
	if err != nil {
		return DailyProfile{}, fmt.Errorf("analytics: daily profile: %w", err)
	}
	p.FirstDate, p.LastDate = first.String, last.String

	// NULL statuses form their own bucket, reported as NullStatus.
	top := fmt.Sprintf(`SELECT status, COUNT(*) AS n FROM %s
GROUP BY status
ORDER BY n DESC, status
LIMIT 10`, warehouse.TableRaw)
	err = h.QueryRows(ctx, top, func(r *sql.Rows) error {
		var (
			s      StatusTotal
			status sql.NullString
		)
		if err := r.Scan(&status, &s.Orders); err != nil {
			return err
		}
		s.Status = NullStatus
		if status.Valid {
			s.Status = status.String
		}
		p.TopStatuses = append(p.TopStatuses, s)
		return nil
	})
	if err != nil {
		return DailyProfile{}, fmt.Errorf("analytics: status distribution: %w", err)
	}
	return p, nil
}

// countNulls returns the number of raw rows with NULL in each of cols. Column
// names are fixed by the callers in this package.
func countNulls(ctx context.Context, h *warehouse.Handle, cols ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(cols))
	for _, c := range cols {
		if !warehouse.ValidIdent(c) {
			return nil, fmt.Errorf("analytics: invalid column %q", c)
		}
		n, err := h.QueryInt64(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", warehouse.TableRaw, c))
		if err != nil {
			return nil, fmt.Errorf("analytics: null count %s: %w", c, err)
		}
		out[c] = n
	}
	return out, nil
}
