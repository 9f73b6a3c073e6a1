package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salesetl/internal/warehouse"
)

// MonthlyRow is one row of monthly_revenue.
type MonthlyRow struct {
	YearMonth     string
	Category      string
	TotalRevenue  float64
	OrderCount    int64
	AvgOrderValue float64
}

// DailyRow is one row of daily_orders.
type DailyRow struct {
	OrderDate     time.Time
	Status        string
	OrderCount    int64
	TotalQuantity int64
	TotalAmount   float64
}

// StatusTotal aggregates orders and amount for one status.
type StatusTotal struct {
	Status string
	Orders int64
	Amount float64
}

const monthlyRead = `SELECT year_month, category,
       CAST(total_revenue AS DOUBLE),
       CAST(order_count AS BIGINT),
       CAST(avg_order_value AS DOUBLE)
FROM monthly_revenue
ORDER BY year_month ASC, total_revenue DESC, category`

// ReadMonthlyRevenue returns monthly_revenue ordered by month, then revenue
// descending.
func ReadMonthlyRevenue(ctx context.Context, h *warehouse.Handle) ([]MonthlyRow, error) {
	return readMonthly(ctx, h, monthlyRead)
}

const topMonthlyRead = `SELECT year_month, category,
       CAST(total_revenue AS DOUBLE),
       CAST(order_count AS BIGINT),
       CAST(avg_order_value AS DOUBLE)
FROM monthly_revenue
ORDER BY total_revenue DESC, year_month, category
LIMIT ?`

// TopMonthly returns the n highest-revenue rows of monthly_revenue across all
// months. Ties break by month, then category.
func TopMonthly(ctx context.Context, h *warehouse.Handle, n int) ([]MonthlyRow, error) {
	if n <= 0 {
		return nil, nil
	}
	return readMonthly(ctx, h, topMonthlyRead, n)
}

func readMonthly(ctx context.Context, h *warehouse.Handle, stmt string, args ...any) ([]MonthlyRow, error) {
	var out []MonthlyRow
	err := h.QueryRows(ctx, stmt, func(r *sql.Rows) error {
		var (
			m   MonthlyRow
			avg sql.NullFloat64
		)
		if err := r.Scan(&m.YearMonth, &m.Category, &m.TotalRevenue, &m.OrderCount, &avg); err != nil {
			return err
		}
		m.AvgOrderValue = avg.Float64
		out = append(out, m)
		return nil
	}, args...)
	if err != nil {
		return nil, fmt.Errorf("analytics: read monthly revenue: %w", err)
	}
	return out, nil
}

// ReadDailyOrders returns daily_orders ordered by date, then status.
func ReadDailyOrders(ctx context.Context, h *warehouse.Handle) ([]DailyRow, error) {
	stmt := fmt.Sprintf(`SELECT %s, status,
       CAST(order_count AS BIGINT),
       CAST(total_quantity AS BIGINT),
       CAST(total_amount AS DOUBLE)
FROM daily_orders
ORDER BY order_date, status`, h.Dialect().DateText("order_date"))

	var out []DailyRow
	err := h.QueryRows(ctx, stmt, func(r *sql.Rows) error {
		var (
			d   DailyRow
			day string
		)
		if err := r.Scan(&day, &d.Status, &d.OrderCount, &d.TotalQuantity, &d.TotalAmount); err != nil {
			return err
		}
		t, err := time.Parse(time.DateOnly, day)
		if err != nil {
			return fmt.Errorf("order_date %q: %w", day, err)
		}
		d.OrderDate = t
		out = append(out, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: read daily orders: %w", err)
	}
	return out, nil
}

// StatusSummary totals daily_orders per status, busiest status first.
func StatusSummary(ctx context.Context, h *warehouse.Handle) ([]StatusTotal, error) {
	const stmt = `SELECT status,
       CAST(SUM(order_count) AS BIGINT) AS orders,
       CAST(SUM(total_amount) AS DOUBLE) AS amount
FROM daily_orders
GROUP BY status
ORDER BY orders DESC, status`

	var out []StatusTotal
	err := h.QueryRows(ctx, stmt, func(r *sql.Rows) error {
		var s StatusTotal
		if err := r.Scan(&s.Status, &s.Orders, &s.Amount); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: status summary: %w", err)
	}
	return out, nil
}
