package analytics

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"salesetl/internal/logging"
	"salesetl/internal/warehouse"
)

// MonthlyRevenue rebuilds monthly_revenue: revenue per (year-month, category)
// over dated, categorised, non-cancelled rows with a positive amount.
type MonthlyRevenue struct {
	opts Options
	log  *zap.Logger
}

var _ Engine = (*MonthlyRevenue)(nil)

func NewMonthlyRevenue(opts Options, log *zap.Logger) *MonthlyRevenue {
	if log == nil {
		log = zap.NewNop()
	}
	return &MonthlyRevenue{opts: opts, log: log.Named("monthly_revenue")}
}

func (m *MonthlyRevenue) Name() string { return "monthly_revenue" }

const monthlyFilter = `date_col IS NOT NULL
  AND category IS NOT NULL
  AND (status IS NULL OR status != ?)
  AND amount > 0`

func monthlySelect(d warehouse.Dialect) string {
	ym := d.YearMonth("date_col")
	return fmt.Sprintf(`SELECT %s AS year_month,
       category,
       SUM(amount) AS total_revenue,
       COUNT(*) AS order_count,
       AVG(amount) AS avg_order_value
FROM %s
WHERE %s
GROUP BY %s, category
ORDER BY year_month ASC, total_revenue DESC`, ym, warehouse.TableRaw, monthlyFilter, ym)
}

func (m *MonthlyRevenue) Rebuild(ctx context.Context, h *warehouse.Handle, rawCount int64) (int64, error) {
	m.log.Info("rebuilding", zap.Int64("raw_rows", rawCount))
	if m.opts.Diagnostics {
		m.profile(ctx, h)
	}

	n, err := Rebuilder{
		Dest:          warehouse.TableMonthlyRevenue,
		Columns:       []string{"year_month", "category", "total_revenue", "order_count", "avg_order_value"},
		Select:        monthlySelect(h.Dialect()),
		Args:          []any{StatusCancelled},
		Transactional: m.opts.Transactional,
	}.Run(ctx, h)
	if err != nil {
		return 0, err
	}

	m.log.Info("monthly revenue rebuilt: "+logging.Count(n)+" rows", zap.Int64("rows", n))
	if m.opts.Diagnostics {
		if n == 0 {
			m.explainEmpty(ctx, h)
		} else {
			m.sample(ctx, h)
		}
	}
	return n, nil
}

// profile logs how many raw rows survive each monthly filter.
func (m *MonthlyRevenue) profile(ctx context.Context, h *warehouse.Handle) {
	p, err := profileMonthly(ctx, h)
	if err != nil {
		m.log.Warn("diagnostics failed", zap.Error(err))
		return
	}
	m.log.Info("raw data profile",
		zap.Int64("total", p.Total),
		zap.Int64("non_cancelled", p.NonCancelled),
		zap.Int64("positive_amount", p.PositiveAmount),
		zap.Int64("valid_revenue", p.ValidRevenue),
		zap.Int64("categories", p.Categories),
		zap.Float64("min_amount", p.MinAmount),
		zap.Float64("max_amount", p.MaxAmount),
	)
}

func (m *MonthlyRevenue) sample(ctx context.Context, h *warehouse.Handle) {
	top, err := TopMonthly(ctx, h, 5)
	if err != nil {
		m.log.Warn("sample failed", zap.Error(err))
		return
	}
	for _, r := range top {
		m.log.Info("top month",
			zap.String("year_month", r.YearMonth),
			zap.String("category", r.Category),
			zap.Float64("total_revenue", r.TotalRevenue),
			zap.Int64("orders", r.OrderCount),
		)
	}
}

func (m *MonthlyRevenue) explainEmpty(ctx context.Context, h *warehouse.Handle) {
	nulls, err := countNulls(ctx, h, "date_col", "category", "amount")
	if err != nil {
		m.log.Warn("diagnostics failed", zap.Error(err))
		return
	}
	m.log.Warn("monthly revenue is empty",
		zap.Int64("null_dates", nulls["date_col"]),
		zap.Int64("null_categories", nulls["category"]),
		zap.Int64("null_amounts", nulls["amount"]),
	)
}
