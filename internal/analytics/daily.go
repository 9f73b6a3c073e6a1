package analytics

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"salesetl/internal/logging"
	"salesetl/internal/warehouse"
)

// DailyOrders rebuilds daily_orders: order counts, quantities and amounts per
// (date, status). Cancelled orders are included.
type DailyOrders struct {
	opts Options
	log  *zap.Logger
}

var _ Engine = (*DailyOrders)(nil)

func NewDailyOrders(opts Options, log *zap.Logger) *DailyOrders {
	if log == nil {
		log = zap.NewNop()
	}
	return &DailyOrders{opts: opts, log: log.Named("daily_orders")}
}

func (d *DailyOrders) Name() string { return "daily_orders" }

var dailySelect = fmt.Sprintf(`SELECT date_col AS order_date,
       status,
       COUNT(*) AS order_count,
       SUM(COALESCE(qty, 1)) AS total_quantity,
       SUM(COALESCE(amount, 0)) AS total_amount
FROM %s
WHERE date_col IS NOT NULL
  AND status IS NOT NULL
GROUP BY date_col, status
ORDER BY order_date, status`, warehouse.TableRaw)

func (d *DailyOrders) Rebuild(ctx context.Context, h *warehouse.Handle, rawCount int64) (int64, error) {
	d.log.Info("rebuilding", zap.Int64("raw_rows", rawCount))
	if d.opts.Diagnostics {
		d.profile(ctx, h)
	}

	n, err := Rebuilder{
		Dest:          warehouse.TableDailyOrders,
		Columns:       []string{"order_date", "status", "order_count", "total_quantity", "total_amount"},
		Select:        dailySelect,
		Transactional: d.opts.Transactional,
	}.Run(ctx, h)
	if err != nil {
		return 0, err
	}

	d.log.Info("daily orders rebuilt: "+logging.Count(n)+" rows", zap.Int64("rows", n))
	if d.opts.Diagnostics {
		if n == 0 {
			d.explainEmpty(ctx, h)
		} else {
			d.summarize(ctx, h)
		}
	}
	return n, nil
}

func (d *DailyOrders) profile(ctx context.Context, h *warehouse.Handle) {
	p, err := profileDaily(ctx, h)
	if err != nil {
		d.log.Warn("diagnostics failed", zap.Error(err))
		return
	}
	d.log.Info("raw data profile",
		zap.Int64("total", p.Total),
		zap.Int64("dates", p.Dates),
		zap.Int64("statuses", p.Statuses),
		zap.String("first_date", p.FirstDate),
		zap.String("last_date", p.LastDate),
	)
	for _, s := range p.TopStatuses {
		d.log.Info("status distribution", zap.String("status", s.Status), zap.Int64("rows", s.Orders))
	}
}

func (d *DailyOrders) summarize(ctx context.Context, h *warehouse.Handle) {
	sum, err := StatusSummary(ctx, h)
	if err != nil {
		d.log.Warn("summary failed", zap.Error(err))
		return
	}
	for _, s := range sum {
		d.log.Info("status summary",
			zap.String("status", s.Status),
			zap.Int64("orders", s.Orders),
			zap.Float64("amount", s.Amount),
		)
	}
}

func (d *DailyOrders) explainEmpty(ctx context.Context, h *warehouse.Handle) {
	nulls, err := countNulls(ctx, h, "date_col", "status")
	if err != nil {
		d.log.Warn("diagnostics failed", zap.Error(err))
		return
	}
	d.log.Warn("daily orders is empty",
		zap.Int64("null_dates", nulls["date_col"]),
		zap.Int64("null_statuses", nulls["status"]),
	)
}
