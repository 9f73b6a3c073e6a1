package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"salesetl/internal/analytics"
	"salesetl/internal/logging"
	"salesetl/internal/warehouse"
)

func newReportCmd(a *app) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Rebuild the rollups from the raw table and print a summary",
		Long: `Rebuilds monthly_revenue and daily_orders from the rows already in the
raw sales table, without reading a source, then prints the top monthly
rows and the order totals per status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			wh := a.manager()
			defer a.release(wh, &err)

			h, err := wh.Acquire(ctx)
			if err != nil {
				return err
			}
			raw, err := h.Count(ctx, warehouse.TableRaw)
			if err != nil {
				return err
			}
			a.logger.Info("rebuilding rollups", zap.String("raw_rows", logging.Count(raw)))

			opts := analytics.Options{
				Transactional: a.cfg.Analytics.Transactional,
				Diagnostics:   a.cfg.Analytics.Diagnostics,
			}
			w := cmd.OutOrStdout()
			for _, e := range []analytics.Engine{
				analytics.NewMonthlyRevenue(opts, a.logger),
				analytics.NewDailyOrders(opts, a.logger),
			} {
				n, err := e.Rebuild(ctx, h, raw)
				if err != nil {
					return fmt.Errorf("%s: %w", e.Name(), err)
				}
				fmt.Fprintf(w, "%s: %d rows\n", e.Name(), n)
			}

			monthly, err := analytics.TopMonthly(ctx, h, top)
			if err != nil {
				return err
			}
			statuses, err := analytics.StatusSummary(ctx, h)
			if err != nil {
				return err
			}
			return printReport(w, monthly, statuses)
		},
	}
	cmd.Flags().IntVar(&top, "top", 5, "number of monthly_revenue rows to print")
	return cmd
}

func printReport(w io.Writer, monthly []analytics.MonthlyRow, statuses []analytics.StatusTotal) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\nyear_month\tcategory\trevenue\torders\tavg\t")
	for _, m := range monthly {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\t%.2f\t\n", m.YearMonth, m.Category, m.TotalRevenue, m.OrderCount, m.AvgOrderValue)
	}
	fmt.Fprintln(tw, "\nstatus\torders\tamount\t")
	for _, s := range statuses {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t\n", s.Status, s.Orders, s.Amount)
	}
	return tw.Flush()
}
