package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"salesetl/internal/etl"
	pgexport "salesetl/internal/export/postgres"
	"salesetl/internal/logging"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long: `Runs validate_source, clean, load_raw, daily_orders and monthly_revenue,
then export_postgres when export.postgres.enabled is set. A failure names
the stage that caused it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd)
		},
	}
}

func (a *app) run(cmd *cobra.Command) (err error) {
	if err := a.checkConfig(); err != nil {
		return err
	}
	flush := a.startMetrics()
	defer flush()

	ctx := cmd.Context()
	src, err := etl.NewSource(ctx, a.cfg.Source, a.logger)
	if err != nil {
		return err
	}

	var opts []etl.Option
	if pg := a.cfg.Export.Postgres; pg.Enabled {
		exp, err := pgexport.Open(ctx, pgexport.Config{DSN: pg.DSN, Schema: pg.Schema}, a.logger)
		if err != nil {
			return err
		}
		defer exp.Close()
		opts = append(opts, etl.WithPublisher(exp))
	}

	wh := a.manager()
	defer a.release(wh, &err)

	res, err := etl.New(a.cfg, src, wh, a.logger, opts...).Run(ctx)
	printRun(cmd.OutOrStdout(), res)
	if err != nil {
		a.logger.Error("run failed", zap.String("run_id", res.RunID), zap.Error(err))
		return err
	}
	return nil
}

func printRun(w io.Writer, res *etl.Result) {
	if res == nil {
		return
	}
	fmt.Fprintf(w, "run %s (%s)\n", res.RunID, res.Job)
	for _, s := range res.Stages {
		line := fmt.Sprintf("  %-16s %-9s %s", s.Name, s.Status, s.Duration.Truncate(time.Millisecond))
		if s.Err != nil {
			line += "  " + s.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
	if res.Clean.Rows == 0 && res.RawRows == 0 {
		return
	}
	fmt.Fprintf(w, "rows cleaned:     %s (flagged %d, cancelled zeroed %d)\n",
		logging.Count(res.Clean.Rows), res.Clean.Flagged, res.Clean.CancelledZeroed)
	fmt.Fprintf(w, "raw table:        %s\n", logging.Count(res.RawRows))
	fmt.Fprintf(w, "monthly_revenue:  %d\n", res.MonthlyRows)
	fmt.Fprintf(w, "daily_orders:     %d\n", res.DailyRows)
	if res.CleanedPath != "" {
		fmt.Fprintf(w, "cleaned csv:      %s\n", res.CleanedPath)
	}
	if res.Exported != nil {
		fmt.Fprintf(w, "postgres:         %d monthly, %d daily\n", res.Exported.Monthly, res.Exported.Daily)
	}
}
