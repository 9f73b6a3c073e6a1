package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"salesetl/internal/config"
	"salesetl/internal/logging"
	"salesetl/internal/metrics"
	"salesetl/internal/metrics/datadog"
	"salesetl/internal/metrics/prompush"
	"salesetl/internal/warehouse"
)

const defaultDatadogAddr = "localhost:8125"

// app carries the persistent flags and the state built from them.
type app struct {
	cfgPath        string
	logLevel       string
	metricsBackend string

	cfg    config.Pipeline
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "salesetl",
		Short: "Clean a sales export and rebuild the revenue rollups",
		Long: `salesetl reads a sales CSV export, cleans it, appends it to the raw
sales table of the warehouse and rebuilds the monthly_revenue and
daily_orders rollups.

Without --config the built-in defaults are used:
  source:    data/Amazon Sale Report.csv
  warehouse: data/sales.duckdb
SALESETL_* environment variables override the file and the defaults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "pipeline config file (.json, .yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.metricsBackend, "metrics-backend", "", "metrics backend override (none, prometheus, datadog)")

	root.AddCommand(
		newRunCmd(a),
		newValidateCmd(a),
		newSchemaCmd(a),
		newReportCmd(a),
	)
	return root
}

// setup loads the pipeline, applies env and flag overrides and builds the
// logger.
func (a *app) setup() error {
	cfg := config.Default()
	if a.cfgPath != "" {
		var err error
		if cfg, err = config.Load(a.cfgPath); err != nil {
			return err
		}
	}
	config.ApplyEnv(&cfg)
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.metricsBackend != "" {
		cfg.Metrics.Backend = a.metricsBackend
	}
	a.cfg = cfg

	log, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return err
	}
	a.logger = log
	return nil
}

// checkConfig logs warnings and fails on blocking issues.
func (a *app) checkConfig() error {
	issues := config.ValidatePipeline(a.cfg)
	for _, iss := range issues {
		if iss.Severity == config.SeverityWarning {
			a.logger.Warn("config", zap.String("path", iss.Path), zap.String("issue", iss.Message))
		}
	}
	errs := config.Errors(issues)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// startMetrics installs the configured backend and returns the flush to
// defer. An unusable backend is logged and metrics stay disabled.
func (a *app) startMetrics() func() {
	m := a.cfg.Metrics
	var (
		b   metrics.Backend
		err error
	)
	switch m.Backend {
	case "prometheus":
		b, err = prompush.NewBackend(a.cfg.Job, m.PushURL)
	case "datadog":
		addr := m.DatadogAddr
		if addr == "" {
			addr = defaultDatadogAddr
		}
		b, err = datadog.NewBackend(datadog.Config{Addr: addr, Namespace: "salesetl."})
	case "", "none":
		a.logger.Debug("metrics disabled")
		return func() {}
	default:
		a.logger.Warn("unknown metrics backend; metrics disabled", zap.String("backend", m.Backend))
		return func() {}
	}
	if err != nil {
		a.logger.Warn("metrics backend unavailable; using nop", zap.String("backend", m.Backend), zap.Error(err))
		return func() {}
	}

	metrics.SetBackend(b)
	a.logger.Info("metrics enabled", zap.String("backend", m.Backend), zap.String("job", a.cfg.Job))
	return func() {
		if err := metrics.Flush(); err != nil {
			a.logger.Warn("metrics flush failed", zap.Error(err))
		}
	}
}

func (a *app) manager() *warehouse.Manager {
	return warehouse.NewManager(warehouse.Config{Kind: a.cfg.Storage.Kind, Path: a.cfg.Storage.Path}, a.logger)
}

// release closes m, keeping the first error.
func (a *app) release(m *warehouse.Manager, err *error) {
	if rerr := m.Release(); rerr != nil {
		a.logger.Warn("warehouse release failed", zap.Error(rerr))
		if *err == nil {
			*err = rerr
		}
	}
}
