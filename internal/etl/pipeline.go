// Package etl runs one batch of the sales pipeline.
//
// The run is a small DAG:
//
//	validate_source -> clean -> load_raw -> { daily_orders, monthly_revenue } -> export_postgres
//
// The two rollups depend only on load_raw and run concurrently on the shared
// warehouse handle. export_postgres is added only when a Publisher is set.
package etl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"salesetl/internal/analytics"
	"salesetl/internal/config"
	"salesetl/internal/dag"
	"salesetl/internal/datasource"
	"salesetl/internal/datasource/file"
	"salesetl/internal/datasource/httpds"
	pgexport "salesetl/internal/export/postgres"
	"salesetl/internal/logging"
	"salesetl/internal/metrics"
	"salesetl/internal/parser"
	pcsv "salesetl/internal/parser/csv"
	"salesetl/internal/storage"
	"salesetl/internal/transformer"
	"salesetl/internal/transformer/builtin"
	"salesetl/internal/warehouse"
	"salesetl/pkg/records"
)

// Stage names.
const (
	StageValidateSource = "validate_source"
	StageClean          = "clean"
	StageLoadRaw        = "load_raw"
	StageDailyOrders    = "daily_orders"
	StageMonthlyRevenue = "monthly_revenue"
	StageExportPostgres = "export_postgres"
)

// Publisher receives both rollups after they are rebuilt.
type Publisher interface {
	Publish(ctx context.Context, monthly []analytics.MonthlyRow, daily []analytics.DailyRow) (pgexport.Counts, error)
}

// Pipeline holds everything one run needs. It does not own the warehouse
// manager; the caller releases it.
type Pipeline struct {
	cfg       config.Pipeline
	src       datasource.Source
	wh        *warehouse.Manager
	publisher Publisher
	log       *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithPublisher adds the export_postgres stage.
func WithPublisher(p Publisher) Option {
	return func(pl *Pipeline) { pl.publisher = p }
}

// New returns a Pipeline for cfg reading from src and writing through wh.
func New(cfg config.Pipeline, src datasource.Source, wh *warehouse.Manager, log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{cfg: cfg, src: src, wh: wh, log: log.Named("etl")}
	for _, o := range opts {
		o(p)
	}
	return p
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Name     string
	Status   dag.Status
	Duration time.Duration
	Err      error
}

// Result summarizes a run. Fields of stages that did not succeed keep their
// zero values.
type Result struct {
	RunID string
	Job   string

	Source      SourceInfo
	Clean       transformer.Stats
	Skipped     int
	Fingerprint uint64
	CleanedPath string

	RawRows     int64
	MonthlyRows int64
	DailyRows   int64
	Exported    *pgexport.Counts

	Stages   []StageResult
	Duration time.Duration
}

// Stage returns the result of the named stage.
func (r *Result) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

type cleaned struct {
	header  []string
	recs    []records.Record
	stats   transformer.Stats
	skipped int
	fp      uint64
	path    string
}

// Run executes the pipeline once. On failure the returned error is a
// *StageError naming the failed stage; the Result is always non-nil.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString(), Job: p.cfg.Job}
	log := p.log.With(zap.String("run_id", res.RunID), zap.String("job", p.cfg.Job))

	if s := p.cfg.Runtime.TimeoutSeconds; s > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s)*time.Second)
		defer cancel()
	}

	g, err := p.graph(log)
	if err != nil {
		return res, err
	}

	log.Info("pipeline started", zap.String("source", describe(p.src)), zap.String("store", p.cfg.Storage.Kind))
	rep, runErr := g.Run(ctx, func(sr dag.StageReport) {
		metrics.RecordStep(p.cfg.Job, sr.Name, sr.Err, sr.Duration)
		switch sr.Status {
		case dag.StatusSucceeded:
			log.Info("stage done", zap.String("stage", sr.Name), zap.Duration("elapsed", sr.Duration.Truncate(time.Millisecond)))
		case dag.StatusSkipped:
			log.Debug("stage skipped", zap.String("stage", sr.Name))
		default:
			log.Error("stage failed", zap.String("stage", sr.Name), zap.String("status", string(sr.Status)), zap.Error(sr.Err))
		}
	})
	p.collect(res, rep)
	res.Duration = time.Since(start)

	if runErr != nil {
		return res, p.stageError(rep, runErr)
	}
	log.Info("pipeline complete",
		zap.String("rows", logging.Count(res.Clean.Rows)),
		zap.String("raw_rows", logging.Count(res.RawRows)),
		zap.Int64("monthly_rows", res.MonthlyRows),
		zap.Int64("daily_rows", res.DailyRows),
		zap.String("fingerprint", fmt.Sprintf("%016x", res.Fingerprint)),
		zap.Duration("elapsed", res.Duration.Truncate(time.Millisecond)),
	)
	return res, nil
}

func (p *Pipeline) graph(log *zap.Logger) (*dag.Graph, error) {
	g := dag.New()
	opts := analytics.Options{
		Transactional: p.cfg.Analytics.Transactional,
		Diagnostics:   p.cfg.Analytics.Diagnostics,
	}
	rebuild := func(e analytics.Engine) dag.StageFunc {
		return func(ctx context.Context, in dag.Results) (any, error) {
			raw, _ := dag.Output[int64](in, StageLoadRaw)
			h, err := p.wh.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			return e.Rebuild(ctx, h, raw)
		}
	}

	add := []struct {
		name string
		deps []string
		fn   dag.StageFunc
	}{
		{StageValidateSource, nil, p.validateStage(log)},
		{StageClean, []string{StageValidateSource}, p.cleanStage(log)},
		{StageLoadRaw, []string{StageClean}, p.loadStage(log)},
		{StageDailyOrders, []string{StageLoadRaw}, rebuild(analytics.NewDailyOrders(opts, log))},
		{StageMonthlyRevenue, []string{StageLoadRaw}, rebuild(analytics.NewMonthlyRevenue(opts, log))},
	}
	if p.publisher != nil {
		add = append(add, struct {
			name string
			deps []string
			fn   dag.StageFunc
		}{StageExportPostgres, []string{StageDailyOrders, StageMonthlyRevenue}, p.exportStage()})
	}
	for _, s := range add {
		if err := g.Add(s.name, s.deps, s.fn); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (p *Pipeline) validateStage(log *zap.Logger) dag.StageFunc {
	return func(ctx context.Context, _ dag.Results) (any, error) {
		return ValidateSource(ctx, p.src, ParserOptions(p.cfg.Parser), log)
	}
}

func (p *Pipeline) cleanStage(log *zap.Logger) dag.StageFunc {
	return func(ctx context.Context, _ dag.Results) (any, error) {
		rc, err := p.src.Open(ctx)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		ps, err := parser.New(p.cfg.Parser.Kind, ParserOptions(p.cfg.Parser), log)
		if err != nil {
			return nil, err
		}
		parsed, err := ps.Parse(rc)
		if err != nil {
			return nil, datasource.Unreadable(describe(p.src), err)
		}
		metrics.RecordRow(p.cfg.Job, "processed", int64(len(parsed.Records)))
		metrics.RecordRow(p.cfg.Job, "parse_skipped", int64(parsed.Skipped))

		recs, stats, err := transformer.NewSalesCleaner(transformer.WithPreTransforms(PreTransforms(p.cfg.Transform)...)).Clean(parsed.Records)
		if err != nil {
			return nil, err
		}
		metrics.RecordRow(p.cfg.Job, "cancelled_zeroed", int64(stats.CancelledZeroed))
		metrics.RecordRow(p.cfg.Job, "flagged", int64(stats.Flagged))
		metrics.RecordRow(p.cfg.Job, "currency_defaulted", int64(stats.CurrencyDefaulted))

		out := cleaned{
			header:  parsed.Header,
			recs:    recs,
			stats:   stats,
			skipped: parsed.Skipped,
			fp:      transformer.Fingerprint(recs),
		}
		log.Info("batch cleaned",
			zap.String("rows", logging.Count(stats.Rows)),
			zap.Int("amount_nulls_before", stats.AmountNullsBefore),
			zap.Int("amount_nulls_after", stats.AmountNullsAfter),
			zap.Int("cancelled_zeroed", stats.CancelledZeroed),
			zap.Int("flagged", stats.Flagged),
			zap.Int("currency_defaulted", stats.CurrencyDefaulted),
			zap.Int("skipped", parsed.Skipped),
			zap.String("fingerprint", fmt.Sprintf("%016x", out.fp)),
		)

		opts := p.cfg.SalesClean()
		if opts.Bool("write_cleaned_csv", false) {
			out.path = CleanedPath(p.src, opts.String("cleaned_path", ""), p.cfg.Storage.Path)
			if err := writeCleaned(out.path, out.header, recs); err != nil {
				return nil, err
			}
			log.Info("cleaned artifact written", zap.String("path", out.path))
		}
		return out, nil
	}
}

func (p *Pipeline) loadStage(log *zap.Logger) dag.StageFunc {
	return func(ctx context.Context, in dag.Results) (any, error) {
		c, ok := dag.Output[cleaned](in, StageClean)
		if !ok {
			return nil, errors.New("clean output missing")
		}
		h, err := p.wh.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return storage.NewLoader(h, p.cfg.Job, log).Load(ctx, c.recs)
	}
}

func (p *Pipeline) exportStage() dag.StageFunc {
	return func(ctx context.Context, _ dag.Results) (any, error) {
		h, err := p.wh.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		monthly, err := analytics.ReadMonthlyRevenue(ctx, h)
		if err != nil {
			return nil, err
		}
		daily, err := analytics.ReadDailyOrders(ctx, h)
		if err != nil {
			return nil, err
		}
		return p.publisher.Publish(ctx, monthly, daily)
	}
}

func (p *Pipeline) collect(res *Result, rep *dag.Report) {
	for _, s := range rep.Stages {
		res.Stages = append(res.Stages, StageResult(s))
	}
	if v, ok := dag.Output[SourceInfo](rep.Outputs, StageValidateSource); ok {
		res.Source = v
	}
	if c, ok := dag.Output[cleaned](rep.Outputs, StageClean); ok {
		res.Clean = c.stats
		res.Skipped = c.skipped
		res.Fingerprint = c.fp
		res.CleanedPath = c.path
	}
	res.RawRows, _ = dag.Output[int64](rep.Outputs, StageLoadRaw)
	res.DailyRows, _ = dag.Output[int64](rep.Outputs, StageDailyOrders)
	res.MonthlyRows, _ = dag.Output[int64](rep.Outputs, StageMonthlyRevenue)
	if c, ok := dag.Output[pgexport.Counts](rep.Outputs, StageExportPostgres); ok {
		res.Exported = &c
	}
}

// stageError attributes err to the stage that failed first. Errors raised
// before any stage ran (graph validation) are returned as they are.
func (p *Pipeline) stageError(rep *dag.Report, err error) error {
	for _, s := range rep.Stages {
		if s.Status == dag.StatusFailed && s.Err != nil && errors.Is(err, s.Err) {
			return &StageError{Stage: s.Name, Err: s.Err}
		}
	}
	for _, s := range rep.Stages {
		if s.Status == dag.StatusFailed || s.Status == dag.StatusCanceled {
			return &StageError{Stage: s.Name, Err: err}
		}
	}
	return err
}

// PreTransforms returns the optional steps configured before sales_clean.
func PreTransforms(ts []config.Transform) []transformer.Transformer {
	var out []transformer.Transformer
	for _, t := range ts {
		if t.Kind == "normalize" {
			out = append(out, builtin.Normalize{})
		}
	}
	return out
}

// CleanedPath is where the cleaned batch is written. An explicit path wins.
// A local export "x/report.csv" yields "x/report_cleaned.csv"; remote exports
// are named after their URL and placed next to the store file.
func CleanedPath(src datasource.Source, explicit, storePath string) string {
	if explicit != "" {
		return explicit
	}
	if l, ok := src.(*file.Local); ok {
		in := l.Path()
		return strings.TrimSuffix(in, filepath.Ext(in)) + "_cleaned.csv"
	}
	dir := "."
	if storePath != "" && storePath != ":memory:" {
		dir = filepath.Dir(storePath)
	}
	return filepath.Join(dir, httpds.SafeFilenameFromURL(describe(src))+"_cleaned.csv")
}

func writeCleaned(path string, header []string, recs []records.Record) (err error) {
	if !slices.Contains(header, builtin.FieldQualityFlag) {
		header = append(header[:len(header):len(header)], builtin.FieldQualityFlag)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("etl: cleaned artifact: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("etl: cleaned artifact: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("etl: cleaned artifact: %w", cerr)
		}
	}()
	if err := pcsv.WriteRecords(f, header, recs); err != nil {
		return fmt.Errorf("etl: cleaned artifact %s: %w", path, err)
	}
	return nil
}
