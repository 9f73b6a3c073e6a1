package etl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"salesetl/internal/config"
	"salesetl/internal/datasource"
	"salesetl/internal/datasource/file"
	"salesetl/internal/datasource/httpds"
	"salesetl/internal/datasource/s3ds"
	pcsv "salesetl/internal/parser/csv"
)

// sampleRows is how many data rows validation parses.
const sampleRows = 5

// peekBytes bounds the prefix fetched from sources that support ranged reads.
const peekBytes = 64 << 10

// NewSource builds the datasource selected by cfg.
func NewSource(ctx context.Context, cfg config.Source, log *zap.Logger) (datasource.Source, error) {
	switch cfg.Kind {
	case "", "file":
		return file.NewLocal(cfg.File.Path), nil
	case "http":
		c := httpds.NewClient(httpds.Config{
			Timeout:    time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
			MaxRetries: cfg.HTTP.Retries,
			Headers:    map[string][]string{"Accept": {"text/csv, */*"}},
			Logger:     log,
		})
		return httpds.NewSource(c, cfg.HTTP.URL), nil
	case "s3":
		return s3ds.New(ctx, s3ds.Config{
			URI:      cfg.S3.URI,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
		})
	default:
		return nil, fmt.Errorf("etl: unknown source kind %q", cfg.Kind)
	}
}

// ParserOptions maps the parser section of a pipeline file onto csv options.
func ParserOptions(p config.Parser) pcsv.Options {
	return pcsv.Options{
		Comma:     p.Options.Rune("comma", ','),
		TrimSpace: p.Options.Bool("trim_space", false),
		HeaderMap: p.Options.StringMap("header_map"),
		Strict:    p.Options.Bool("strict", true),
		MaxRows:   p.Options.Int("max_rows", 0),
		// absent keeps the csv defaults
		NullValues: p.Options.StringSlice("null_values"),
	}
}

// SourceInfo is what validation learned about the export.
type SourceInfo struct {
	Name       string
	Columns    []string
	SampleRows int
	// SizeMB is -1 when the source cannot report its size.
	SizeMB float64
}

// ValidateSource proves the export exists and parses: it reads the header and
// up to five data rows. Sources that implement datasource.Peeker are sampled
// from a bounded prefix instead of being opened in full.
func ValidateSource(ctx context.Context, src datasource.Source, opt pcsv.Options, log *zap.Logger) (SourceInfo, error) {
	if log == nil {
		log = zap.NewNop()
	}
	info := SourceInfo{Name: describe(src)}

	size, err := datasource.SizeMB(ctx, src)
	if err != nil {
		return info, err
	}
	info.SizeMB = size

	r, err := openSample(ctx, src)
	if err != nil {
		return info, err
	}
	defer r.Close()

	opt.MaxRows = sampleRows
	res, err := pcsv.NewParser(opt, log).Parse(r)
	if err != nil {
		return info, datasource.Unreadable(info.Name, err)
	}
	info.Columns = res.Header
	info.SampleRows = len(res.Records)

	fields := []zap.Field{
		zap.String("source", info.Name),
		zap.Int("columns", len(info.Columns)),
		zap.Int("sample_rows", info.SampleRows),
	}
	if info.SizeMB >= 0 {
		fields = append(fields, zap.String("size_mb", fmt.Sprintf("%.2f", info.SizeMB)))
	}
	log.Info("source validated", fields...)
	return info, nil
}

func openSample(ctx context.Context, src datasource.Source) (io.ReadCloser, error) {
	p, ok := src.(datasource.Peeker)
	if !ok {
		return src.Open(ctx)
	}
	b, err := p.Peek(ctx, peekBytes)
	if err != nil {
		return nil, err
	}
	// A full prefix may end mid-row; drop the partial line.
	if len(b) == peekBytes {
		if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
			b = b[:i+1]
		}
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func describe(src datasource.Source) string {
	if d, ok := src.(datasource.Describer); ok {
		return d.Describe()
	}
	return fmt.Sprintf("%T", src)
}
