// Package config defines the configuration model of a sales pipeline run.
//
// A pipeline file is JSON or YAML (chosen by extension) and mirrors the
// Pipeline struct below. Values not present in the file keep the defaults
// from Default; SALESETL_* environment variables override both.
//
// Example (trimmed):
//
//	{
//	  "job":       "amazon_sales",
//	  "source":    { "kind": "file", "file": { "path": "data/Amazon Sale Report.csv" } },
//	  "parser":    { "kind": "csv", "options": { "strict": true } },
//	  "transform": [ { "kind": "sales_clean", "options": { "write_cleaned_csv": true } } ],
//	  "storage":   { "kind": "duckdb", "path": "data/sales.duckdb" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job labels metrics and log lines for this run.
	Job string `json:"job" yaml:"job"`

	Source Source `json:"source" yaml:"source"`
	Parser Parser `json:"parser" yaml:"parser"`

	// Transform lists optional pre-cleaning steps followed by the
	// "sales_clean" step, which must come last.
	Transform []Transform `json:"transform" yaml:"transform"`

	Storage   Storage   `json:"storage" yaml:"storage"`
	Analytics Analytics `json:"analytics" yaml:"analytics"`
	Export    Export    `json:"export" yaml:"export"`
	Runtime   Runtime   `json:"runtime" yaml:"runtime"`
	Log       Log       `json:"log" yaml:"log"`
	Metrics   Metrics   `json:"metrics" yaml:"metrics"`
}

// Source identifies where the export comes from.
type Source struct {
	// Kind selects the source implementation: "file", "http" or "s3".
	Kind string `json:"kind" yaml:"kind"`

	File SourceFile `json:"file" yaml:"file"`
	HTTP SourceHTTP `json:"http" yaml:"http"`
	S3   SourceS3   `json:"s3" yaml:"s3"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path" yaml:"path"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	URL            string `json:"url" yaml:"url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	Retries        int    `json:"retries" yaml:"retries"`
}

// SourceS3 holds configuration for the "s3" source kind.
type SourceS3 struct {
	// URI is s3://bucket/key.
	URI    string `json:"uri" yaml:"uri"`
	Region string `json:"region" yaml:"region"`
	// Endpoint overrides the S3 endpoint (MinIO, localstack).
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// Parser selects how the raw bytes become records. Only "csv" is supported.
//
// CSV options: comma (string), trim_space (bool), strict (bool),
// max_rows (int), header_map (object), null_values (list of strings read as
// null; omitted means the common NaN/NA/NULL markers).
type Parser struct {
	Kind    string  `json:"kind" yaml:"kind"`
	Options Options `json:"options" yaml:"options"`
}

// Transform defines a single transformation step.
//
// Kinds: "normalize" (NFC, NBSP cleanup, empty -> null) and "sales_clean"
// (options: write_cleaned_csv (bool), cleaned_path (string)).
type Transform struct {
	Kind    string  `json:"kind" yaml:"kind"`
	Options Options `json:"options" yaml:"options"`
}

// Storage selects the analytical store.
type Storage struct {
	// Kind is "duckdb" or "sqlite".
	Kind string `json:"kind" yaml:"kind"`
	// Path is the store file; ":memory:" keeps it in memory.
	Path string `json:"path" yaml:"path"`
}

// Analytics tunes the rollup rebuilds.
type Analytics struct {
	Transactional bool `json:"transactional" yaml:"transactional"`
	Diagnostics   bool `json:"diagnostics" yaml:"diagnostics"`
}

// Export configures optional publication of the rollups.
type Export struct {
	Postgres ExportPostgres `json:"postgres" yaml:"postgres"`
}

// ExportPostgres copies both rollup tables into Postgres after a run.
type ExportPostgres struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DSN     string `json:"dsn" yaml:"dsn"`
	// Schema is the target schema; defaults to "public".
	Schema string `json:"schema" yaml:"schema"`
}

// Runtime controls run-wide limits.
type Runtime struct {
	// TimeoutSeconds bounds the whole run (0 = no limit).
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// Log configures the zap logger.
type Log struct {
	Level string `json:"level" yaml:"level"`
	JSON  bool   `json:"json" yaml:"json"`
}

// Metrics selects a metrics backend: "none", "prometheus" or "datadog".
type Metrics struct {
	Backend string `json:"backend" yaml:"backend"`
	// PushURL is the Prometheus Pushgateway URL.
	PushURL string `json:"push_url" yaml:"push_url"`
	// DatadogAddr is the DogStatsD address, e.g. 127.0.0.1:8125.
	DatadogAddr string `json:"datadog_addr" yaml:"datadog_addr"`
}

// Default returns the configuration used when no pipeline file is given.
func Default() Pipeline {
	return Pipeline{
		Job: "amazon_sales",
		Source: Source{
			Kind: "file",
			File: SourceFile{Path: filepath.Join("data", "Amazon Sale Report.csv")},
			HTTP: SourceHTTP{TimeoutSeconds: 60, Retries: 3},
		},
		Parser:    Parser{Kind: "csv", Options: Options{"strict": true}},
		Transform: []Transform{{Kind: "sales_clean", Options: Options{}}},
		Storage:   Storage{Kind: "duckdb", Path: filepath.Join("data", "sales.duckdb")},
		Analytics: Analytics{Transactional: true, Diagnostics: true},
		Export:    Export{Postgres: ExportPostgres{Schema: "public"}},
		Log:       Log{Level: "info"},
		Metrics:   Metrics{Backend: "none"},
	}
}

// Load reads a pipeline file on top of Default. Files ending in .yaml or
// .yml are decoded as YAML, anything else as JSON.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	p := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &p)
	default:
		err = json.Unmarshal(b, &p)
	}
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return p, nil
}

// Environment variables recognised by ApplyEnv.
const (
	EnvSourcePath    = "SALESETL_SOURCE_PATH"
	EnvWarehousePath = "SALESETL_WAREHOUSE_PATH"
	EnvWarehouseKind = "SALESETL_WAREHOUSE_KIND"
	EnvPostgresDSN   = "SALESETL_PG_DSN"
	EnvLogLevel      = "SALESETL_LOG_LEVEL"
)

// ApplyEnv overrides p with any SALESETL_* variables that are set. A source
// path selects the file source; a Postgres DSN enables the export.
func ApplyEnv(p *Pipeline) {
	if v, ok := os.LookupEnv(EnvSourcePath); ok && v != "" {
		p.Source.Kind = "file"
		p.Source.File.Path = v
	}
	if v, ok := os.LookupEnv(EnvWarehousePath); ok && v != "" {
		p.Storage.Path = v
	}
	if v, ok := os.LookupEnv(EnvWarehouseKind); ok && v != "" {
		p.Storage.Kind = v
	}
	if v, ok := os.LookupEnv(EnvPostgresDSN); ok && v != "" {
		p.Export.Postgres.Enabled = true
		p.Export.Postgres.DSN = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		p.Log.Level = v
	}
}

// SalesClean returns the options of the "sales_clean" step, or empty options
// if the step is missing.
func (p Pipeline) SalesClean() Options {
	for _, t := range p.Transform {
		if t.Kind == "sales_clean" {
			return t.Options
		}
	}
	return Options{}
}
