// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "transform[1].kind"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Errors returns only the blocking issues.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			out = append(out, iss)
		}
	}
	return out
}

// ValidatePipeline performs static validation / linting of a Pipeline. It does
// not mutate the pipeline. Callers may decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateTransforms(p.Transform)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateExport(p.Export)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	if p.Runtime.TimeoutSeconds < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.timeout_seconds",
			Message:  "timeout_seconds must not be negative",
		})
	}
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a non-empty path",
			})
		}
	case "http":
		u, err := url.Parse(s.HTTP.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.url",
				Message:  fmt.Sprintf("http source requires an absolute http(s) URL, got %q", s.HTTP.URL),
			})
		}
		if s.HTTP.Retries < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.retries",
				Message:  "retries must not be negative",
			})
		}
	case "s3":
		if !strings.HasPrefix(s.S3.URI, "s3://") || len(strings.SplitN(strings.TrimPrefix(s.S3.URI, "s3://"), "/", 2)) != 2 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.s3.uri",
				Message:  fmt.Sprintf("s3 source requires s3://bucket/key, got %q", s.S3.URI),
			})
		}
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; use file, http or s3", s.Kind),
		})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	if p.Kind != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("parser kind %q is not supported; only csv is", p.Kind),
		})
		return issues
	}
	if c := p.Options.String("comma", ","); len([]rune(c)) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.comma",
			Message:  fmt.Sprintf("comma must be a single character, got %q", c),
		})
	}
	if p.Options.Int("max_rows", 0) > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.options.max_rows",
			Message:  "max_rows is set; only part of the export will be loaded",
		})
	}
	if !p.Options.Bool("strict", false) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.options.strict",
			Message:  "strict is off; malformed rows are skipped instead of failing the run",
		})
	}
	return issues
}

func validateTransforms(ts []Transform) []Issue {
	var issues []Issue
	clean := -1
	for i, t := range ts {
		path := fmt.Sprintf("transform[%d].kind", i)
		switch t.Kind {
		case "normalize":
		case "sales_clean":
			if clean >= 0 {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path,
					Message:  "sales_clean may appear only once",
				})
			}
			clean = i
		case "":
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  "transform kind must not be empty",
			})
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  fmt.Sprintf("unknown transform kind %q; use normalize or sales_clean", t.Kind),
			})
		}
	}
	switch {
	case clean < 0:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "transform",
			Message:  "a sales_clean step is required",
		})
	case clean != len(ts)-1:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     fmt.Sprintf("transform[%d].kind", clean),
			Message:  "sales_clean must be the last transform",
		})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	switch s.Kind {
	case "duckdb", "sqlite":
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; use duckdb or sqlite", s.Kind),
		})
	}
	if strings.TrimSpace(s.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.path",
			Message:  "storage.path must not be empty (use :memory: for a throwaway store)",
		})
	} else if s.Path == ":memory:" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.path",
			Message:  "in-memory store; results are discarded when the run ends",
		})
	}
	return issues
}

func validateExport(e Export) []Issue {
	var issues []Issue
	if e.Postgres.Enabled && strings.TrimSpace(e.Postgres.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "export.postgres.dsn",
			Message:  "postgres export is enabled but dsn is empty",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "prometheus":
		if strings.TrimSpace(m.PushURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.push_url",
				Message:  "prometheus backend requires push_url",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.datadog_addr",
				Message:  "datadog_addr is empty; localhost:8125 is used",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; use none, prometheus or datadog", m.Backend),
		})
	}
	return issues
}
