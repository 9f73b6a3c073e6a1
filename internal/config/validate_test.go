package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func TestValidatePipeline_Table(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(p *Pipeline)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"missing job", func(p *Pipeline) { p.Job = " " }, SeverityError, "job", "must not be empty"},
		{"empty file path", func(p *Pipeline) { p.Source.File.Path = "" }, SeverityError, "source.file.path", "non-empty path"},
		{"bad http url", func(p *Pipeline) { p.Source.Kind = "http"; p.Source.HTTP.URL = "ftp://x" }, SeverityError, "source.http.url", "http(s)"},
		{"bad s3 uri", func(p *Pipeline) { p.Source.Kind = "s3"; p.Source.S3.URI = "s3://bucket" }, SeverityError, "source.s3.uri", "s3://bucket/key"},
		{"unknown source", func(p *Pipeline) { p.Source.Kind = "ftp" }, SeverityError, "source.kind", "unknown source kind"},
		{"xml parser", func(p *Pipeline) { p.Parser.Kind = "xml" }, SeverityError, "parser.kind", "only csv"},
		{"wide comma", func(p *Pipeline) { p.Parser.Options = Options{"comma": ";;", "strict": true} }, SeverityError, "parser.options.comma", "single character"},
		{"lenient parser", func(p *Pipeline) { p.Parser.Options = Options{} }, SeverityWarning, "parser.options.strict", "skipped"},
		{"no clean step", func(p *Pipeline) { p.Transform = []Transform{{Kind: "normalize"}} }, SeverityError, "transform", "sales_clean step is required"},
		{"clean not last", func(p *Pipeline) {
			p.Transform = []Transform{{Kind: "sales_clean"}, {Kind: "normalize"}}
		}, SeverityError, "transform[0].kind", "must be the last"},
		{"unknown transform", func(p *Pipeline) {
			p.Transform = []Transform{{Kind: "dedup"}, {Kind: "sales_clean"}}
		}, SeverityError, "transform[0].kind", "unknown transform kind"},
		{"mysql storage", func(p *Pipeline) { p.Storage.Kind = "mysql" }, SeverityError, "storage.kind", "duckdb or sqlite"},
		{"memory store", func(p *Pipeline) { p.Storage.Path = ":memory:" }, SeverityWarning, "storage.path", "in-memory"},
		{"export without dsn", func(p *Pipeline) { p.Export.Postgres.Enabled = true }, SeverityError, "export.postgres.dsn", "dsn is empty"},
		{"prometheus without url", func(p *Pipeline) { p.Metrics.Backend = "prometheus" }, SeverityError, "metrics.push_url", "push_url"},
		{"unknown metrics", func(p *Pipeline) { p.Metrics.Backend = "statsd" }, SeverityError, "metrics.backend", "unknown metrics backend"},
		{"negative timeout", func(p *Pipeline) { p.Runtime.TimeoutSeconds = -1 }, SeverityError, "runtime.timeout_seconds", "negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Default()
			tc.mutate(&p)
			issues := ValidatePipeline(p)
			if !hasIssue(t, issues, tc.sev, tc.path, tc.msg) {
				t.Fatalf("expected %s at %s containing %q; got %+v", tc.sev, tc.path, tc.msg, issues)
			}
		})
	}
}

/*
TestValidatePipeline_ValidMinimal verifies that a well-formed pipeline produces
no issues (errors or warnings).
*/
func TestValidatePipeline_ValidMinimal(t *testing.T) {
	p := Default()
	p.Transform = []Transform{{Kind: "normalize"}, {Kind: "sales_clean"}}
	if issues := ValidatePipeline(p); len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestIssue_Error(t *testing.T) {
	iss := Issue{Severity: SeverityError, Path: "storage.kind", Message: "boom"}
	if got := iss.Error(); got != "error at storage.kind: boom" {
		t.Fatalf("Error() = %q", got)
	}
}
