package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// -----------------------------------------------------------------------------
// Pipeline decoding tests
// -----------------------------------------------------------------------------

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoad_JSONOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "pipeline.json", `{
	  "source": { "kind": "file", "file": { "path": "in/sales.csv" } },
	  "parser": { "kind": "csv", "options": { "strict": false, "header_map": { "Qty": "Qty" } } },
	  "storage": { "kind": "sqlite", "path": "out/sales.db" }
	}`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Source.File.Path != "in/sales.csv" || p.Storage.Kind != "sqlite" || p.Storage.Path != "out/sales.db" {
		t.Fatalf("decoded = %+v", p)
	}
	if p.Parser.Options.Bool("strict", true) {
		t.Fatalf("strict should be false")
	}
	// untouched sections keep their defaults
	if p.Job != "amazon_sales" || !p.Analytics.Transactional || len(p.Transform) != 1 {
		t.Fatalf("defaults lost: %+v", p)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "pipeline.yaml", `
job: nightly
source:
  kind: s3
  s3:
    uri: s3://exports/amazon/2022.csv
    region: ap-south-1
parser:
  kind: csv
  options:
    max_rows: 10
    comma: ";"
transform:
  - kind: normalize
  - kind: sales_clean
    options:
      write_cleaned_csv: true
storage:
  kind: duckdb
  path: /var/lib/sales.duckdb
export:
  postgres:
    enabled: true
    dsn: postgres://u@localhost/db
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Job != "nightly" || p.Source.S3.URI != "s3://exports/amazon/2022.csv" || p.Source.S3.Region != "ap-south-1" {
		t.Fatalf("decoded = %+v", p)
	}
	if got := p.Parser.Options.Int("max_rows", 0); got != 10 {
		t.Fatalf("max_rows = %d", got)
	}
	if got := p.Parser.Options.Rune("comma", ','); got != ';' {
		t.Fatalf("comma = %q", got)
	}
	if !p.SalesClean().Bool("write_cleaned_csv", false) {
		t.Fatalf("write_cleaned_csv not decoded: %+v", p.Transform)
	}
	if !p.Export.Postgres.Enabled || p.Export.Postgres.Schema != "public" {
		t.Fatalf("export = %+v", p.Export)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := Load(writeFile(t, "bad.json", "{")); err == nil {
		t.Fatal("expected error for bad JSON")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvSourcePath, "/tmp/export.csv")
	t.Setenv(EnvWarehousePath, "/tmp/store.db")
	t.Setenv(EnvWarehouseKind, "sqlite")
	t.Setenv(EnvPostgresDSN, "postgres://x")
	t.Setenv(EnvLogLevel, "debug")

	p := Default()
	p.Source.Kind = "http"
	ApplyEnv(&p)

	if p.Source.Kind != "file" || p.Source.File.Path != "/tmp/export.csv" {
		t.Fatalf("source = %+v", p.Source)
	}
	if p.Storage != (Storage{Kind: "sqlite", Path: "/tmp/store.db"}) {
		t.Fatalf("storage = %+v", p.Storage)
	}
	if !p.Export.Postgres.Enabled || p.Export.Postgres.DSN != "postgres://x" || p.Log.Level != "debug" {
		t.Fatalf("export/log = %+v %+v", p.Export, p.Log)
	}
}

func TestDefault_IsValid(t *testing.T) {
	if errs := Errors(ValidatePipeline(Default())); len(errs) != 0 {
		t.Fatalf("default pipeline has errors: %v", errs)
	}
}

// -----------------------------------------------------------------------------
// Options helper tests
// -----------------------------------------------------------------------------

func TestOptions_DefaultsAndCoercion(t *testing.T) {
	o := Options{
		"s":    "x",
		"b":    true,
		"f":    float64(3),
		"i":    7,
		"r":    ";",
		"bad":  []int{1},
		"hmap": map[string]any{"A": "a", "N": 1},
	}
	if o.String("s", "d") != "x" || o.String("bad", "d") != "d" || o.String("nope", "d") != "d" {
		t.Fatal("String")
	}
	if !o.Bool("b", false) || o.Bool("s", false) {
		t.Fatal("Bool")
	}
	if o.Int("f", 0) != 3 || o.Int("i", 0) != 7 || o.Int("s", 9) != 9 {
		t.Fatal("Int")
	}
	if o.Rune("r", ',') != ';' || o.Rune("nope", ',') != ',' {
		t.Fatal("Rune")
	}
	if got := o.StringMap("hmap"); !reflect.DeepEqual(got, map[string]string{"A": "a"}) {
		t.Fatalf("StringMap = %v", got)
	}
	if o.Any("nope") != nil {
		t.Fatal("Any")
	}
}

func TestOptions_UnmarshalJSON_NullYieldsEmptyMap(t *testing.T) {
	var tr Transform
	if err := json.Unmarshal([]byte(`{"kind":"normalize","options":null}`), &tr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tr.Options == nil || len(tr.Options) != 0 {
		t.Fatalf("options = %#v, want empty non-nil map", tr.Options)
	}
}

func TestLoad_ShippedSampleIsValid(t *testing.T) {
	p, err := Load(filepath.Join("..", "..", "configs", "pipelines", "amazon_sales.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if errs := Errors(ValidatePipeline(p)); len(errs) != 0 {
		t.Fatalf("sample has errors: %v", errs)
	}
	if p.Storage.Kind != "duckdb" || !p.SalesClean().Bool("write_cleaned_csv", false) {
		t.Fatalf("unexpected sample: %+v", p)
	}
}
