package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesetl/internal/config"
	"salesetl/internal/datasource"
	"salesetl/internal/etl"
)

const exportCSV = "index,Order ID,Date,Status,Fulfilment,Sales Channel ,ship-service-level,Style,SKU,Category,Size,ASIN,Courier Status,Qty,currency,Amount,ship-city,ship-state,ship-postal-code,ship-country,promotion-ids,B2B,fulfilled-by\n" +
	"0,B00-1,3-31-22,Shipped,Amazon,Amazon.in,Expedited,SET389,SET389-KR-NP-S,Set,S,B09KXVBD7Z,Shipped,1,INR,299.0,MUMBAI,MAHARASHTRA,400081.0,IN,,False,\n" +
	"1,B00-2,4-01-22,Cancelled,Merchant,Amazon.in,Standard,JNE3781,JNE3781-KR-XXXL,kurta,3XL,B09K3WFS32,,1,,,BENGALURU,KARNATAKA,560085.0,IN,,False,Easy Ship\n" +
	"2,B00-3,4-02-22,Shipped,Amazon,Amazon.in,Expedited,J0341,J0341-DR-L,Western Dress,L,B07WV4JV4D,Shipped,1,INR,599.5,PUNE,MAHARASHTRA,411044.0,IN,,False,\n"

// clearEnv keeps SALESETL_* variables of the host out of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		config.EnvSourcePath, config.EnvWarehousePath, config.EnvWarehouseKind,
		config.EnvPostgresDSN, config.EnvLogLevel,
	} {
		t.Setenv(k, "")
	}
}

// writeConfig writes a YAML pipeline reading input into a sqlite store under
// dir and returns its path.
func writeConfig(t *testing.T, dir, input, storageKind string) string {
	t.Helper()
	cfg := fmt.Sprintf(`job: cli_test
source:
  kind: file
  file:
    path: %q
parser:
  kind: csv
  options:
    strict: true
transform:
  - kind: sales_clean
storage:
  kind: %s
  path: %q
log:
  level: error
`, input, storageKind, filepath.Join(dir, "sales.db"))
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func newWorkspace(t *testing.T) (cfgPath string) {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "Amazon Sale Report.csv")
	require.NoError(t, os.WriteFile(input, []byte(exportCSV), 0o644))
	return writeConfig(t, dir, input, "sqlite")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCmd_ThreeRowExport(t *testing.T) {
	cfg := newWorkspace(t)

	out, err := execute(t, "--config", cfg, "run")
	require.NoError(t, err, out)

	assert.Contains(t, out, "run ")
	assert.Contains(t, out, etl.StageValidateSource)
	assert.Contains(t, out, etl.StageMonthlyRevenue)
	assert.Contains(t, out, "raw table:        3")
	assert.Contains(t, out, "monthly_revenue:  2")
	assert.Contains(t, out, "daily_orders:     3")
	assert.NotContains(t, out, "postgres:")
}

func TestReportCmd_RebuildsFromRawTable(t *testing.T) {
	cfg := newWorkspace(t)

	_, err := execute(t, "--config", cfg, "run")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "report", "--top", "1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "monthly_revenue: 2 rows")
	assert.Contains(t, out, "daily_orders: 3 rows")
	// --top 1 keeps only the highest-revenue row, which is not the earliest month.
	assert.Contains(t, out, "Western Dress")
	assert.Contains(t, out, "599.50")
	assert.NotContains(t, out, "2022-03")
	assert.Contains(t, out, "Cancelled")
	assert.Contains(t, out, "Shipped")
}

func TestSchemaCmd_CreatesEmptyTables(t *testing.T) {
	cfg := newWorkspace(t)

	out, err := execute(t, "--config", cfg, "schema")
	require.NoError(t, err, out)
	for _, table := range []string{"raw_amazon_sales", "monthly_revenue", "daily_orders"} {
		assert.Contains(t, out, table)
	}
	assert.Contains(t, out, "0 rows")
}

func TestValidateCmd(t *testing.T) {
	t.Run("config only", func(t *testing.T) {
		cfg := newWorkspace(t)
		out, err := execute(t, "--config", cfg, "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "config ok")
	})

	t.Run("with source", func(t *testing.T) {
		cfg := newWorkspace(t)
		out, err := execute(t, "--config", cfg, "validate", "--source")
		require.NoError(t, err, out)
		assert.Contains(t, out, "columns:     23")
		assert.Contains(t, out, "sample rows: 3")
	})

	t.Run("invalid storage kind", func(t *testing.T) {
		clearEnv(t)
		dir := t.TempDir()
		cfg := writeConfig(t, dir, filepath.Join(dir, "in.csv"), "mysql")
		out, err := execute(t, "--config", cfg, "validate")
		require.Error(t, err)
		assert.Contains(t, out, "error: storage.kind")
	})
}

func TestRunCmd_MissingSourceNamesStage(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg := writeConfig(t, dir, filepath.Join(dir, "absent.csv"), "sqlite")

	out, err := execute(t, "--config", cfg, "run")
	require.Error(t, err)

	var se *etl.StageError
	require.True(t, errors.As(err, &se), "err=%v", err)
	assert.Equal(t, etl.StageValidateSource, se.Stage)
	assert.ErrorIs(t, err, datasource.ErrSourceMissing)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, out, "failed")
}

func TestRunCmd_EnvOverridesConfig(t *testing.T) {
	cfg := newWorkspace(t)
	t.Setenv(config.EnvSourcePath, filepath.Join(t.TempDir(), "elsewhere.csv"))

	_, err := execute(t, "--config", cfg, "run")
	assert.ErrorIs(t, err, datasource.ErrSourceMissing)
}

func TestRoot_BadLogLevel(t *testing.T) {
	cfg := newWorkspace(t)
	_, err := execute(t, "--config", cfg, "--log-level", "loud", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid level")
}
