package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"salesetl/internal/warehouse"
	"salesetl/pkg/records"
)

func openStore(t *testing.T) *warehouse.Handle {
	t.Helper()
	m := warehouse.NewManager(warehouse.Config{
		Kind: "sqlite",
		Path: filepath.Join(t.TempDir(), "sales.db"),
	}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = m.Release() })
	h, err := m.Acquire(context.Background())
	require.NoError(t, err)
	return h
}

func cleanedBatch() []records.Record {
	day := func(m time.Month, d int) time.Time { return time.Date(2022, m, d, 0, 0, 0, 0, time.UTC) }
	return []records.Record{
		{"Order ID": "B00-1", "Date": day(3, 31), "Status": "Shipped", "Category": "Set", "Amount": 299.0, "currency": "INR", "Qty": int64(1), "Sales Channel ": "Amazon.in", "ship-postal-code": int64(560001), "data_quality_flag": nil},
		{"Order ID": "B00-2", "Date": day(4, 1), "Status": "Cancelled", "Category": "kurta", "Amount": 0.0, "currency": "INR", "Qty": int64(1), "Sales Channel ": "Amazon.in", "ship-postal-code": nil, "data_quality_flag": nil},
		{"Order ID": "B00-3", "Date": day(4, 2), "Status": "Shipped", "Category": "Western Dress", "Amount": 599.5, "currency": "INR", "Qty": int64(2), "Sales Channel ": "Amazon.in", "ship-postal-code": int64(110001), "data_quality_flag": nil},
	}
}

func colNames(cols []warehouse.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

/*
TestMapRecords_OrderAndTypes verifies that present columns come back in raw
schema order, index_id is generated, and absent columns are omitted.
*/
func TestMapRecords_OrderAndTypes(t *testing.T) {
	cols, rows, err := MapRecords(cleanedBatch())
	require.NoError(t, err)

	want := []string{"index_id", "order_id", "date_col", "category", "status", "qty", "amount",
		"currency", "ship_postal_code", "sales_channel", "data_quality_flag"}
	require.Equal(t, want, colNames(cols))
	require.Len(t, rows, 3)
	require.Equal(t, int64(2), rows[2][0])
	require.Equal(t, "Amazon.in", rows[0][9])
	require.Nil(t, rows[1][8])
}

func TestMapRecords_UnmappedFieldsIgnored(t *testing.T) {
	cols, rows, err := MapRecords([]records.Record{
		{"Order ID": "A", "Sales Channel": "trimmed header is not mapped", "Unnamed: 22": "x"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"index_id", "order_id"}, colNames(cols))
	require.True(t, reflect.DeepEqual(rows[0], []any{int64(0), "A"}))
}

func TestMapRecords_Conversions(t *testing.T) {
	_, rows, err := MapRecords([]records.Record{{"Qty": 3.0, "Amount": int64(5), "Date": "2022-04-01"}})
	require.NoError(t, err)
	require.Equal(t, []any{int64(0), time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC), int64(3), 5.0}, rows[0])

	_, _, err = MapRecords([]records.Record{{"Qty": 1.5}})
	require.Error(t, err)
}

func TestLoad_AppendsAndReturnsCumulativeCount(t *testing.T) {
	ctx := context.Background()
	h := openStore(t)
	l := NewLoader(h, "test", zaptest.NewLogger(t))

	n, err := l.Load(ctx, cleanedBatch())
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	n, err = l.Load(ctx, cleanedBatch())
	require.NoError(t, err)
	require.EqualValues(t, 6, n)

	// staging tables are gone
	stg, err := h.QueryInt64(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE name LIKE 'stg_raw_%'")
	require.NoError(t, err)
	require.Zero(t, stg)

	cancelled, err := h.QueryInt64(ctx, "SELECT COUNT(*) FROM raw_amazon_sales WHERE status = 'Cancelled' AND amount = 0")
	require.NoError(t, err)
	require.EqualValues(t, 2, cancelled)
}

func TestLoad_EmptyBatchReportsCurrentCount(t *testing.T) {
	ctx := context.Background()
	h := openStore(t)
	l := NewLoader(h, "test", nil)

	n, err := l.Load(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = l.Load(ctx, cleanedBatch())
	require.NoError(t, err)
	n, err = l.Load(ctx, []records.Record{})
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestLoad_MissingCriticalColumnsStillLoads(t *testing.T) {
	ctx := context.Background()
	h := openStore(t)
	n, err := NewLoader(h, "test", nil).Load(ctx, []records.Record{{"Order ID": "X-1"}})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestLoad_ReleasedHandle(t *testing.T) {
	ctx := context.Background()
	h := openStore(t)
	require.NoError(t, h.Release())
	_, err := NewLoader(h, "test", nil).Load(ctx, cleanedBatch())
	require.ErrorIs(t, err, warehouse.ErrHandleClosed)
}
