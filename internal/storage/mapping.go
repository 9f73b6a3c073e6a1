package storage

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"salesetl/internal/warehouse"
	"salesetl/pkg/records"
)

// ColumnMapping renames export fields to raw-table columns. Keys are matched
// exactly; "Sales Channel " carries a trailing space in the export header.
var ColumnMapping = map[string]string{
	"Order ID":           "order_id",
	"Date":               "date_col",
	"Status":             "status",
	"Fulfilment":         "fulfilled_by",
	"Sales Channel ":     "sales_channel",
	"ship-service-level": "ship_service_level",
	"Style":              "style",
	"SKU":                "sku",
	"Category":           "category",
	"Size":               "size",
	"ASIN":               "asin",
	"Courier Status":     "courier_status",
	"Qty":                "qty",
	"currency":           "currency",
	"Amount":             "amount",
	"ship-city":          "ship_city",
	"ship-state":         "ship_state",
	"ship-postal-code":   "ship_postal_code",
	"ship-country":       "ship_country",
	"promotion-ids":      "promotion_ids",
}

// RawColumns is the raw table's column order for column-list inserts. The
// ingestion timestamp is assigned by the store and is not listed.
var RawColumns = []warehouse.Column{
	{Name: "index_id", Kind: warehouse.KindInt},
	{Name: "order_id", Kind: warehouse.KindText},
	{Name: "date_col", Kind: warehouse.KindDate},
	{Name: "category", Kind: warehouse.KindText},
	{Name: "size", Kind: warehouse.KindText},
	{Name: "sku", Kind: warehouse.KindText},
	{Name: "asin", Kind: warehouse.KindText},
	{Name: "style", Kind: warehouse.KindText},
	{Name: "status", Kind: warehouse.KindText},
	{Name: "courier_status", Kind: warehouse.KindText},
	{Name: "qty", Kind: warehouse.KindInt},
	{Name: "amount", Kind: warehouse.KindFloat},
	{Name: "currency", Kind: warehouse.KindText},
	{Name: "ship_service_level", Kind: warehouse.KindText},
	{Name: "ship_city", Kind: warehouse.KindText},
	{Name: "ship_state", Kind: warehouse.KindText},
	{Name: "ship_postal_code", Kind: warehouse.KindInt},
	{Name: "ship_country", Kind: warehouse.KindText},
	{Name: "sales_channel", Kind: warehouse.KindText},
	{Name: "fulfilled_by", Kind: warehouse.KindText},
	{Name: "promotion_ids", Kind: warehouse.KindText},
	{Name: "data_quality_flag", Kind: warehouse.KindText},
}

// CriticalColumns are read by the aggregations; a batch without them still
// loads, but the rollups will be thin.
var CriticalColumns = []string{"date_col", "status", "amount", "category"}

// destName resolves a record key to a raw-table column. Keys that already
// name a destination column (data_quality_flag, index_id) pass through.
func destName(key string) (string, bool) {
	if d, ok := ColumnMapping[key]; ok {
		return d, true
	}
	for _, c := range RawColumns {
		if c.Name == key {
			return key, true
		}
	}
	return "", false
}

// MapRecords projects cleaned records onto the raw-table schema. Only columns
// present in at least one record are returned, in RawColumns order; absent
// columns are left to the store's NULL default rather than padded. index_id
// is filled with the row position when no record carries it. Values are
// converted to the staged Go types: string, int64, float64, time.Time or nil.
func MapRecords(recs []records.Record) ([]warehouse.Column, [][]any, error) {
	present := map[string]string{} // dest -> source key
	for _, r := range recs {
		for k := range r {
			if d, ok := destName(k); ok {
				if _, seen := present[d]; !seen {
					present[d] = k
				}
			}
		}
	}
	_, hasIndex := present["index_id"]

	var cols []warehouse.Column
	for _, c := range RawColumns {
		if _, ok := present[c.Name]; ok || (c.Name == "index_id" && len(recs) > 0) {
			cols = append(cols, c)
		}
	}

	rows := make([][]any, len(recs))
	for i, r := range recs {
		row := make([]any, len(cols))
		for j, c := range cols {
			if c.Name == "index_id" && !hasIndex {
				row[j] = int64(i)
				continue
			}
			v, err := stageValue(c.Kind, r[present[c.Name]])
			if err != nil {
				return nil, nil, fmt.Errorf("storage: record %d column %s: %w", i, c.Name, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return cols, rows, nil
}

func stageValue(k warehouse.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case warehouse.KindInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case float64:
			if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
				return nil, fmt.Errorf("non-integral value %v", x)
			}
			return int64(x), nil
		case string:
			n, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				return nil, err
			}
			return n, nil
		}
	case warehouse.KindFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case int:
			return float64(x), nil
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return nil, err
			}
			return f, nil
		}
	case warehouse.KindDate:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			t, err := time.Parse(time.DateOnly, x)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
	default:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}
