package warehouse

import (
	"context"
	"fmt"
	"strings"
)

// tableDDL holds the column definitions of each managed table. The type names
// are accepted verbatim by both DuckDB and SQLite.
var tableDDL = map[Table][]string{
	TableRaw: {
		"index_id INTEGER",
		"order_id VARCHAR",
		"date_col DATE",
		"category VARCHAR",
		"size VARCHAR",
		"sku VARCHAR",
		"asin VARCHAR",
		"style VARCHAR",
		"status VARCHAR",
		"courier_status VARCHAR",
		"qty INTEGER",
		"amount DECIMAL(10,2)",
		"currency VARCHAR(10)",
		"ship_service_level VARCHAR",
		"ship_city VARCHAR",
		"ship_state VARCHAR",
		"ship_postal_code INTEGER",
		"ship_country VARCHAR",
		"sales_channel VARCHAR",
		"fulfilled_by VARCHAR",
		"promotion_ids VARCHAR",
		"data_quality_flag VARCHAR",
		"ingestion_timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP",
	},
	TableMonthlyRevenue: {
		"year_month VARCHAR",
		"category VARCHAR",
		"total_revenue DECIMAL(12,2)",
		"order_count INTEGER",
		"avg_order_value DECIMAL(10,2)",
		"created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP",
	},
	TableDailyOrders: {
		"order_date DATE",
		"status VARCHAR",
		"order_count INTEGER",
		"total_quantity INTEGER",
		"total_amount DECIMAL(12,2)",
		"created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP",
	},
}

// CreateTableSQL returns the create-if-absent statement for t.
func CreateTableSQL(t Table) string {
	cols := tableDDL[t]
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(t.String())
	b.WriteString(" (\n")
	for i, c := range cols {
		b.WriteString("    ")
		b.WriteString(c)
		if i < len(cols)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(")")
	return b.String()
}

// initSchema creates every managed table that does not exist yet. Existing
// tables and their rows are left untouched.
func (h *Handle) initSchema(ctx context.Context) error {
	for _, t := range Tables() {
		if _, err := h.Exec(ctx, CreateTableSQL(t)); err != nil {
			return fmt.Errorf("warehouse: create %s: %w", t, err)
		}
	}
	return nil
}
