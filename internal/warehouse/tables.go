package warehouse

import (
	"fmt"
	"regexp"
)

// Table identifies one of the store's fixed tables. Table names used in SQL
// come only from this enum or from validated staging identifiers.
type Table int

const (
	TableRaw Table = iota
	TableMonthlyRevenue
	TableDailyOrders
)

var tableNames = [...]string{
	TableRaw:            "raw_amazon_sales",
	TableMonthlyRevenue: "monthly_revenue",
	TableDailyOrders:    "daily_orders",
}

// Tables lists every managed table in creation order.
func Tables() []Table {
	return []Table{TableRaw, TableMonthlyRevenue, TableDailyOrders}
}

func (t Table) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Table(%d)", int(t))
	}
	return tableNames[t]
}

// Valid reports whether t is one of the declared tables.
func (t Table) Valid() bool {
	return t >= 0 && int(t) < len(tableNames)
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidIdent reports whether s is safe to splice into SQL as an unquoted
// identifier (staging tables, column names).
func ValidIdent(s string) bool {
	return identRe.MatchString(s)
}

// Kind is the staged Go/SQL type of a column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
	KindDate
)

// Column describes one column of a staged batch.
type Column struct {
	Name string
	Kind Kind
}

func (k Kind) sqlType() string {
	switch k {
	case KindInt:
		return "BIGINT"
	case KindFloat:
		return "DOUBLE"
	case KindDate:
		return "DATE"
	default:
		return "VARCHAR"
	}
}
