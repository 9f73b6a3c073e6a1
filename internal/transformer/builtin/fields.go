// Package builtin contains the record transforms chained by the sales
// cleaner: numeric coercion, the amount rules, the currency default and
// date parsing.
package builtin

// Source field names of the sales export, as they appear in its header.
const (
	FieldOrderID    = "Order ID"
	FieldDate       = "Date"
	FieldStatus     = "Status"
	FieldCategory   = "Category"
	FieldQty        = "Qty"
	FieldCurrency   = "currency"
	FieldAmount     = "Amount"
	FieldPostalCode = "ship-postal-code"

	// FieldQualityFlag is added by the cleaner; it has no source column.
	FieldQualityFlag = "data_quality_flag"
)

const (
	// StatusCancelled is compared case-sensitively against the status field.
	StatusCancelled = "Cancelled"

	// FlagMissingAmount marks a non-cancelled row whose amount is null.
	FlagMissingAmount = "missing_amount_non_cancelled"
)

// Tally accumulates per-rule counters for one cleaning run. A nil *Tally is
// valid and records nothing.
type Tally struct {
	CancelledZeroed   int
	Flagged           int
	CurrencyDefaulted int
}

func (t *Tally) cancelledZeroed() {
	if t != nil {
		t.CancelledZeroed++
	}
}

func (t *Tally) flagged() {
	if t != nil {
		t.Flagged++
	}
}

func (t *Tally) currencyDefaulted() {
	if t != nil {
		t.CurrencyDefaulted++
	}
}
