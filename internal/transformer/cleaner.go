package transformer

import (
	"fmt"

	"salesetl/internal/transformer/builtin"
	"salesetl/pkg/records"
)

// Stats are the observability counters of one Clean call. They are not part
// of the cleaned rows.
type Stats struct {
	Rows              int
	CancelledZeroed   int
	Flagged           int
	CurrencyDefaulted int
	AmountNullsBefore int
	AmountNullsAfter  int
}

// Cleaner applies the sales cleaning rules in their fixed order:
// cancelled+null amount -> 0, non-cancelled+null amount -> flag,
// null currency -> INR, date text -> calendar date.
type Cleaner struct {
	numeric    map[string]string
	dateLayout string
	pre        []Transformer
}

// Option customizes a Cleaner.
type Option func(*Cleaner)

// WithPreTransforms runs ts before numeric coercion and the cleaning rules.
func WithPreTransforms(ts ...Transformer) Option {
	return func(c *Cleaner) { c.pre = append(c.pre, ts...) }
}

// NewSalesCleaner returns a Cleaner for the sales export layout.
func NewSalesCleaner(opts ...Option) *Cleaner {
	c := &Cleaner{
		numeric: map[string]string{
			builtin.FieldAmount:     "float",
			builtin.FieldQty:        "int",
			builtin.FieldPostalCode: "int",
		},
		dateLayout: builtin.DateLayout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Clean returns a cleaned copy of in with the same cardinality; in itself is
// never modified. On error no records are returned.
func (c *Cleaner) Clean(in []records.Record) ([]records.Record, Stats, error) {
	work := records.CloneAll(in)
	var tally builtin.Tally

	// Coercion settles nullness (NaN reads as null) before it is counted.
	typed := make(Chain, 0, len(c.pre)+1)
	typed = append(typed, c.pre...)
	typed = append(typed, builtin.Coerce{Types: c.numeric})
	work, err := typed.Apply(work)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("clean: %w", err)
	}

	before := countNull(work, builtin.FieldAmount)
	out, err := Chain{
		builtin.AmountRule{Tally: &tally},
		builtin.CurrencyDefault{Tally: &tally},
		builtin.DateParse{Field: builtin.FieldDate, Layout: c.dateLayout},
	}.Apply(work)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("clean: %w", err)
	}
	if len(out) != len(in) {
		return nil, Stats{}, fmt.Errorf("clean: cardinality changed from %d to %d", len(in), len(out))
	}

	return out, Stats{
		Rows:              len(out),
		CancelledZeroed:   tally.CancelledZeroed,
		Flagged:           tally.Flagged,
		CurrencyDefaulted: tally.CurrencyDefaulted,
		AmountNullsBefore: before,
		AmountNullsAfter:  countNull(out, builtin.FieldAmount),
	}, nil
}

func countNull(recs []records.Record, field string) int {
	n := 0
	for _, r := range recs {
		if r.IsNull(field) {
			n++
		}
	}
	return n
}
