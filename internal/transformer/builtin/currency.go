package builtin

import (
	"golang.org/x/text/currency"

	"salesetl/pkg/records"
)

// DefaultCurrency is the only value ever used to fill a missing currency.
var DefaultCurrency = currency.INR.String()

// CurrencyDefault fills a null currency with DefaultCurrency.
type CurrencyDefault struct {
	Tally *Tally
}

func (c CurrencyDefault) Apply(in []records.Record) ([]records.Record, error) {
	for _, r := range in {
		if r.IsNull(FieldCurrency) {
			r[FieldCurrency] = DefaultCurrency
			c.Tally.currencyDefaulted()
		}
	}
	return in, nil
}
