package builtin

import "salesetl/pkg/records"

// AmountRule applies the two missing-amount rules. Nullness is read once per
// record, before either rule mutates it:
//
//   - status == Cancelled and amount null: amount = 0.0
//   - status != Cancelled and amount null: flag the record, amount stays null
//
// A null status is "not Cancelled".
type AmountRule struct {
	Tally *Tally
}

func (a AmountRule) Apply(in []records.Record) ([]records.Record, error) {
	for _, r := range in {
		if !r.IsNull(FieldAmount) {
			continue
		}
		status, _ := r.String(FieldStatus)
		if status == StatusCancelled {
			r[FieldAmount] = 0.0
			a.Tally.cancelledZeroed()
			continue
		}
		r[FieldQualityFlag] = FlagMissingAmount
		a.Tally.flagged()
	}
	return in, nil
}
