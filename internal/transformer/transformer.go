// Package transformer composes record transforms into the sales cleaning
// pipeline.
package transformer

import "salesetl/pkg/records"

// Transformer rewrites a batch of records. Implementations may mutate the
// records in place; an error aborts the batch.
type Transformer interface {
	Apply([]records.Record) ([]records.Record, error)
}

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs each transformer on the output of the previous one and stops at
// the first error, returning no records in that case.
func (c Chain) Apply(in []records.Record) ([]records.Record, error) {
	out := in
	for _, t := range c {
		var err error
		if out, err = t.Apply(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
