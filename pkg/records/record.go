// Package records defines the in-memory row representation shared by the
// parser, the cleaning transforms and the raw table loader.
package records

// Record is one source row keyed by field name. A missing key and a nil value
// are both treated as null.
type Record map[string]any

// IsNull reports whether field is absent or nil.
func (r Record) IsNull(field string) bool {
	v, ok := r[field]
	return !ok || v == nil
}

// String returns the value of field when it is a non-null string.
func (r Record) String(field string) (string, bool) {
	s, ok := r[field].(string)
	return s, ok
}

// Clone returns a copy of r. Values are scalars (string, numbers, time.Time)
// so a shallow copy is sufficient to keep the original untouched.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CloneAll copies every record in recs.
func CloneAll(recs []Record) []Record {
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}
