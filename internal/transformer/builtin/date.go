package builtin

import (
	"fmt"
	"strings"
	"time"

	"salesetl/pkg/records"
)

// DateLayout is month-day-2digit-year, e.g. "4-01-22" for 2022-04-01.
const DateLayout = "1-2-06"

// DateParse converts the date field into a calendar date (UTC midnight).
// Null dates stay null; any other value that does not match Layout fails the
// whole batch with a *ParseError.
type DateParse struct {
	Field  string
	Layout string
}

func (d DateParse) Apply(in []records.Record) ([]records.Record, error) {
	field, layout := d.Field, d.Layout
	if field == "" {
		field = FieldDate
	}
	if layout == "" {
		layout = DateLayout
	}
	for i, r := range in {
		switch v := r[field].(type) {
		case nil:
		case time.Time:
			r[field] = truncateDay(v)
		case string:
			t, err := time.Parse(layout, strings.TrimSpace(v))
			if err != nil {
				return nil, &ParseError{Index: i, Field: field, Value: v, Err: err}
			}
			r[field] = t
		default:
			return nil, &ParseError{Index: i, Field: field, Value: fmt.Sprint(v),
				Err: fmt.Errorf("unsupported type %T", v)}
		}
	}
	return in, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
