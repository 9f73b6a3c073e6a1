package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"salesetl/pkg/records"
)

// DateLayout is the text form used for dates in written artifacts.
const DateLayout = "2006-01-02"

// WriteRecords writes recs to w with header as the column order. Keys present
// in a record but missing from header are not written; null values become
// empty cells.
func WriteRecords(w io.Writer, header []string, recs []records.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, len(header))
	for i, rec := range recs {
		for j, col := range header {
			row[j] = FormatValue(rec[col])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatValue renders a cleaned value as CSV text.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case time.Time:
		return t.Format(DateLayout)
	default:
		return fmt.Sprint(t)
	}
}
