package builtin

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"salesetl/pkg/records"
)

// Coerce converts numeric text fields into Go numbers so later rules and the
// loader see typed values. Types maps field -> "float" | "int" | "string".
// Null values are left alone and NaN becomes null; unparseable text and
// infinities are a *ParseError.
type Coerce struct {
	Types map[string]string
}

func (c Coerce) Apply(in []records.Record) ([]records.Record, error) {
	if len(c.Types) == 0 {
		return in, nil
	}
	fields := make([]string, 0, len(c.Types))
	for f := range c.Types {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for i, r := range in {
		for _, field := range fields {
			var (
				v   any
				err error
			)
			switch x := r[field].(type) {
			case string:
				v, err = coerceString(strings.TrimSpace(x), c.Types[field])
			case float64:
				v, err = finite(x)
			default:
				continue
			}
			if err != nil {
				return nil, &ParseError{Index: i, Field: field, Value: fmt.Sprint(r[field]), Err: err}
			}
			r[field] = v
		}
	}
	return in, nil
}

func coerceString(s, typ string) (any, error) {
	switch typ {
	case "float":
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return finite(f)
	case "int":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		// Spreadsheet exports often carry integral columns as "560001.0".
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) {
			return nil, nil
		}
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("not an integer")
		}
		return int64(f), nil
	case "string", "":
		return s, nil
	default:
		return nil, fmt.Errorf("unknown coerce type %q", typ)
	}
}

// finite maps NaN to null and rejects infinities.
func finite(f float64) (any, error) {
	switch {
	case math.IsNaN(f):
		return nil, nil
	case math.IsInf(f, 0):
		return nil, errors.New("not a finite number")
	}
	return f, nil
}
