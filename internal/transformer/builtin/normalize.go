package builtin

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"salesetl/pkg/records"
)

// Normalize rewrites string values to NFC, repairs the "Â " mojibake that
// Latin-1 round trips leave in place of a non-breaking space, and trims
// surrounding whitespace. Strings that end up empty become null.
type Normalize struct{}

func (Normalize) Apply(in []records.Record) ([]records.Record, error) {
	for _, r := range in {
		for k, v := range r {
			s, ok := v.(string)
			if !ok {
				continue
			}
			s = norm.NFC.String(s)
			s = strings.ReplaceAll(s, "Â\u00a0", " ")
			s = strings.ReplaceAll(s, "\u00a0", " ")
			s = strings.TrimSpace(s)
			if s == "" {
				r[k] = nil
				continue
			}
			r[k] = s
		}
	}
	return in, nil
}
