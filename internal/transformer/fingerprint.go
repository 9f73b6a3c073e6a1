package transformer

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"

	"salesetl/pkg/records"
)

// Fingerprint hashes recs with xxh3 over a canonical encoding (sorted keys,
// typed values). Equal batches always produce equal fingerprints.
func Fingerprint(recs []records.Record) uint64 {
	h := xxh3.New()
	var keys []string
	var buf []byte
	for _, r := range recs {
		keys = keys[:0]
		for k := range r {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			buf = buf[:0]
			buf = append(buf, k...)
			buf = append(buf, 0)
			buf = appendValue(buf, r[k])
			buf = append(buf, 0x1e)
			_, _ = h.Write(buf)
		}
		_, _ = h.Write([]byte{0x1f})
	}
	return h.Sum64()
}

func appendValue(b []byte, v any) []byte {
	switch t := v.(type) {
	case nil:
		return append(b, 'N')
	case string:
		return append(append(b, 'S'), t...)
	case float64:
		return strconv.AppendFloat(append(b, 'F'), t, 'g', -1, 64)
	case int64:
		return strconv.AppendInt(append(b, 'I'), t, 10)
	case int:
		return strconv.AppendInt(append(b, 'I'), int64(t), 10)
	case bool:
		return strconv.AppendBool(append(b, 'B'), t)
	case time.Time:
		return t.UTC().AppendFormat(append(b, 'T'), time.RFC3339Nano)
	default:
		return append(append(b, '?'), fmt.Sprint(t)...)
	}
}
