// Package csv reads a delimited sales export into records.Record values and
// writes cleaned batches back out as CSV artifacts.
//
// Header cells are kept verbatim (apart from BOM stripping and Unicode NFC
// normalization) because downstream column mapping is exact and
// case-sensitive; the export's "Sales Channel " header carries a trailing
// space that must survive.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"salesetl/pkg/records"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// ErrMalformedRow is returned in strict mode when a data row has more fields
// than the header.
var ErrMalformedRow = errors.New("csv: malformed row")

// Options configures the CSV parser behavior. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each field value. Header
	// cells are never trimmed.
	TrimSpace bool

	// HeaderMap renames source header names before they become record keys.
	HeaderMap map[string]string

	// Strict turns over-wide rows into a hard error instead of a skipped row.
	// Short rows are always accepted; missing trailing fields become null.
	Strict bool

	// MaxRows stops reading after this many data rows (0 = no limit).
	MaxRows int

	// NullValues are cell texts read as null in addition to the empty
	// string. Nil selects DefaultNullValues; an empty slice disables them.
	NullValues []string
}

// DefaultNullValues are the missing-value markers spreadsheet and pandas
// exports write into empty numeric cells.
var DefaultNullValues = []string{
	"#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct {
	opt   Options
	nulls map[string]struct{}
	log   *zap.Logger
}

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options, log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	tokens := opt.NullValues
	if tokens == nil {
		tokens = DefaultNullValues
	}
	nulls := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		nulls[t] = struct{}{}
	}
	return &Parser{opt: opt, nulls: nulls, log: log}
}

// Result is the outcome of a Parse call.
type Result struct {
	Header  []string
	Records []records.Record
	Skipped int
}

// Parse consumes CSV records from r. The first line is the header. Empty cells
// and null markers become nil so that "missing" and "empty" are the same null
// downstream.
func (p *Parser) Parse(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.FieldsPerRecord = -1

	h, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Result{}, fmt.Errorf("read csv header: empty input")
		}
		return Result{}, fmt.Errorf("read csv header: %w", err)
	}
	headers := normalizeHeaders(h, p.opt)

	res := Result{Header: headers}
	const logLimit = 100
	for line := 2; ; line++ {
		if p.opt.MaxRows > 0 && len(res.Records) >= p.opt.MaxRows {
			break
		}
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if p.opt.Strict {
				return Result{}, fmt.Errorf("line %d: %w", line, err)
			}
			if res.Skipped < logLimit {
				p.log.Warn("skipping unreadable row", zap.Int("line", line), zap.Error(err))
			}
			res.Skipped++
			continue
		}
		if len(row) > len(headers) {
			if p.opt.Strict {
				return Result{}, fmt.Errorf("line %d: %w: expected %d fields, got %d",
					line, ErrMalformedRow, len(headers), len(row))
			}
			if res.Skipped < logLimit {
				p.log.Warn("skipping over-wide row",
					zap.Int("line", line), zap.Int("expected", len(headers)), zap.Int("got", len(row)))
			}
			res.Skipped++
			continue
		}

		rec := make(records.Record, len(headers))
		for i, key := range headers {
			if i >= len(row) {
				rec[key] = nil
				continue
			}
			val := row[i]
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[key] = p.nullable(val)
		}
		res.Records = append(res.Records, rec)
	}

	return res, nil
}

// nullable returns nil for an empty cell or a null marker and s otherwise.
func (p *Parser) nullable(s string) any {
	if s == "" {
		return nil
	}
	if _, ok := p.nulls[s]; ok {
		return nil
	}
	return s
}

// normalizeHeaders applies NFC normalization, strips a UTF-8 BOM from the
// first cell and applies HeaderMap. Duplicate headers get a numeric suffix.
func normalizeHeaders(h []string, opt Options) []string {
	res := make([]string, len(h))
	seen := make(map[string]int, len(h))
	for i, col := range h {
		c := norm.NFC.String(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if m, ok := opt.HeaderMap[c]; ok {
			c = m
		}
		if c == "" {
			c = fmt.Sprintf("col_%d", i)
		}
		if n := seen[c]; n > 0 {
			seen[c] = n + 1
			c = fmt.Sprintf("%s.%d", c, n)
		} else {
			seen[c] = 1
		}
		res[i] = c
	}
	return res
}
