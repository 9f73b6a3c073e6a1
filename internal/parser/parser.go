// Package parser holds the format-agnostic contract implemented by the
// concrete readers under internal/parser.
package parser

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"salesetl/internal/parser/csv"
)

// Parser turns raw source bytes into records.
type Parser interface {
	Parse(r io.Reader) (csv.Result, error)
}

var _ Parser = (*csv.Parser)(nil)

// New returns the parser registered for kind. An empty kind means "csv".
func New(kind string, opt csv.Options, log *zap.Logger) (Parser, error) {
	switch kind {
	case "", "csv":
		return csv.NewParser(opt, log), nil
	default:
		return nil, fmt.Errorf("parser: unsupported kind %q", kind)
	}
}
