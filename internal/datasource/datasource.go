// Package datasource defines where a sales export is read from.
//
// Implementations live in subpackages: file (local disk), httpds (HTTP with
// retry) and s3ds (S3 objects). All of them map "not there" to
// ErrSourceMissing and any other failure to reach the bytes to
// ErrSourceUnreadable, so callers can branch on errors.Is without knowing
// the backend.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrSourceMissing reports that the export does not exist. It matches
	// os.ErrNotExist under errors.Is.
	ErrSourceMissing = fmt.Errorf("datasource: source missing: %w", os.ErrNotExist)

	// ErrSourceUnreadable reports that the export exists but cannot be read.
	ErrSourceUnreadable = errors.New("datasource: source unreadable")
)

// Source opens the raw export for reading. The caller closes the reader.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Sizer is implemented by sources that can report their size in bytes
// without reading the content.
type Sizer interface {
	Size(ctx context.Context) (int64, error)
}

// Peeker is implemented by sources that can fetch a prefix of the content
// more cheaply than Open.
type Peeker interface {
	Peek(ctx context.Context, n int) ([]byte, error)
}

// Describer names a source for logs and derived artifact names.
type Describer interface {
	Describe() string
}

// Missing wraps cause so that it matches ErrSourceMissing.
func Missing(what string, cause error) error {
	return &sourceError{kind: ErrSourceMissing, what: what, cause: cause}
}

// Unreadable wraps cause so that it matches ErrSourceUnreadable.
func Unreadable(what string, cause error) error {
	return &sourceError{kind: ErrSourceUnreadable, what: what, cause: cause}
}

type sourceError struct {
	kind  error
	what  string
	cause error
}

func (e *sourceError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%v: %s", e.kind, e.what)
	}
	return fmt.Sprintf("%v: %s: %v", e.kind, e.what, e.cause)
}

func (e *sourceError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// SizeMB returns the size of src in megabytes, or -1 when the source cannot
// tell without being read.
func SizeMB(ctx context.Context, src Source) (float64, error) {
	s, ok := src.(Sizer)
	if !ok {
		return -1, nil
	}
	n, err := s.Size(ctx)
	if err != nil {
		return 0, err
	}
	return float64(n) / (1024 * 1024), nil
}
