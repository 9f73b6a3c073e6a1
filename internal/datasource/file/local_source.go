// Package file reads a sales export from the local filesystem.
package file

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"salesetl/internal/datasource"
)

// Local is an export file on local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path. Nothing is checked until Open.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the configured path.
func (l *Local) Path() string { return l.path }

// Describe implements datasource.Describer.
func (l *Local) Describe() string { return l.path }

// Open returns the file for reading.
//
// A context that is already done short-circuits before the filesystem is
// touched. A path that does not exist yields datasource.ErrSourceMissing;
// directories and permission problems yield datasource.ErrSourceUnreadable.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if _, err := l.stat(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, classify(l.path, err)
	}
	return f, nil
}

// Size implements datasource.Sizer.
func (l *Local) Size(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fi, err := l.stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (l *Local) stat() (fs.FileInfo, error) {
	fi, err := os.Stat(l.path)
	if err != nil {
		return nil, classify(l.path, err)
	}
	if fi.IsDir() {
		return nil, datasource.Unreadable(l.path, errors.New("is a directory"))
	}
	return fi, nil
}

func classify(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return datasource.Missing(path, err)
	}
	return datasource.Unreadable(path, err)
}
