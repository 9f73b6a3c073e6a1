package datasource

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

func TestSentinels(t *testing.T) {
	cause := errors.New("boom")

	err := Missing("data.csv", cause)
	if !errors.Is(err, ErrSourceMissing) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Missing does not match sentinels: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("Missing lost cause: %v", err)
	}
	if errors.Is(err, ErrSourceUnreadable) {
		t.Fatalf("Missing matched ErrSourceUnreadable")
	}

	err = Unreadable("data.csv", nil)
	if !errors.Is(err, ErrSourceUnreadable) || errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Unreadable: %v", err)
	}
	if !strings.Contains(err.Error(), "data.csv") {
		t.Fatalf("message %q lacks source name", err)
	}
}

type fixed struct{ n int64 }

func (fixed) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}
func (f fixed) Size(context.Context) (int64, error) { return f.n, nil }

type opaque struct{}

func (opaque) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func TestSizeMB(t *testing.T) {
	mb, err := SizeMB(context.Background(), fixed{n: 3 * 1024 * 1024})
	if err != nil || mb != 3 {
		t.Fatalf("SizeMB=%v err=%v", mb, err)
	}
	mb, err = SizeMB(context.Background(), opaque{})
	if err != nil || mb != -1 {
		t.Fatalf("SizeMB(opaque)=%v err=%v", mb, err)
	}
}
