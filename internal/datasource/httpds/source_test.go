package httpds

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"salesetl/internal/datasource"
)

const export = "Order ID,Date,Status,Amount\nB00-1,3-31-22,Shipped,299.0\nB00-2,4-01-22,Cancelled,\n"

func exportServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/exports/Amazon Sale Report.csv":
			if rng := r.Header.Get("Range"); rng != "" {
				if rng != "bytes=0-9" {
					t.Errorf("Range=%q", rng)
				}
				w.WriteHeader(http.StatusPartialContent)
				_, _ = io.WriteString(w, export[:10])
				return
			}
			http.ServeContent(w, r, "export.csv", time.Time{}, strings.NewReader(export))
		case "/forbidden.csv":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSource_Open(t *testing.T) {
	t.Parallel()
	srv := exportServer(t)
	c, _ := newTestClient(t, Config{})

	rc, err := NewSource(c, srv.URL+"/exports/Amazon%20Sale%20Report.csv").Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != export {
		t.Fatalf("body=%q", b)
	}
}

func TestSource_ErrorMapping(t *testing.T) {
	t.Parallel()
	srv := exportServer(t)
	c, _ := newTestClient(t, Config{})

	_, err := NewSource(c, srv.URL+"/nope.csv").Open(context.Background())
	if !errors.Is(err, datasource.ErrSourceMissing) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("404: err=%v", err)
	}

	_, err = NewSource(c, srv.URL+"/forbidden.csv").Open(context.Background())
	if !errors.Is(err, datasource.ErrSourceUnreadable) {
		t.Fatalf("403: err=%v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("403: StatusError not reachable: %v", err)
	}

	_, err = NewSource(c, srv.URL+"/nope.csv").Size(context.Background())
	if !errors.Is(err, datasource.ErrSourceMissing) {
		t.Fatalf("HEAD 404: err=%v", err)
	}
}

func TestSource_SizeAndPeek(t *testing.T) {
	t.Parallel()
	srv := exportServer(t)
	c, _ := newTestClient(t, Config{})
	src := NewSource(c, srv.URL+"/exports/Amazon%20Sale%20Report.csv")

	n, err := src.Size(context.Background())
	if err != nil || n != int64(len(export)) {
		t.Fatalf("Size=%d err=%v", n, err)
	}
	b, err := src.Peek(context.Background(), 10)
	if err != nil || string(b) != export[:10] {
		t.Fatalf("Peek=%q err=%v", b, err)
	}
}

func TestFetchFirstBytes_LimitsToN(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "hello world")
	}))
	defer srv.Close()

	c, _ := newTestClient(t, Config{})
	got, err := c.FetchFirstBytes(context.Background(), srv.URL, 5)
	if err != nil || string(got) != "hello" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if _, err := c.FetchFirstBytes(context.Background(), srv.URL, 0); err == nil {
		t.Fatal("expected error for n=0")
	}
}
