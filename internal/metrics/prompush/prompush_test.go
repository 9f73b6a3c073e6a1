package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"salesetl/internal/metrics"
)

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL", jobName: "amazon_sales", wantErr: true},
		{name: "empty job name uses default", gatewayURL: "http://pushgateway:9091", wantJobName: "salesetl"},
		{name: "explicit job name kept", jobName: "amazon_sales", gatewayURL: "http://pushgateway:9091", wantJobName: "amazon_sales"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil || b != nil {
					t.Fatalf("NewBackend(%q, %q) = %v, %v; want error", tt.jobName, tt.gatewayURL, b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend: %v", err)
			}
			if b.jobName != tt.wantJobName {
				t.Fatalf("jobName=%q want %q", b.jobName, tt.wantJobName)
			}
		})
	}
}

func TestIncCounterAndObserve(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("amazon_sales", "http://pushgateway:9091")
	if err != nil {
		t.Fatal(err)
	}
	b.IncCounter(metrics.StageTotal, 1, metrics.Labels{"stage": "clean", "status": "success"})
	b.IncCounter(metrics.StageTotal, 2, metrics.Labels{"stage": "clean", "status": "success"})
	b.IncCounter(metrics.RowsTotal, 128975, metrics.Labels{"kind": "processed"})
	b.IncCounter(metrics.BatchesTotal, 1, nil)
	b.IncCounter("unknown_metric", 5, nil)
	b.ObserveHistogram(metrics.StageDurationSeconds, 0.25, metrics.Labels{"stage": "load_raw", "status": "success"})
	b.ObserveHistogram("unknown_metric", 1, nil)

	if got := testutil.ToFloat64(b.stageCounter.WithLabelValues("clean", "success")); got != 3 {
		t.Fatalf("stage counter=%v want 3", got)
	}
	if got := testutil.ToFloat64(b.rowCounter.WithLabelValues("processed")); got != 128975 {
		t.Fatalf("row counter=%v", got)
	}
	if got := testutil.ToFloat64(b.batchCounter); got != 1 {
		t.Fatalf("batch counter=%v", got)
	}
	if n := testutil.CollectAndCount(b.stageDuration); n != 1 {
		t.Fatalf("histogram series=%d want 1", n)
	}
}

func TestFlush(t *testing.T) {
	t.Parallel()

	type pushed struct {
		method, path, body string
	}
	ch := make(chan pushed, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ch <- pushed{r.Method, r.URL.Path, string(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b, err := NewBackend("amazon_sales", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	b.IncCounter(metrics.StageTotal, 1, metrics.Labels{"stage": "validate_source", "status": "success"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var got pushed
	select {
	case got = <-ch:
	default:
		t.Fatal("Flush did not reach the Pushgateway")
	}
	if got.method != http.MethodPut {
		t.Fatalf("method=%s want PUT", got.method)
	}
	if !strings.Contains(got.path, "/metrics/job/amazon_sales") {
		t.Fatalf("path=%s", got.path)
	}
	if got.body == "" {
		t.Fatal("empty push body")
	}
}

func TestFlush_GatewayError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("amazon_sales", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err == nil {
		t.Fatal("expected error from failing gateway")
	}
}
