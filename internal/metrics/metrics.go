// Package metrics records operational metrics of pipeline runs through a
// pluggable Backend.
//
// The default backend discards everything, so instrumented code never needs
// to check whether metrics are configured. Concrete backends live in
// subpackages (prompush, datadog) and are installed once at startup with
// SetBackend, before any run begins.
package metrics

import "time"

// Metric names emitted by this package.
const (
	StageTotal           = "salesetl_stage_total"
	StageDurationSeconds = "salesetl_stage_duration_seconds"
	RowsTotal            = "salesetl_rows_total"
	BatchesTotal         = "salesetl_batches_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes buffered metrics.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs b. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one execution of a pipeline stage and observes its
// duration, labelled with job, stage and success/failure.
func RecordStep(job, stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "stage": stage, "status": status}
	backend.IncCounter(StageTotal, 1, lbls)
	backend.ObserveHistogram(StageDurationSeconds, d.Seconds(), lbls)
}

// RecordRow adds delta rows of the given kind. Kinds used by the pipeline:
//   - "processed", "parse_skipped" (parser)
//   - "cancelled_zeroed", "flagged", "currency_defaulted" (cleaner)
//   - "inserted" (loader)
//
// Non-positive deltas are dropped.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches counts batches appended to the raw table.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}
