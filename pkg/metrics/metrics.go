// Package metrics tracks conversion throughput with Prometheus collectors.
//
// Every run owns a Collector backed by a private registry, so repeated runs
// in one process (tests, the convert command) never clash on registration.
// The collected values can be dumped in the text exposition format for the
// node_exporter textfile collector:
//
//	c := metrics.NewCollector("csv", "parquet")
//	timer := metrics.NewTimer()
//	writeBatch(rec)
//	c.RecordBatch(rec.NumRows(), timer.Stop())
//	_ = c.WriteTextfile("/var/lib/node_exporter/tabconv.prom")
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/tabconv/pkg/errors"
)

const namespace = "tabconv"

// Run outcome labels
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDry     = "dry"
)

// Collector records the counters of one conversion run.
type Collector struct {
	registry *prometheus.Registry

	rowsWritten  prometheus.Counter
	batches      prometheus.Counter
	bytesWritten prometheus.Counter
	batchLatency prometheus.Observer
	throughput   prometheus.Gauge
	runs         *prometheus.CounterVec
	source       string
	destination  string
}

// NewCollector creates a collector whose series carry the source and
// destination format names as labels.
func NewCollector(source, destination string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := []string{"source", "destination"}

	c := &Collector{registry: reg, source: source, destination: destination}

	c.rowsWritten = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_written_total",
		Help:      "Rows handed to the output writer",
	}, labels).WithLabelValues(source, destination)

	c.batches = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_written_total",
		Help:      "Record batches handed to the output writer",
	}, labels).WithLabelValues(source, destination)

	c.bytesWritten = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "output_bytes_total",
		Help:      "Bytes written to the output file",
	}, labels).WithLabelValues(source, destination)

	c.batchLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_write_duration_seconds",
		Help:      "Time spent encoding one record batch",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs .. ~26s
	}, labels).WithLabelValues(source, destination)

	c.throughput = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "throughput_rows_per_second",
		Help:      "Average rows per second of the last run",
	}, labels).WithLabelValues(source, destination)

	c.runs = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Conversion runs by outcome",
	}, []string{"source", "destination", "status"})

	return c
}

// Registry exposes the private registry, mostly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordBatch accounts one written batch.
func (c *Collector) RecordBatch(rows int64, d time.Duration) {
	c.rowsWritten.Add(float64(rows))
	c.batches.Inc()
	c.batchLatency.Observe(d.Seconds())
}

// AddBytes accounts bytes that reached the output file.
func (c *Collector) AddBytes(n int64) {
	c.bytesWritten.Add(float64(n))
}

// RecordRun sets the run outcome and the average throughput over elapsed.
func (c *Collector) RecordRun(status string, rows int64, elapsed time.Duration) {
	c.runs.WithLabelValues(c.source, c.destination, status).Inc()
	if elapsed > 0 {
		c.throughput.Set(float64(rows) / elapsed.Seconds())
	}
}

// WriteTextfile writes every series in the text exposition format. The
// file is written to a temporary name and renamed into place.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write metrics file").
			WithDetail("path", path)
	}
	return nil
}

// Timer measures the duration of one operation.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
