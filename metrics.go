package bitmapist

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    markCounter      prometheus.Counter
//	    composeHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordMark(buckets int, duration time.Duration, err error) {
//	    p.markCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordMark is called after each event or attribute mark.
	// buckets is the number of bitmaps written.
	RecordMark(buckets int, duration time.Duration, err error)

	// RecordBatchMark is called after each bulk attribute mark.
	// count is the number of identities attempted, failed is the number of
	// commands that failed.
	RecordBatchMark(count, failed int, duration time.Duration)

	// RecordCount is called after each population count.
	RecordCount(duration time.Duration, err error)

	// RecordCompose is called after each bit operation.
	RecordCompose(op Op, operands int, duration time.Duration, err error)

	// RecordDelete is called after each bulk deletion.
	RecordDelete(keys int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordMark(int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordBatchMark(int, int, time.Duration)     {}
func (NoopMetricsCollector) RecordCount(time.Duration, error)            {}
func (NoopMetricsCollector) RecordCompose(Op, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDelete(int, time.Duration, error)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	MarkCount       atomic.Int64
	MarkErrors      atomic.Int64
	MarkBuckets     atomic.Int64
	MarkTotalNanos  atomic.Int64
	BatchMarkCount  atomic.Int64
	BatchMarkItems  atomic.Int64
	BatchMarkFailed atomic.Int64
	CountCount      atomic.Int64
	CountErrors     atomic.Int64
	CountTotalNanos atomic.Int64
	ComposeCount    atomic.Int64
	ComposeErrors   atomic.Int64
	ComposeOperands atomic.Int64
	DeleteCount     atomic.Int64
	DeleteErrors    atomic.Int64
	DeleteKeys      atomic.Int64
}

// RecordMark implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMark(buckets int, duration time.Duration, err error) {
	b.MarkCount.Add(1)
	b.MarkBuckets.Add(int64(buckets))
	b.MarkTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MarkErrors.Add(1)
	}
}

// RecordBatchMark implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchMark(count, failed int, duration time.Duration) {
	b.BatchMarkCount.Add(1)
	b.BatchMarkItems.Add(int64(count))
	b.BatchMarkFailed.Add(int64(failed))
}

// RecordCount implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCount(duration time.Duration, err error) {
	b.CountCount.Add(1)
	b.CountTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CountErrors.Add(1)
	}
}

// RecordCompose implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompose(_ Op, operands int, _ time.Duration, err error) {
	b.ComposeCount.Add(1)
	b.ComposeOperands.Add(int64(operands))
	if err != nil {
		b.ComposeErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(keys int, _ time.Duration, err error) {
	b.DeleteCount.Add(1)
	b.DeleteKeys.Add(int64(keys))
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		MarkCount:       b.MarkCount.Load(),
		MarkErrors:      b.MarkErrors.Load(),
		MarkBuckets:     b.MarkBuckets.Load(),
		MarkAvgNanos:    avg(b.MarkTotalNanos.Load(), b.MarkCount.Load()),
		BatchMarkCount:  b.BatchMarkCount.Load(),
		BatchMarkItems:  b.BatchMarkItems.Load(),
		BatchMarkFailed: b.BatchMarkFailed.Load(),
		CountCount:      b.CountCount.Load(),
		CountErrors:     b.CountErrors.Load(),
		CountAvgNanos:   avg(b.CountTotalNanos.Load(), b.CountCount.Load()),
		ComposeCount:    b.ComposeCount.Load(),
		ComposeErrors:   b.ComposeErrors.Load(),
		ComposeOperands: b.ComposeOperands.Load(),
		DeleteCount:     b.DeleteCount.Load(),
		DeleteErrors:    b.DeleteErrors.Load(),
		DeleteKeys:      b.DeleteKeys.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	MarkCount       int64
	MarkErrors      int64
	MarkBuckets     int64
	MarkAvgNanos    int64
	BatchMarkCount  int64
	BatchMarkItems  int64
	BatchMarkFailed int64
	CountCount      int64
	CountErrors     int64
	CountAvgNanos   int64
	ComposeCount    int64
	ComposeErrors   int64
	ComposeOperands int64
	DeleteCount     int64
	DeleteErrors    int64
	DeleteKeys      int64
}
