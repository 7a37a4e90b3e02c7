package bitmapist

import (
	"log/slog"
	"time"

	"github.com/hupe1980/bitmapist/keyspace"
)

// DefaultTempTTL is the lifetime of derived bit operation keys.
const DefaultTempTTL = 60 * time.Second

type options struct {
	prefix           string
	divider          string
	tempTTL          time.Duration
	metricsCollector MetricsCollector
	logger           *Logger
	clock            func() time.Time
}

// Option configures a Bitmapist.
type Option func(*options)

// WithPrefix sets the key prefix. Defaults to "trackist".
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithDivider sets the key segment divider. Defaults to ":".
func WithDivider(divider string) Option {
	return func(o *options) {
		o.divider = divider
	}
}

// WithTempTTL sets the lifetime of keys created by bit operations.
// Non-positive values select DefaultTempTTL.
func WithTempTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl <= 0 {
			ttl = DefaultTempTTL
		}
		o.tempTTL = ttl
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &bitmapist.BasicMetricsCollector{}
//	bm := bitmapist.New(st, bitmapist.WithMetricsCollector(metrics))
//	// ... use bm ...
//	stats := metrics.GetStats()
//	fmt.Printf("Marks: %d, Avg latency: %dns\n", stats.MarkCount, stats.MarkAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := bitmapist.NewJSONLogger(slog.LevelInfo)
//	bm := bitmapist.New(st, bitmapist.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithClock sets the clock used when an event is marked without an explicit time.
// Defaults to the current time in UTC.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		prefix:           keyspace.DefaultPrefix,
		divider:          keyspace.DefaultDivider,
		tempTTL:          DefaultTempTTL,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		clock:            func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
