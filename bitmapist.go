package bitmapist

import (
	"context"
	"sort"
	"time"

	"github.com/hupe1980/bitmapist/keyspace"
	"github.com/hupe1980/bitmapist/store"
)

// Bitmapist tracks events and attributes as bitmaps in a store.
//
// A Bitmapist is safe for concurrent use; it holds no mutable state of its own.
type Bitmapist struct {
	store   store.Store
	keys    keyspace.KeySpace
	tempTTL time.Duration
	metrics MetricsCollector
	logger  *Logger
	now     func() time.Time
}

// New creates a Bitmapist on top of st.
func New(st store.Store, optFns ...Option) *Bitmapist {
	o := applyOptions(optFns)
	return &Bitmapist{
		store:   st,
		keys:    keyspace.New(o.prefix, o.divider),
		tempTTL: o.tempTTL,
		metrics: o.metricsCollector,
		logger:  o.logger,
		now:     o.clock,
	}
}

// KeySpace returns the key layout in use.
func (b *Bitmapist) KeySpace() keyspace.KeySpace { return b.keys }

// Store returns the underlying store.
func (b *Bitmapist) Store() store.Store { return b.store }

// TempTTL returns the lifetime of derived bit operation keys.
func (b *Bitmapist) TempTTL() time.Duration { return b.tempTTL }

func (b *Bitmapist) handle(key string, derived bool) *Handle {
	return &Handle{key: key, store: b.store, metrics: b.metrics, derived: derived}
}

// Event returns the bucket of granularity g containing t for event name.
func (b *Bitmapist) Event(name string, g keyspace.Granularity, t time.Time) *Handle {
	return b.handle(b.keys.EventKey(name, keyspace.PeriodOf(g, t)), false)
}

// MonthEvent returns the month bucket of event name containing t.
func (b *Bitmapist) MonthEvent(name string, t time.Time) *Handle {
	return b.Event(name, keyspace.Month, t)
}

// WeekEvent returns the ISO week bucket of event name containing t.
func (b *Bitmapist) WeekEvent(name string, t time.Time) *Handle {
	return b.Event(name, keyspace.Week, t)
}

// DayEvent returns the day bucket of event name containing t.
func (b *Bitmapist) DayEvent(name string, t time.Time) *Handle {
	return b.Event(name, keyspace.Day, t)
}

// HourEvent returns the hour bucket of event name containing t.
func (b *Bitmapist) HourEvent(name string, t time.Time) *Handle {
	return b.Event(name, keyspace.Hour, t)
}

// Attribute returns the bitmap of attribute name.
func (b *Bitmapist) Attribute(name string) *Handle {
	return b.handle(b.keys.AttributeKey(name), false)
}

// EventNames returns the names of all marked events, sorted. Events are found
// through their week buckets.
func (b *Bitmapist) EventNames(ctx context.Context) ([]string, error) {
	keys, err := b.store.Keys(ctx, b.keys.EventPattern())
	if err != nil {
		return nil, translateError(err)
	}
	names := b.keys.EventNames(keys)
	sort.Strings(names)
	return names, nil
}

// AttributeNames returns the names of all marked attributes, sorted.
func (b *Bitmapist) AttributeNames(ctx context.Context) ([]string, error) {
	keys, err := b.store.Keys(ctx, b.keys.AttributePattern())
	if err != nil {
		return nil, translateError(err)
	}
	names := b.keys.AttributeNames(keys)
	sort.Strings(names)
	return names, nil
}

// DeleteAll removes every key under the prefix.
func (b *Bitmapist) DeleteAll(ctx context.Context) error {
	return b.deletePattern(ctx, b.keys.AllPattern())
}

// DeleteAllEvents removes every event bucket.
func (b *Bitmapist) DeleteAllEvents(ctx context.Context) error {
	return b.deletePattern(ctx, b.keys.EventPattern())
}

// DeleteAllAttributes removes every attribute.
func (b *Bitmapist) DeleteAllAttributes(ctx context.Context) error {
	return b.deletePattern(ctx, b.keys.AttributePattern())
}

// DeleteTemporaryBitOpKeys removes every key created by a bit operation.
func (b *Bitmapist) DeleteTemporaryBitOpKeys(ctx context.Context) error {
	return b.deletePattern(ctx, b.keys.BitOpPattern())
}

func (b *Bitmapist) deletePattern(ctx context.Context, pattern string) error {
	t0 := time.Now()
	keys, err := b.store.Keys(ctx, pattern)
	if err == nil && len(keys) > 0 {
		err = b.store.Delete(ctx, keys...)
	}
	err = translateError(err)
	b.metrics.RecordDelete(len(keys), time.Since(t0), err)
	b.logger.LogDelete(ctx, pattern, len(keys), err)
	return err
}
