package bitmapist

import (
	"context"
	"math"
	"time"

	"github.com/hupe1980/bitmapist/internal/bitrange"
	"github.com/hupe1980/bitmapist/store"
)

// Bitmap is the capability set shared by event buckets, attributes and the
// results of bit operations. Any Bitmap can be used as a bit operation operand.
type Bitmap interface {
	// Key returns the store key holding the bitmap.
	Key() string

	// Contains reports whether the bit for id is set.
	Contains(ctx context.Context, id uint64) (bool, error)

	// Count returns the number of set bits.
	Count(ctx context.Context) (int64, error)

	// CountRange returns the number of set bits in the inclusive bit range
	// [start, end]. Either bound may be nil (start of value / last bit) or
	// negative (counted back from the end, -1 being the last bit).
	CountRange(ctx context.Context, start, end *int64) (int64, error)

	// HasEventsMarked reports whether the key exists. A key whose bits were all
	// cleared after being written still exists.
	HasEventsMarked(ctx context.Context) (bool, error)
}

// Bit returns a pointer to i, for use as a CountRange bound.
func Bit(i int64) *int64 { return &i }

// Handle is a Bitmap backed by a single store key.
type Handle struct {
	key     string
	store   store.Store
	metrics MetricsCollector
	derived bool
}

// NewHandle returns a handle on an arbitrary key.
func NewHandle(st store.Store, key string) *Handle {
	return &Handle{key: key, store: st, metrics: NoopMetricsCollector{}}
}

// Key implements Bitmap.
func (h *Handle) Key() string { return h.key }

// Derived reports whether the handle holds a bit operation result.
func (h *Handle) Derived() bool { return h.derived }

// Contains implements Bitmap. Identities beyond the stored value read as unset.
func (h *Handle) Contains(ctx context.Context, id uint64) (bool, error) {
	if id > math.MaxInt64 {
		return false, nil
	}
	v, err := h.store.GetBit(ctx, h.key, int64(id))
	if err != nil {
		return false, translateError(err)
	}
	return v == 1, nil
}

// Count implements Bitmap.
func (h *Handle) Count(ctx context.Context) (int64, error) {
	return h.CountRange(ctx, nil, nil)
}

// CountRange implements Bitmap.
func (h *Handle) CountRange(ctx context.Context, start, end *int64) (int64, error) {
	t0 := time.Now()
	n, err := bitrange.Count(ctx, h.store, h.key, start, end)
	err = translateError(err)
	h.metrics.RecordCount(time.Since(t0), err)
	return n, err
}

// HasEventsMarked implements Bitmap.
func (h *Handle) HasEventsMarked(ctx context.Context) (bool, error) {
	ok, err := h.store.Exists(ctx, h.key)
	return ok, translateError(err)
}

// TTL returns the remaining lifetime of the key, or a negative duration if it
// has none or does not exist.
func (h *Handle) TTL(ctx context.Context) (time.Duration, error) {
	d, err := h.store.TTL(ctx, h.key)
	return d, translateError(err)
}

// Expire sets the lifetime of the key.
func (h *Handle) Expire(ctx context.Context, ttl time.Duration) error {
	return translateError(h.store.Expire(ctx, h.key, ttl))
}

// Delete removes the key.
func (h *Handle) Delete(ctx context.Context) error {
	return translateError(h.store.Delete(ctx, h.key))
}

var _ Bitmap = (*Handle)(nil)
