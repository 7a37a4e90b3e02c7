// Package bitrange counts set bits over arbitrary bit ranges on a store whose
// native count primitive only accepts whole-byte boundaries.
//
// A range [start, end] is split into a leading partial byte, an aligned interior
// of whole bytes counted with one BITCOUNT, and a trailing partial byte. Partial
// regions are read bit by bit in a single pipeline round trip.
//
// Negative indices count backwards from one past the last bit (-1 is the last bit),
// following the store's own convention.
package bitrange

import (
	"context"

	"github.com/hupe1980/bitmapist/store"
)

// Source is the subset of store.Store the counter needs.
type Source interface {
	BitCount(ctx context.Context, key string) (int64, error)
	BitCountRange(ctx context.Context, key string, startByte, endByte int64) (int64, error)
	StrLen(ctx context.Context, key string) (int64, error)
	Pipeline(tx bool) store.Pipeline
}

// floorDiv is integer division rounding towards negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// StartByte returns the first byte lying entirely inside a range that starts at
// bit start. ok is false when start is in [-7, -1]: no whole byte can follow it.
func StartByte(start int64) (b int64, ok bool) {
	if start >= -7 && start < 0 {
		return 0, false
	}
	return floorDiv(start+7, 8), true
}

// EndByte returns the last byte lying entirely inside a range that ends at bit
// end. ok is false when end is in [0, 6]: no whole byte can precede it.
func EndByte(end int64) (b int64, ok bool) {
	switch {
	case end < 0:
		return floorDiv(end+1, 8) - 1, true
	case end < 7:
		return 0, false
	default:
		return floorDiv(end-7, 8), true
	}
}

// Count returns the number of set bits of key in the inclusive bit range
// [start, end]. A nil start means 0 and a nil end means -1; if both are nil the
// whole key is counted with one BITCOUNT.
//
// Negative bounds are resolved against the value's length first. A start that
// falls before the first bit is clamped to 0 and a range whose resolved start
// lies after its resolved end is empty.
func Count(ctx context.Context, src Source, key string, start, end *int64) (int64, error) {
	if start == nil && end == nil {
		return src.BitCount(ctx, key)
	}
	s, e := int64(0), int64(-1)
	if start != nil {
		s = *start
	}
	if end != nil {
		e = *end
	}

	if s < 0 || e < 0 {
		n, err := src.StrLen(ctx, key)
		if err != nil {
			return 0, err
		}
		bits := n * 8
		if s < 0 {
			s += bits
		}
		if e < 0 {
			e += bits
		}
		s = max(s, 0)
	}
	e = min(e, store.MaxBits-1)
	if s > e {
		return 0, nil
	}

	sb, _ := StartByte(s)
	eb, ok := EndByte(e)
	if !ok || sb > eb {
		return countBits(ctx, src, key, s, e+1)
	}

	lead, err := countBits(ctx, src, key, s, sb*8)
	if err != nil {
		return 0, err
	}
	interior, err := src.BitCountRange(ctx, key, sb, eb)
	if err != nil {
		return 0, err
	}
	trail, err := countBits(ctx, src, key, (eb+1)*8, e+1)
	if err != nil {
		return 0, err
	}
	return lead + interior + trail, nil
}

// countBits sums the bits in [from, to), both non-negative.
func countBits(ctx context.Context, src Source, key string, from, to int64) (int64, error) {
	if from >= to {
		return 0, nil
	}
	p := src.Pipeline(false)
	results := make([]*store.IntResult, 0, to-from)
	for i := from; i < to; i++ {
		results = append(results, p.GetBit(key, i))
	}
	if _, err := p.Exec(ctx); err != nil {
		return 0, err
	}
	var n int64
	for _, r := range results {
		if err := r.Err(); err != nil {
			return 0, err
		}
		n += r.Val()
	}
	return n, nil
}
