package bitmapist

import (
	"context"
	"time"

	"github.com/hupe1980/bitmapist/keyspace"
	"github.com/hupe1980/bitmapist/store"
)

type markOptions struct {
	at            time.Time
	granularities []keyspace.Granularity
	ttls          map[keyspace.Granularity]time.Duration
}

// MarkOption configures MarkEvent.
type MarkOption func(*markOptions)

// At marks the event at t instead of the current time. Buckets are derived
// from t in its own location.
func At(t time.Time) MarkOption {
	return func(o *markOptions) {
		o.at = t
	}
}

// WithGranularities restricts the buckets written. By default all of month,
// week, day and hour are marked. Passing no granularity makes MarkEvent fail
// with ErrNoGranularity.
func WithGranularities(gs ...keyspace.Granularity) MarkOption {
	return func(o *markOptions) {
		o.granularities = gs
	}
}

// WithTTL sets a lifetime on the bucket of granularity g. It applies to that
// bucket only. A ttl that is not positive is ignored and leaves the bucket
// persistent.
func WithTTL(g keyspace.Granularity, ttl time.Duration) MarkOption {
	return func(o *markOptions) {
		if ttl <= 0 {
			delete(o.ttls, g)
			return
		}
		if o.ttls == nil {
			o.ttls = make(map[keyspace.Granularity]time.Duration)
		}
		o.ttls[g] = ttl
	}
}

func checkIdentity(id uint64) error {
	if id >= store.MaxBits {
		return ErrIdentityOutOfRange
	}
	return nil
}

func checkMarkValue(v int) error {
	if v != 0 && v != 1 {
		return &MarkValueError{Value: v}
	}
	return nil
}

// MarkEvent sets the bit for id in every selected time bucket of event name.
// All writes, including per-bucket expiries, are sent as one transactional
// batch.
//
//	// Mark id 1 as active
//	bm.MarkEvent(ctx, "active", 1)
//
//	// Mark only the month and week buckets, keeping the week for 90 days
//	bm.MarkEvent(ctx, "active", 1,
//	    bitmapist.WithGranularities(keyspace.Month, keyspace.Week),
//	    bitmapist.WithTTL(keyspace.Week, 90*24*time.Hour))
func (b *Bitmapist) MarkEvent(ctx context.Context, name string, id uint64, optFns ...MarkOption) error {
	o := markOptions{at: b.now(), granularities: keyspace.Granularities}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if len(o.granularities) == 0 {
		return ErrNoGranularity
	}
	if err := checkIdentity(id); err != nil {
		return err
	}

	t0 := time.Now()
	p := b.store.Pipeline(true)
	seen := make(map[keyspace.Granularity]bool, len(o.granularities))
	cmds := 0
	for _, g := range o.granularities {
		if seen[g] {
			continue
		}
		seen[g] = true
		key := b.keys.EventKey(name, keyspace.PeriodOf(g, o.at))
		p.SetBit(key, int64(id), 1)
		cmds++
		if ttl, ok := o.ttls[g]; ok {
			p.Expire(key, ttl)
			cmds++
		}
	}
	failed, err := p.Exec(ctx)
	err = batchError(cmds, failed, err)

	b.metrics.RecordMark(len(seen), time.Since(t0), err)
	b.logger.LogMark(ctx, name, id, len(seen), err)
	return err
}

// MarkAttribute sets the bit for id in attribute name to value (0 or 1).
func (b *Bitmapist) MarkAttribute(ctx context.Context, name string, id uint64, value int) error {
	if err := checkMarkValue(value); err != nil {
		return err
	}
	if err := checkIdentity(id); err != nil {
		return err
	}

	t0 := time.Now()
	key := b.keys.AttributeKey(name)
	err := translateError(b.store.SetBit(ctx, key, int64(id), value))
	b.metrics.RecordMark(1, time.Since(t0), err)
	b.logger.WithKey(key).LogAttributeMark(ctx, name, id, value, err)
	return err
}

// MarkAttributeMulti sets the bit of every id in attribute name to value in
// one non-transactional batch. If the store fails part way through, a
// *PartialBatchError is returned and earlier writes stay applied.
func (b *Bitmapist) MarkAttributeMulti(ctx context.Context, name string, ids []uint64, value int) error {
	if err := checkMarkValue(value); err != nil {
		return err
	}
	for _, id := range ids {
		if err := checkIdentity(id); err != nil {
			return err
		}
	}
	if len(ids) == 0 {
		return nil
	}

	t0 := time.Now()
	key := b.keys.AttributeKey(name)
	p := b.store.Pipeline(false)
	for _, id := range ids {
		p.SetBit(key, int64(id), value)
	}
	failed, err := p.Exec(ctx)
	err = batchError(len(ids), failed, err)

	b.metrics.RecordBatchMark(len(ids), failed, time.Since(t0))
	b.logger.LogBatchMark(ctx, name, len(ids), failed, err)
	return err
}
