package store

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttled wraps a Store and limits the rate of commands sent to it.
// A pipeline counts as one command per queued entry, capped at the limiter burst.
type Throttled struct {
	inner   Store
	limiter *rate.Limiter
}

// NewThrottled creates a Store that allows at most opsPerSec commands per second
// with the given burst. If burst <= 0 it defaults to opsPerSec.
func NewThrottled(inner Store, opsPerSec float64, burst int) *Throttled {
	if burst <= 0 {
		burst = max(1, int(opsPerSec))
	}
	return &Throttled{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(opsPerSec), burst),
	}
}

func (t *Throttled) wait(ctx context.Context, n int) error {
	return t.limiter.WaitN(ctx, min(max(n, 1), t.limiter.Burst()))
}

func (t *Throttled) GetBit(ctx context.Context, key string, index int64) (int, error) {
	if err := t.wait(ctx, 1); err != nil {
		return 0, err
	}
	return t.inner.GetBit(ctx, key, index)
}

func (t *Throttled) BitCount(ctx context.Context, key string) (int64, error) {
	if err := t.wait(ctx, 1); err != nil {
		return 0, err
	}
	return t.inner.BitCount(ctx, key)
}

func (t *Throttled) BitCountRange(ctx context.Context, key string, startByte, endByte int64) (int64, error) {
	if err := t.wait(ctx, 1); err != nil {
		return 0, err
	}
	return t.inner.BitCountRange(ctx, key, startByte, endByte)
}

func (t *Throttled) StrLen(ctx context.Context, key string) (int64, error) {
	if err := t.wait(ctx, 1); err != nil {
		return 0, err
	}
	return t.inner.StrLen(ctx, key)
}

func (t *Throttled) Exists(ctx context.Context, key string) (bool, error) {
	if err := t.wait(ctx, 1); err != nil {
		return false, err
	}
	return t.inner.Exists(ctx, key)
}

func (t *Throttled) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := t.wait(ctx, 1); err != nil {
		return nil, false, err
	}
	return t.inner.Get(ctx, key)
}

func (t *Throttled) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := t.wait(ctx, 1); err != nil {
		return 0, err
	}
	return t.inner.TTL(ctx, key)
}

func (t *Throttled) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := t.wait(ctx, 1); err != nil {
		return nil, err
	}
	return t.inner.Keys(ctx, pattern)
}

func (t *Throttled) SetBit(ctx context.Context, key string, index int64, value int) error {
	if err := t.wait(ctx, 1); err != nil {
		return err
	}
	return t.inner.SetBit(ctx, key, index, value)
}

func (t *Throttled) BitOp(ctx context.Context, op BitOp, dest string, srcs ...string) error {
	if err := t.wait(ctx, 1); err != nil {
		return err
	}
	return t.inner.BitOp(ctx, op, dest, srcs...)
}

func (t *Throttled) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := t.wait(ctx, 1); err != nil {
		return err
	}
	return t.inner.Expire(ctx, key, ttl)
}

func (t *Throttled) Delete(ctx context.Context, keys ...string) error {
	if err := t.wait(ctx, 1); err != nil {
		return err
	}
	return t.inner.Delete(ctx, keys...)
}

func (t *Throttled) Set(ctx context.Context, key string, data []byte) error {
	if err := t.wait(ctx, 1); err != nil {
		return err
	}
	return t.inner.Set(ctx, key, data)
}

func (t *Throttled) Pipeline(tx bool) Pipeline {
	return &throttledPipeline{Pipeline: t.inner.Pipeline(tx), t: t}
}

type throttledPipeline struct {
	Pipeline
	t      *Throttled
	queued int
}

func (p *throttledPipeline) SetBit(key string, index int64, value int) {
	p.queued++
	p.Pipeline.SetBit(key, index, value)
}

func (p *throttledPipeline) GetBit(key string, index int64) *IntResult {
	p.queued++
	return p.Pipeline.GetBit(key, index)
}

func (p *throttledPipeline) Expire(key string, ttl time.Duration) {
	p.queued++
	p.Pipeline.Expire(key, ttl)
}

func (p *throttledPipeline) Exec(ctx context.Context) (int, error) {
	if err := p.t.wait(ctx, p.queued); err != nil {
		return 0, err
	}
	p.queued = 0
	return p.Pipeline.Exec(ctx)
}

var _ Store = (*Throttled)(nil)
