// Package redis implements store.Store on top of a Redis server using go-redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/hupe1980/bitmapist/store"
	goredis "github.com/redis/go-redis/v9"
)

// Store adapts a go-redis client to store.Store.
type Store struct {
	client goredis.UniversalClient
}

// New wraps an existing client. The caller owns the client and closes it.
func New(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

// Dial connects to addr (host:port) and verifies the connection with PING.
func Dial(ctx context.Context, addr string, db int) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, wrapErr(err)
	}
	return New(client), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// wrapErr marks transport failures with store.ErrUnavailable and leaves
// server-side command errors as they are.
func wrapErr(err error) error {
	if err == nil || errors.Is(err, goredis.Nil) {
		return err
	}
	var rerr goredis.Error
	if errors.As(err, &rerr) {
		return err
	}
	var nerr net.Error
	if errors.As(err, &nerr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, goredis.ErrClosed) {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return err
}

// resolveBit turns a negative bit index into an absolute one using STRLEN.
// ok is false when the index falls before the first bit.
func (s *Store) resolveBit(ctx context.Context, key string, index int64) (int64, bool, error) {
	if index >= 0 {
		return index, true, nil
	}
	n, err := s.StrLen(ctx, key)
	if err != nil {
		return 0, false, err
	}
	index += n * 8
	return index, index >= 0, nil
}

// GetBit implements store.Reader.
func (s *Store) GetBit(ctx context.Context, key string, index int64) (int, error) {
	index, ok, err := s.resolveBit(ctx, key, index)
	if err != nil || !ok {
		return 0, err
	}
	v, err := s.client.GetBit(ctx, key, index).Result()
	if err != nil {
		return 0, wrapErr(err)
	}
	return int(v), nil
}

// BitCount implements store.Reader.
func (s *Store) BitCount(ctx context.Context, key string) (int64, error) {
	n, err := s.client.BitCount(ctx, key, nil).Result()
	return n, wrapErr(err)
}

// BitCountRange implements store.Reader.
func (s *Store) BitCountRange(ctx context.Context, key string, startByte, endByte int64) (int64, error) {
	n, err := s.client.BitCount(ctx, key, &goredis.BitCount{Start: startByte, End: endByte}).Result()
	return n, wrapErr(err)
}

// StrLen implements store.Reader.
func (s *Store) StrLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.StrLen(ctx, key).Result()
	return n, wrapErr(err)
}

// Exists implements store.Reader.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, wrapErr(err)
	}
	return n > 0, nil
}

// Get implements store.Reader.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapErr(err)
	}
	return b, true, nil
}

// TTL implements store.Reader.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key).Result()
	return d, wrapErr(err)
}

// Keys implements store.Reader.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := s.client.Keys(ctx, pattern).Result()
	return keys, wrapErr(err)
}

// SetBit implements store.Writer.
func (s *Store) SetBit(ctx context.Context, key string, index int64, value int) error {
	return wrapErr(s.client.SetBit(ctx, key, index, value).Err())
}

// BitOp implements store.Writer.
func (s *Store) BitOp(ctx context.Context, op store.BitOp, dest string, srcs ...string) error {
	var cmd *goredis.IntCmd
	switch op {
	case store.And:
		cmd = s.client.BitOpAnd(ctx, dest, srcs...)
	case store.Or:
		cmd = s.client.BitOpOr(ctx, dest, srcs...)
	case store.Xor:
		cmd = s.client.BitOpXor(ctx, dest, srcs...)
	case store.Not:
		if len(srcs) != 1 {
			return fmt.Errorf("BITOP NOT: expected 1 source key, got %d", len(srcs))
		}
		cmd = s.client.BitOpNot(ctx, dest, srcs[0])
	default:
		return fmt.Errorf("BITOP: unknown operation %q", op)
	}
	return wrapErr(cmd.Err())
}

// Expire implements store.Writer.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return wrapErr(s.client.Expire(ctx, key, ttl).Err())
}

// Delete implements store.Writer.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return wrapErr(s.client.Del(ctx, keys...).Err())
}

// Set implements store.Writer.
func (s *Store) Set(ctx context.Context, key string, data []byte) error {
	return wrapErr(s.client.Set(ctx, key, data, 0).Err())
}

// Pipeline implements store.Store. tx selects MULTI/EXEC.
func (s *Store) Pipeline(tx bool) store.Pipeline {
	return &pipeline{s: s, tx: tx}
}

type queuedGet struct {
	key   string
	index int64
	res   *store.IntResult
	cmd   *goredis.IntCmd
}

type pipeline struct {
	s    *Store
	tx   bool
	ops  []func(goredis.Pipeliner)
	gets []*queuedGet
}

func (p *pipeline) SetBit(key string, index int64, value int) {
	p.ops = append(p.ops, func(pl goredis.Pipeliner) {
		pl.SetBit(context.Background(), key, index, value)
	})
}

func (p *pipeline) GetBit(key string, index int64) *store.IntResult {
	g := &queuedGet{key: key, index: index, res: &store.IntResult{}}
	p.gets = append(p.gets, g)
	p.ops = append(p.ops, func(pl goredis.Pipeliner) {
		if g.index >= 0 {
			g.cmd = pl.GetBit(context.Background(), g.key, g.index)
		}
	})
	return g.res
}

func (p *pipeline) Expire(key string, ttl time.Duration) {
	p.ops = append(p.ops, func(pl goredis.Pipeliner) {
		pl.Expire(context.Background(), key, ttl)
	})
}

// resolveNegative rewrites negative GETBIT offsets using one STRLEN round trip.
func (p *pipeline) resolveNegative(ctx context.Context, gets []*queuedGet) error {
	lens := make(map[string]*goredis.IntCmd)
	pl := p.s.client.Pipeline()
	for _, g := range gets {
		if g.index < 0 {
			if _, ok := lens[g.key]; !ok {
				lens[g.key] = pl.StrLen(ctx, g.key)
			}
		}
	}
	if len(lens) == 0 {
		return nil
	}
	if _, err := pl.Exec(ctx); err != nil {
		return wrapErr(err)
	}
	for _, g := range gets {
		if g.index < 0 {
			g.index += lens[g.key].Val() * 8
			if g.index < 0 {
				// Before the first bit: reads as 0 without a command.
				g.res.Set(0, nil)
				g.index = -1
			}
		}
	}
	return nil
}

func (p *pipeline) Exec(ctx context.Context) (int, error) {
	ops, gets := p.ops, p.gets
	p.ops, p.gets = nil, nil
	if len(ops) == 0 {
		return 0, nil
	}

	if err := p.resolveNegative(ctx, gets); err != nil {
		return len(ops), err
	}

	var pl goredis.Pipeliner
	if p.tx {
		pl = p.s.client.TxPipeline()
	} else {
		pl = p.s.client.Pipeline()
	}
	for _, op := range ops {
		op(pl)
	}
	cmds, execErr := pl.Exec(ctx)

	failed := 0
	for _, c := range cmds {
		if err := c.Err(); err != nil && !errors.Is(err, goredis.Nil) {
			failed++
		}
	}
	for _, g := range gets {
		if g.cmd != nil {
			g.res.Set(g.cmd.Val(), wrapErr(g.cmd.Err()))
		}
	}
	if execErr != nil && failed == 0 {
		failed = len(ops)
	}
	return failed, wrapErr(execErr)
}

var _ store.Store = (*Store)(nil)
