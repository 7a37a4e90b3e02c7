// Package memory provides an in-process bit-array store with Redis string-bitmap
// semantics, backed by roaring bitmaps.
//
// A key's value has a byte length, like a Redis string: setting bit i grows the
// value to at least i/8+1 bytes, clearing bits never shrinks it. Byte-range counts,
// negative indices and BITOP NOT all operate on that length.
package memory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/bitmapist/store"
)

var (
	// ErrBitOffset is returned for bit offsets outside [0, store.MaxBits).
	ErrBitOffset = errors.New("bit offset is not an integer or out of range")
	// ErrBitValue is returned when a bit value is not 0 or 1.
	ErrBitValue = errors.New("bit is not an integer or out of range")
	// ErrNotArity is returned when BITOP NOT is called with more than one source.
	ErrNotArity = errors.New("BITOP NOT must be called with a single source key")
)

type entry struct {
	bits     *roaring.Bitmap
	size     int64 // value length in bytes
	expireAt time.Time
}

// Store is an in-memory store.Store. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	data map[string]*entry
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for key expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty in-memory store.
func New(optFns ...Option) *Store {
	s := &Store{
		data: make(map[string]*entry),
		now:  time.Now,
	}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// lookup returns the live entry for key, dropping it if expired. Callers hold mu.
func (s *Store) lookup(key string) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if !e.expireAt.IsZero() && !s.now().Before(e.expireAt) {
		delete(s.data, key)
		return nil
	}
	return e
}

func (s *Store) setBit(key string, index int64, value int) error {
	if index < 0 || index >= store.MaxBits {
		return ErrBitOffset
	}
	if value != 0 && value != 1 {
		return ErrBitValue
	}
	e := s.lookup(key)
	if e == nil {
		e = &entry{bits: roaring.New()}
		s.data[key] = e
	}
	e.size = max(e.size, index/8+1)
	if value == 1 {
		e.bits.Add(uint32(index))
	} else {
		e.bits.Remove(uint32(index))
	}
	return nil
}

func (s *Store) getBit(key string, index int64) int {
	e := s.lookup(key)
	if e == nil {
		return 0
	}
	if index < 0 {
		index += e.size * 8
	}
	if index < 0 || index >= e.size*8 {
		return 0
	}
	if e.bits.Contains(uint32(index)) {
		return 1
	}
	return 0
}

func (s *Store) expire(key string, ttl time.Duration) {
	e := s.lookup(key)
	if e == nil {
		return
	}
	if ttl <= 0 {
		delete(s.data, key)
		return
	}
	e.expireAt = s.now().Add(ttl)
}

// SetBit implements store.Writer.
func (s *Store) SetBit(_ context.Context, key string, index int64, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setBit(key, index, value)
}

// GetBit implements store.Reader.
func (s *Store) GetBit(_ context.Context, key string, index int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getBit(key, index), nil
}

// BitCount implements store.Reader.
func (s *Store) BitCount(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil {
		return 0, nil
	}
	return int64(e.bits.GetCardinality()), nil
}

// BitCountRange implements store.Reader using Redis BITCOUNT index rules.
func (s *Store) BitCountRange(_ context.Context, key string, startByte, endByte int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil || e.size == 0 {
		return 0, nil
	}
	if startByte < 0 {
		startByte += e.size
	}
	if endByte < 0 {
		endByte += e.size
	}
	startByte = max(startByte, 0)
	endByte = max(endByte, 0)
	endByte = min(endByte, e.size-1)
	if startByte > endByte {
		return 0, nil
	}
	return rangeCardinality(e.bits, startByte*8, endByte*8+7), nil
}

// StrLen implements store.Reader.
func (s *Store) StrLen(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil {
		return 0, nil
	}
	return e.size, nil
}

// rangeCardinality counts set bits in the inclusive bit range [lo, hi].
func rangeCardinality(rb *roaring.Bitmap, lo, hi int64) int64 {
	n := int64(rb.Rank(uint32(hi)))
	if lo > 0 {
		n -= int64(rb.Rank(uint32(lo - 1)))
	}
	return n
}

// BitOp implements store.Writer.
//
// Missing sources are treated as empty values. The result is as long as the
// longest source; NOT complements every bit of its source's length. An empty
// result deletes dest.
func (s *Store) BitOp(_ context.Context, op store.BitOp, dest string, srcs ...string) error {
	if len(srcs) == 0 {
		return fmt.Errorf("BITOP %s: no source keys", op)
	}
	if op == store.Not && len(srcs) != 1 {
		return ErrNotArity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var size int64
	operands := make([]*roaring.Bitmap, len(srcs))
	for i, k := range srcs {
		if e := s.lookup(k); e != nil {
			operands[i] = e.bits
			size = max(size, e.size)
		} else {
			operands[i] = roaring.New()
		}
	}

	var result *roaring.Bitmap
	switch op {
	case store.And:
		result = operands[0].Clone()
		for _, o := range operands[1:] {
			result.And(o)
		}
	case store.Or:
		result = roaring.FastOr(operands...)
	case store.Xor:
		result = operands[0].Clone()
		for _, o := range operands[1:] {
			result.Xor(o)
		}
	case store.Not:
		result = roaring.Flip(operands[0], 0, uint64(size*8))
	default:
		return fmt.Errorf("BITOP: unknown operation %q", op)
	}

	if size == 0 {
		delete(s.data, dest)
		return nil
	}
	s.data[dest] = &entry{bits: result, size: size}
	return nil
}

// Expire implements store.Writer. A non-positive ttl deletes the key.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(key, ttl)
	return nil
}

// TTL implements store.Reader. It returns -1 for keys without expiry and -2 for
// missing keys.
func (s *Store) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	switch {
	case e == nil:
		return -2, nil
	case e.expireAt.IsZero():
		return -1, nil
	}
	return e.expireAt.Sub(s.now()), nil
}

// Exists implements store.Reader.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(key) != nil, nil
}

// Delete implements store.Writer.
func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// Get implements store.Reader, encoding the bitmap in Redis bit order
// (bit 0 is the most significant bit of byte 0).
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil {
		return nil, false, nil
	}
	buf := make([]byte, e.size)
	it := e.bits.Iterator()
	for it.HasNext() {
		i := it.Next()
		buf[i/8] |= 0x80 >> (i % 8)
	}
	return buf, true, nil
}

// Set implements store.Writer. The value is decoded in Redis bit order and
// any expiry is cleared.
func (s *Store) Set(_ context.Context, key string, data []byte) error {
	if int64(len(data))*8 > store.MaxBits {
		return ErrBitOffset
	}
	rb := roaring.New()
	for i, b := range data {
		for j := range 8 {
			if b&(0x80>>j) != 0 {
				rb.Add(uint32(i*8 + j))
			}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = &entry{bits: rb, size: int64(len(data))}
	return nil
}

// Keys implements store.Reader. The pattern supports the '*' and '?' wildcards.
func (s *Store) Keys(_ context.Context, pattern string) ([]string, error) {
	re, err := globToRegexp(pattern)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.data {
		if s.lookup(k) != nil && re.MatchString(k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// Pipeline implements store.Store. A transactional pipeline holds the store
// lock for the whole batch.
func (s *Store) Pipeline(tx bool) store.Pipeline {
	return &pipeline{s: s, tx: tx}
}

type pipeline struct {
	s    *Store
	tx   bool
	cmds []func() error
}

func (p *pipeline) SetBit(key string, index int64, value int) {
	p.cmds = append(p.cmds, func() error { return p.s.setBit(key, index, value) })
}

func (p *pipeline) GetBit(key string, index int64) *store.IntResult {
	r := &store.IntResult{}
	p.cmds = append(p.cmds, func() error {
		r.Set(int64(p.s.getBit(key, index)), nil)
		return nil
	})
	return r
}

func (p *pipeline) Expire(key string, ttl time.Duration) {
	p.cmds = append(p.cmds, func() error {
		p.s.expire(key, ttl)
		return nil
	})
}

func (p *pipeline) Exec(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return len(p.cmds), err
	}
	cmds := p.cmds
	p.cmds = nil

	if p.tx {
		p.s.mu.Lock()
		defer p.s.mu.Unlock()
	}

	var (
		failed   int
		firstErr error
	)
	for _, cmd := range cmds {
		if !p.tx {
			p.s.mu.Lock()
		}
		err := cmd()
		if !p.tx {
			p.s.mu.Unlock()
		}
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return failed, firstErr
}

var _ store.Store = (*Store)(nil)
