package bitmapist

import (
	"context"
	"time"

	"github.com/hupe1980/bitmapist/store"
	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of store.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetBit(ctx context.Context, key string, index int64) (int, error) {
	args := m.Called(ctx, key, index)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) BitCount(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) BitCountRange(ctx context.Context, key string, startByte, endByte int64) (int64, error) {
	args := m.Called(ctx, key, startByte, endByte)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) StrLen(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *MockStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(time.Duration), args.Error(1)
}

func (m *MockStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	args := m.Called(ctx, pattern)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) SetBit(ctx context.Context, key string, index int64, value int) error {
	return m.Called(ctx, key, index, value).Error(0)
}

func (m *MockStore) BitOp(ctx context.Context, op store.BitOp, dest string, srcs ...string) error {
	return m.Called(ctx, op, dest, srcs).Error(0)
}

func (m *MockStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return m.Called(ctx, key, ttl).Error(0)
}

func (m *MockStore) Delete(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *MockStore) Set(ctx context.Context, key string, data []byte) error {
	return m.Called(ctx, key, data).Error(0)
}

func (m *MockStore) Pipeline(tx bool) store.Pipeline {
	return m.Called(tx).Get(0).(store.Pipeline)
}

// failingPipeline records queued commands and fails Exec with a fixed result.
type failingPipeline struct {
	queued int
	failed int
	err    error
}

func (p *failingPipeline) SetBit(string, int64, int)    { p.queued++ }
func (p *failingPipeline) Expire(string, time.Duration) { p.queued++ }

func (p *failingPipeline) GetBit(string, int64) *store.IntResult {
	p.queued++
	return &store.IntResult{}
}

func (p *failingPipeline) Exec(context.Context) (int, error) {
	return p.failed, p.err
}
