package bitmapist

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/bitmapist/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCompose_And(t *testing.T) {
	ctx := context.Background()
	bm, _, _ := newTestBitmapist(t)
	lastMonth := refTime.AddDate(0, -1, 0)

	for _, id := range []uint64{1, 2, 3, 10} {
		require.NoError(t, bm.MarkEvent(ctx, "active", id, At(lastMonth)))
	}
	for _, id := range []uint64{2, 3, 4, 20} {
		require.NoError(t, bm.MarkEvent(ctx, "active", id))
	}

	a := bm.MonthEvent("active", lastMonth)
	b := bm.MonthEvent("active", refTime)
	both, err := bm.And(ctx, a, b)
	require.NoError(t, err)

	assert.True(t, both.Derived())
	assert.Equal(t, "trackist:bitop:AND:"+a.Key()+"-"+b.Key(), both.Key())
	assert.Equal(t, int64(2), count(t, both))
	for id := uint64(0); id <= 24; id++ {
		want := id == 2 || id == 3
		assert.Equal(t, want, contains(t, both, id), "id %d", id)
	}

	nested, err := bm.And(ctx, both, b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count(t, nested))
	for id := uint64(0); id <= 24; id++ {
		assert.Equal(t, contains(t, both, id), contains(t, nested, id), "id %d", id)
	}
}

func TestCompose_OrXor(t *testing.T) {
	ctx := context.Background()
	bm, _, _ := newTestBitmapist(t)
	require.NoError(t, bm.MarkAttributeMulti(ctx, "a", []uint64{1, 2, 3}, 1))
	require.NoError(t, bm.MarkAttributeMulti(ctx, "b", []uint64{3, 4}, 1))

	or, err := bm.Or(ctx, bm.Attribute("a"), bm.Attribute("b"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), count(t, or))

	xor, err := bm.Xor(ctx, bm.Attribute("a"), bm.Attribute("b"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count(t, xor))
	assert.False(t, contains(t, xor, 3))

	single, err := bm.Or(ctx, bm.Attribute("b"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count(t, single))
}

func TestCompose_NotWidth(t *testing.T) {
	ctx := context.Background()
	bm, _, _ := newTestBitmapist(t)

	tests := []struct {
		ids   []uint64
		width int64
	}{
		{[]uint64{0}, 8},
		{[]uint64{1, 5, 10}, 16},
		{[]uint64{7, 8, 23}, 24},
		{[]uint64{3, 100}, 104},
	}
	for i, tt := range tests {
		name := string(rune('a' + i))
		require.NoError(t, bm.MarkAttributeMulti(ctx, name, tt.ids, 1))
		attr := bm.Attribute(name)

		not, err := bm.Not(ctx, attr)
		require.NoError(t, err)
		assert.Equal(t, "trackist:bitop:Not:"+attr.Key(), not.Key())
		assert.Equal(t, tt.width-int64(len(tt.ids)), count(t, not), "ids %v", tt.ids)
		for _, id := range tt.ids {
			assert.False(t, contains(t, not, id))
		}
	}
}

func TestCompose_DerivedKeyExpires(t *testing.T) {
	ctx := context.Background()
	bm, _, clock := newTestBitmapist(t, WithTempTTL(30*time.Second))
	require.NoError(t, bm.MarkAttributeMulti(ctx, "a", []uint64{1, 2}, 1))
	require.NoError(t, bm.MarkAttributeMulti(ctx, "b", []uint64{2, 3}, 1))

	derived, err := bm.Or(ctx, bm.Attribute("a"), bm.Attribute("b"))
	require.NoError(t, err)
	ttl, err := derived.TTL(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)
	assert.Equal(t, int64(3), count(t, derived))

	clock.Advance(31 * time.Second)

	assert.Zero(t, count(t, derived))
	for id := uint64(0); id < 8; id++ {
		assert.False(t, contains(t, derived, id))
	}
	marked, err := derived.HasEventsMarked(ctx)
	require.NoError(t, err)
	assert.False(t, marked)

	assert.Equal(t, int64(2), count(t, bm.Attribute("a")))
	assert.Equal(t, int64(2), count(t, bm.Attribute("b")))
}

func TestCompose_RepeatRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	bm, _, clock := newTestBitmapist(t)
	require.NoError(t, bm.MarkAttribute(ctx, "a", 1, 1))

	first, err := bm.Not(ctx, bm.Attribute("a"))
	require.NoError(t, err)
	clock.Advance(45 * time.Second)

	second, err := bm.Not(ctx, bm.Attribute("a"))
	require.NoError(t, err)
	assert.Equal(t, first.Key(), second.Key())

	ttl, err := first.TTL(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultTempTTL, ttl)
}

func TestCompose_ExpireFailureDeletesDerivedKey(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	bm := New(st)
	dest := bm.KeySpace().BitOpKey("AND", "a", "b")

	st.On("BitOp", mock.Anything, store.And, dest, []string{"a", "b"}).Return(nil).Once()
	st.On("Expire", mock.Anything, dest, DefaultTempTTL).Return(store.ErrUnavailable).Once()
	st.On("Delete", mock.Anything, []string{dest}).Return(nil).Once()

	h, err := bm.And(ctx, NewHandle(st, "a"), NewHandle(st, "b"))
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	st.AssertExpectations(t)
}

func TestCompose_InvalidOperandCount(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	bm := New(st)
	a, b := NewHandle(st, "a"), NewHandle(st, "b")

	_, err := bm.Compose(ctx, Not, a, b)
	assert.ErrorIs(t, err, ErrInvalidOperandCount)
	var oce *OperandCountError
	require.ErrorAs(t, err, &oce)
	assert.Equal(t, Not, oce.Op)
	assert.Equal(t, 2, oce.Count)

	for _, op := range []Op{And, Or, Xor} {
		_, err = bm.Compose(ctx, op)
		assert.ErrorIs(t, err, ErrInvalidOperandCount, op.String())
	}

	_, err = bm.Eval(ctx, Apply(And, Leaf(a), Apply(Not, Leaf(a), Leaf(b))))
	assert.ErrorIs(t, err, ErrInvalidOperandCount)

	st.AssertNotCalled(t, "BitOp", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "Expire", mock.Anything, mock.Anything, mock.Anything)
}

func TestEval(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	bm, _, _ := newTestBitmapist(t, WithMetricsCollector(metrics))
	lastMonth := refTime.AddDate(0, -1, 0)

	for _, id := range []uint64{1, 2, 3} {
		require.NoError(t, bm.MarkEvent(ctx, "active", id, At(lastMonth)))
	}
	for _, id := range []uint64{2, 3, 4} {
		require.NoError(t, bm.MarkEvent(ctx, "active", id))
	}
	require.NoError(t, bm.MarkAttributeMulti(ctx, "paid_user", []uint64{3, 4}, 1))

	// Active in both months and paid.
	expr := Apply(And,
		Apply(And,
			Leaf(bm.MonthEvent("active", lastMonth)),
			Leaf(bm.MonthEvent("active", refTime)),
		),
		Leaf(bm.Attribute("paid_user")),
	)
	result, err := bm.Eval(ctx, expr)
	require.NoError(t, err)

	assert.Equal(t, int64(1), count(t, result))
	assert.True(t, contains(t, result, 3))
	assert.Equal(t, int64(2), metrics.GetStats().ComposeCount)

	inner, err := bm.And(ctx, bm.MonthEvent("active", lastMonth), bm.MonthEvent("active", refTime))
	require.NoError(t, err)
	direct, err := bm.And(ctx, inner, bm.Attribute("paid_user"))
	require.NoError(t, err)
	assert.Equal(t, direct.Key(), result.Key())

	leaf, err := bm.Eval(ctx, Leaf(bm.Attribute("paid_user")))
	require.NoError(t, err)
	assert.Equal(t, bm.Attribute("paid_user").Key(), leaf.Key())
}

func TestHandle_CountRange(t *testing.T) {
	ctx := context.Background()
	bm, _, _ := newTestBitmapist(t)
	require.NoError(t, bm.MarkAttributeMulti(ctx, "a", []uint64{0, 3, 8, 15, 16, 30}, 1))
	a := bm.Attribute("a")

	n, err := a.CountRange(ctx, Bit(3), Bit(16))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = a.CountRange(ctx, Bit(-8), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = a.CountRange(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}
