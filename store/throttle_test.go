package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/bitmapist/store"
	"github.com/hupe1980/bitmapist/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottled_PassesThrough(t *testing.T) {
	ctx := context.Background()
	st := store.NewThrottled(memory.New(), 10000, 0)

	require.NoError(t, st.SetBit(ctx, "a", 3, 1))
	require.NoError(t, st.SetBit(ctx, "b", 4, 1))

	bit, err := st.GetBit(ctx, "a", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, bit)

	require.NoError(t, st.BitOp(ctx, store.Or, "dest", "a", "b"))
	n, err := st.BitCount(ctx, "dest")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	p := st.Pipeline(true)
	p.SetBit("c", 1, 1)
	res := p.GetBit("c", 1)
	p.Expire("c", time.Minute)
	failed, err := p.Exec(ctx)
	require.NoError(t, err)
	assert.Zero(t, failed)
	assert.Equal(t, int64(1), res.Val())

	keys, err := st.Keys(ctx, "*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c", "dest"}, keys)
}

func TestThrottled_WaitsForTokens(t *testing.T) {
	st := store.NewThrottled(memory.New(), 0.5, 1)

	require.NoError(t, st.SetBit(context.Background(), "a", 1, 1))

	// The bucket is empty and refills every two seconds.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := st.GetBit(ctx, "a", 1)
	assert.Error(t, err)
}

func TestThrottled_PipelineCappedAtBurst(t *testing.T) {
	st := store.NewThrottled(memory.New(), 0.5, 2)
	ctx := context.Background()

	// Five queued commands only need the full burst, not five tokens.
	p := st.Pipeline(false)
	for i := range 5 {
		p.SetBit("k", int64(i), 1)
	}
	failed, err := p.Exec(ctx)
	require.NoError(t, err)
	assert.Zero(t, failed)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = st.BitCount(short, "k")
	assert.Error(t, err)
}
