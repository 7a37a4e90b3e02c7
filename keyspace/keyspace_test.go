package keyspace

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodTokens(t *testing.T) {
	ts := time.Date(2012, time.October, 23, 13, 5, 0, 0, time.UTC)

	tests := []struct {
		g    Granularity
		want string
	}{
		{Month, "2012-10"},
		{Week, "W2012-43"},
		{Day, "2012-10-23"},
		{Hour, "2012-10-23-13"},
	}
	for _, tt := range tests {
		t.Run(tt.g.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, PeriodOf(tt.g, ts).Token())
		})
	}
}

func TestPeriodOf_ISOWeekYear(t *testing.T) {
	// 2021-01-01 belongs to ISO week 53 of 2020.
	ts := time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "W2020-53", PeriodOf(Week, ts).Token())
	assert.Equal(t, "2021-1", PeriodOf(Month, ts).Token())

	// 2024-12-30 belongs to ISO week 1 of 2025.
	ts = time.Date(2024, time.December, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "W2025-1", PeriodOf(Week, ts).Token())
}

func TestKeys(t *testing.T) {
	ks := New("", "")
	ts := time.Date(2012, time.October, 23, 13, 0, 0, 0, time.UTC)

	assert.Equal(t, "trackist:ev:active:2012-10", ks.EventKey("active", PeriodOf(Month, ts)))
	assert.Equal(t, "trackist:at:paid_user", ks.AttributeKey("paid_user"))
	assert.Equal(t, "trackist:bitop:AND:k1-k2", ks.BitOpKey("AND", "k1", "k2"))
	assert.Equal(t, "trackist:*", ks.AllPattern())
	assert.Equal(t, "trackist:ev:*", ks.EventPattern())
	assert.Equal(t, "trackist:at:*", ks.AttributePattern())
	assert.Equal(t, "trackist:bitop:*", ks.BitOpPattern())

	custom := New("app", "|")
	assert.Equal(t, "app|ev|x|W2012-43", custom.EventKey("x", PeriodOf(Week, ts)))
}

func TestNames(t *testing.T) {
	ks := New("trackist", ":")
	keys := []string{
		"trackist:ev:active:W2012-43",
		"trackist:ev:active:2012-10",
		"trackist:ev:active:W2012-44",
		"trackist:ev:sign:up:W2012-43",
		"trackist:ev:month_only:2012-10",
		"trackist:at:paid_user",
		"trackist:at:beta",
	}

	if diff := cmp.Diff([]string{"active", "sign:up"}, ks.EventNames(keys)); diff != "" {
		t.Errorf("EventNames() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"paid_user", "beta"}, ks.AttributeNames(keys)); diff != "" {
		t.Errorf("AttributeNames() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseGranularity(t *testing.T) {
	for _, g := range Granularities {
		got, err := ParseGranularity(g.String())
		require.NoError(t, err)
		assert.Equal(t, g, got)
	}
	_, err := ParseGranularity("year")
	assert.Error(t, err)
}
