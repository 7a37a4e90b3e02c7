package bitmapist

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return NewLogger(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// lastRecord decodes the most recent JSON log line.
func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &rec))
	return rec
}

func TestLogger_AttributeMark(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	bm, _, _ := newTestBitmapist(t, WithLogger(newBufferLogger(&buf)))

	require.NoError(t, bm.MarkAttribute(ctx, "paid_user", 10, 1))

	rec := lastRecord(t, &buf)
	assert.Equal(t, "attribute mark completed", rec["msg"])
	assert.Equal(t, "paid_user", rec["attribute"])
	assert.Equal(t, bm.Attribute("paid_user").Key(), rec["key"])
	assert.EqualValues(t, 10, rec["id"])
	assert.EqualValues(t, 1, rec["value"])
	assert.NotContains(t, rec, "event")
}

func TestLogger_ComposeCarriesDerivedKey(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	bm, _, _ := newTestBitmapist(t, WithLogger(newBufferLogger(&buf)))
	require.NoError(t, bm.MarkAttribute(ctx, "a", 1, 1))

	derived, err := bm.Not(ctx, bm.Attribute("a"))
	require.NoError(t, err)

	rec := lastRecord(t, &buf)
	assert.Equal(t, "bit operation completed", rec["msg"])
	assert.Equal(t, derived.Key(), rec["key"])
	assert.Equal(t, "NOT", rec["op"])
}

func TestLogger_WithKey(t *testing.T) {
	var buf bytes.Buffer
	newBufferLogger(&buf).WithKey("trackist:at:x").Info("hello")

	rec := lastRecord(t, &buf)
	assert.Equal(t, "trackist:at:x", rec["key"])
	assert.Equal(t, "hello", rec["msg"])
}
