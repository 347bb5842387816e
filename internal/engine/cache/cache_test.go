package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestKey(t *testing.T) {
	k := Key("stockfish", "abc123", startFEN, 12)

	assert.True(t, strings.HasPrefix(k, "chessgate:move:stockfish:abc123:12:"))
	assert.Equal(t, k, Key("stockfish", "abc123", startFEN, 12))
	assert.NotEqual(t, k, Key("stockfish", "abc123", startFEN, 13))
	assert.NotEqual(t, k, Key("stockfish", "def456", startFEN, 12))
	assert.NotEqual(t, k, Key("lc0", "abc123", startFEN, 12))
	assert.NotContains(t, k, " ")
	assert.True(t, strings.HasPrefix(Key("stockfish", "", startFEN, 12), "chessgate:move:stockfish:-:12:"))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint(map[string]any{"url": "http://a/move", "timeout": 5})
	assert.Len(t, a, 12)
	assert.Equal(t, a, Fingerprint(map[string]any{"timeout": 5, "url": "http://a/move"}))
	assert.NotEqual(t, a, Fingerprint(map[string]any{"url": "http://b/move", "timeout": 5}))
	assert.Equal(t, "", Fingerprint(map[string]any{"bad": func() {}}))
}

func TestMemoryCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, Key("sf", "v1", startFEN, 10), "e2e4", 0))
	require.NoError(t, c.Set(ctx, Key("sf", "v2", startFEN, 10), "d2d4", 0))
	require.NoError(t, c.Set(ctx, Key("sf2", "v1", startFEN, 10), "g1f3", 0))

	require.NoError(t, c.Invalidate(ctx, "sf"))

	assert.Equal(t, 1, c.Len())
	_, ok, _ := c.Get(ctx, Key("sf2", "v1", startFEN, 10))
	assert.True(t, ok)
}

func TestEscapePattern(t *testing.T) {
	assert.Equal(t, `chessgate:move:sf\*\?:`, escapePattern("chessgate:move:sf*?:"))
	assert.Equal(t, `a\[b\]`, escapePattern("a[b]"))
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", "e2e4", time.Minute))
	require.NoError(t, c.Set(ctx, "b", "d2d4", 0))

	move, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "e2e4", move)

	now = now.Add(time.Minute)
	_, ok, _ = c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	move, ok, _ = c.Get(ctx, "b")
	assert.True(t, ok)
	assert.Equal(t, "d2d4", move)

	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Len())
}
