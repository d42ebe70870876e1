package dedup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jobsheet-engine/internal/store"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newCache(t *testing.T, ttl time.Duration, max int) (*Cache, *clock, store.KV) {
	t.Helper()
	kv, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewCache(kv, Options{TTL: ttl, MaxEntries: max, Now: clk.Now, Logger: zaptest.NewLogger(t)})
	return c, clk, kv
}

func TestLoadEmpty(t *testing.T) {
	c, _, _ := newCache(t, time.Hour, 10)
	seen, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestTTLEviction(t *testing.T) {
	ctx := context.Background()
	c, clk, kv := newCache(t, time.Hour, 10)

	require.NoError(t, c.Save(ctx, map[string]time.Time{"wd:R-1": clk.Now()}))

	clk.Advance(30 * time.Minute)
	seen, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, seen, "wd:R-1")

	clk.Advance(30*time.Minute + time.Second)
	seen, err = c.Load(ctx)
	require.NoError(t, err)
	assert.NotContains(t, seen, "wd:R-1")

	// Load does not rewrite the stored snapshot.
	var snap Snapshot
	ok, err := kv.GetJSON(ctx, store.KeySeenRecords, &snap)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, snap.Seen, "wd:R-1")
}

func TestSaveStampsVersionAndHealth(t *testing.T) {
	ctx := context.Background()
	c, clk, kv := newCache(t, time.Hour, 10)
	require.NoError(t, c.Save(ctx, nil))

	var snap Snapshot
	_, err := kv.GetJSON(ctx, store.KeySeenRecords, &snap)
	require.NoError(t, err)
	assert.Equal(t, CacheVersion, snap.Version)
	assert.True(t, clk.Now().Equal(snap.HealthCheckedAt))
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	c, clk, _ := newCache(t, time.Hour, 10)
	require.NoError(t, c.Save(ctx, map[string]time.Time{"a": clk.Now(), "b": clk.Now()}))
	require.NoError(t, c.Forget(ctx, "a"))

	seen, err := c.Load(ctx)
	require.NoError(t, err)
	assert.NotContains(t, seen, "a")
	assert.Contains(t, seen, "b")
}

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy", func(t *testing.T) {
		c, clk, _ := newCache(t, time.Hour, 2)
		require.NoError(t, c.Save(ctx, map[string]time.Time{"a": clk.Now()}))
		h, err := c.HealthCheck(ctx)
		require.NoError(t, err)
		assert.True(t, h.Healthy)
		assert.Equal(t, 1, h.Entries)
	})

	t.Run("too many", func(t *testing.T) {
		c, clk, _ := newCache(t, time.Hour, 2)
		require.NoError(t, c.Save(ctx, map[string]time.Time{"a": clk.Now(), "b": clk.Now(), "c": clk.Now()}))
		h, err := c.HealthCheck(ctx)
		require.NoError(t, err)
		assert.False(t, h.Healthy)
		assert.Equal(t, "too many entries", h.Reason)
	})

	t.Run("version mismatch is reported but kept", func(t *testing.T) {
		c, clk, kv := newCache(t, time.Hour, 10)
		old := Snapshot{Version: 1, Seen: map[string]time.Time{"a": clk.Now()}}
		require.NoError(t, kv.SetJSON(ctx, store.KeySeenRecords, old))

		h, err := c.HealthCheck(ctx)
		require.NoError(t, err)
		assert.False(t, h.Healthy)
		assert.Equal(t, "version mismatch", h.Reason)

		seen, err := c.Load(ctx)
		require.NoError(t, err)
		assert.Contains(t, seen, "a")
	})
}

func TestLocks(t *testing.T) {
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLocks(10*time.Second, clk.Now)

	require.NoError(t, l.Acquire("li:1"))
	assert.ErrorIs(t, l.Acquire("li:1"), ErrInFlight)
	assert.NoError(t, l.Acquire("li:2"), "other ids are independent")
	assert.True(t, l.Held("li:1"))

	clk.Advance(10 * time.Second)
	assert.False(t, l.Held("li:1"))
	assert.NoError(t, l.Acquire("li:1"), "expired lock can be re-taken")

	l.Release("li:1")
	assert.NoError(t, l.Acquire("li:1"))
	l.Release("never-held")
}
