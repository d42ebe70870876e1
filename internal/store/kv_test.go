package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string            `json:"name"`
	Items map[string]string `json:"items"`
}

func openSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func openRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := OpenRedis(RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func exerciseKV(t *testing.T, kv KV) {
	ctx := context.Background()

	var got doc
	found, err := kv.GetJSON(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	in := doc{Name: "settings", Items: map[string]string{"a": "1"}}
	require.NoError(t, kv.SetJSON(ctx, KeySettings, in))

	found, err = kv.GetJSON(ctx, KeySettings, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, in, got)

	in.Items["b"] = "2"
	require.NoError(t, kv.SetJSON(ctx, KeySettings, in))
	got = doc{}
	_, err = kv.GetJSON(ctx, KeySettings, &got)
	require.NoError(t, err)
	assert.Equal(t, "2", got.Items["b"])

	require.NoError(t, kv.Delete(ctx, KeySettings))
	found, err = kv.GetJSON(ctx, KeySettings, &got)
	require.NoError(t, err)
	assert.False(t, found)

	// deleting twice is fine
	require.NoError(t, kv.Delete(ctx, KeySettings))
}

func TestSQLiteKV(t *testing.T) {
	exerciseKV(t, openSQLite(t))
}

func TestRedisKV(t *testing.T) {
	r, _ := openRedis(t)
	exerciseKV(t, r)
}

func TestRedisKVUsesPrefix(t *testing.T) {
	r, mr := openRedis(t)
	require.NoError(t, r.SetJSON(context.Background(), KeyRecentEntries, []string{"x"}))
	assert.True(t, mr.Exists("jobsheet:"+KeyRecentEntries))
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, Migrate(db.Pool))

	var v int
	require.NoError(t, db.Pool.QueryRow(`PRAGMA user_version;`).Scan(&v))
	assert.Equal(t, 1, v)
}

func TestSQLiteStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.SetJSON(context.Background(), KeySeenRecords, map[string]int{"li:1": 1}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	var got map[string]int
	found, err := db.GetJSON(context.Background(), KeySeenRecords, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, got["li:1"])
}
