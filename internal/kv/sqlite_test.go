package kv

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/statuslight/internal/db"
)

func openBucket(t *testing.T) (*SQLiteBucket, *testclock.Clock, *db.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	clk := testclock.NewClock(time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC))
	return NewSQLiteBucket(database.DB, "ics", clk), clk, database
}

func TestSQLiteBucket_StoreGet(t *testing.T) {
	b, clk, _ := openBucket(t)

	_, found, err := b.Get("feed")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Store("feed", []byte("BEGIN:VCALENDAR"), 30*time.Minute))

	e, found, err := b.Get("feed")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("BEGIN:VCALENDAR"), e.Value)
	assert.True(t, e.Fresh(clk.Now()))

	clk.Advance(31 * time.Minute)
	e, found, err = b.Get("feed")
	require.NoError(t, err)
	require.True(t, found, "stale entries stay readable")
	assert.False(t, e.Fresh(clk.Now()))
}

func TestSQLiteBucket_Overwrite(t *testing.T) {
	b, clk, _ := openBucket(t)

	require.NoError(t, b.Store("k", []byte("one"), time.Minute))
	clk.Advance(2 * time.Minute)
	require.NoError(t, b.Store("k", []byte("two"), time.Minute))

	e, _, err := b.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "two", string(e.Value))
	assert.True(t, e.Fresh(clk.Now()))
}

func TestSQLiteBucket_NoTTL(t *testing.T) {
	b, clk, _ := openBucket(t)

	require.NoError(t, b.Store("k", []byte("v"), 0))
	clk.Advance(24 * time.Hour)

	e, _, err := b.Get("k")
	require.NoError(t, err)
	assert.True(t, e.Fresh(clk.Now()))
	assert.True(t, e.ExpiresAt.IsZero())
}

func TestSQLiteBucket_BucketsAreIsolated(t *testing.T) {
	b, clk, database := openBucket(t)
	other := NewSQLiteBucket(database.DB, "other", clk)

	require.NoError(t, b.Store("k", []byte("v"), 0))
	_, found, err := other.Get("k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteAndCleanup(t *testing.T) {
	b, clk, database := openBucket(t)

	require.NoError(t, b.Store("a", []byte("1"), time.Minute))
	require.NoError(t, b.Store("b", []byte("2"), time.Hour))

	deleted, err := b.Delete("a")
	require.NoError(t, err)
	assert.True(t, deleted)

	n, err := CleanupExpired(database.DB, clk.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, found, err := b.Get("b")
	require.NoError(t, err)
	assert.False(t, found)
}
