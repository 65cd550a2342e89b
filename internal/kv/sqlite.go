// Package kv is a small SQLite-backed cache with freshness deadlines.
package kv

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
)

// Entry is a stored value with its bookkeeping.
type Entry struct {
	Value     []byte
	UpdatedAt time.Time
	ExpiresAt time.Time // zero when the entry never goes stale
}

// Fresh reports whether the entry is still within its TTL at now.
func (e Entry) Fresh(now time.Time) bool {
	return e.ExpiresAt.IsZero() || now.Before(e.ExpiresAt)
}

// SQLiteBucket is a persistent bucket backed by SQLite.
type SQLiteBucket struct {
	db    *sql.DB
	name  string
	clock clock.Clock
}

// NewSQLiteBucket creates a new SQLite-backed bucket.
func NewSQLiteBucket(db *sql.DB, name string, clk clock.Clock) *SQLiteBucket {
	if clk == nil {
		clk = clock.WallClock
	}
	return &SQLiteBucket{
		db:    db,
		name:  name,
		clock: clk,
	}
}

// Name returns the bucket name.
func (b *SQLiteBucket) Name() string {
	return b.name
}

// Store saves value under key. A positive ttl marks when it goes stale.
func (b *SQLiteBucket) Store(key string, value []byte, ttl time.Duration) error {
	now := b.clock.Now().UTC()

	var expiresAt *int64
	if ttl > 0 {
		exp := now.Add(ttl).Unix()
		expiresAt = &exp
	}

	_, err := b.db.Exec(`
		INSERT INTO kv_store (bucket, key, value, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bucket, key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, b.name, key, value, expiresAt, now.Unix(), now.Unix())

	if err != nil {
		return fmt.Errorf("failed to store value: %w", err)
	}

	return nil
}

// Get retrieves an entry by key, stale or not. found is false when the key
// was never stored.
func (b *SQLiteBucket) Get(key string) (entry Entry, found bool, err error) {
	var value []byte
	var updatedAt int64
	var expiresAt sql.NullInt64

	err = b.db.QueryRow(`
		SELECT value, updated_at, expires_at FROM kv_store
		WHERE bucket = ? AND key = ?
	`, b.name, key).Scan(&value, &updatedAt, &expiresAt)

	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get value: %w", err)
	}

	entry = Entry{Value: value, UpdatedAt: time.Unix(updatedAt, 0).UTC()}
	if expiresAt.Valid {
		entry.ExpiresAt = time.Unix(expiresAt.Int64, 0).UTC()
	}
	return entry, true, nil
}

// Delete removes a key from the bucket.
func (b *SQLiteBucket) Delete(key string) (bool, error) {
	result, err := b.db.Exec(`
		DELETE FROM kv_store WHERE bucket = ? AND key = ?
	`, b.name, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete key: %w", err)
	}

	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// CleanupExpired removes entries that went stale before cutoff.
func CleanupExpired(db *sql.DB, cutoff time.Time) (int64, error) {
	result, err := db.Exec(`
		DELETE FROM kv_store WHERE expires_at IS NOT NULL AND expires_at <= ?
	`, cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired entries: %w", err)
	}

	return result.RowsAffected()
}
