// Package ics derives a calendar status from an iCalendar feed.
//
// The feed is downloaded at most once per cache lifetime and stored in the
// SQLite cache. When a refresh fails the stale copy is used.
package ics

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/juju/clock"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/statuslight/internal/kv"
	"github.com/dokzlo13/statuslight/internal/source/httpapi"
	"github.com/dokzlo13/statuslight/internal/status"
)

const (
	DefaultCacheLifetime = 30 * time.Minute
	DefaultLookahead     = 5 * time.Minute

	maxFeedSize = 16 << 20
)

// Cache stores downloaded feeds. *kv.SQLiteBucket implements it.
type Cache interface {
	Get(key string) (kv.Entry, bool, error)
	Store(key string, value []byte, ttl time.Duration) error
}

// Config describes the feed.
type Config struct {
	URL           string
	CacheLifetime time.Duration
	Lookahead     time.Duration
}

// Adapter polls one ICS feed.
type Adapter struct {
	url       string
	client    *httpapi.Client
	cache     Cache
	ttl       time.Duration
	lookahead time.Duration
	clock     clock.Clock

	mu       sync.Mutex
	parsed   *ical.Calendar
	parsedAt time.Time
}

// New creates an ICS adapter.
func New(cfg Config, cache Cache, clk clock.Clock, opts ...httpapi.Option) *Adapter {
	u := cfg.URL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}
	ttl := cfg.CacheLifetime
	if ttl <= 0 {
		ttl = DefaultCacheLifetime
	}
	lookahead := cfg.Lookahead
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	if clk == nil {
		clk = clock.WallClock
	}

	return &Adapter{
		url:       u,
		client:    httpapi.New(u, opts...),
		cache:     cache,
		ttl:       ttl,
		lookahead: lookahead,
		clock:     clk,
	}
}

// Source implements source.Adapter.
func (a *Adapter) Source() status.Source { return status.SourceICS }

// Poll implements source.Adapter.
func (a *Adapter) Poll(ctx context.Context) status.Status {
	cal, err := a.calendar(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("ICS calendar unavailable")
		return status.Unknown
	}

	now := a.clock.Now()
	return Evaluate(cal, now, now.Add(a.lookahead))
}

func (a *Adapter) calendar(ctx context.Context) (*ical.Calendar, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	entry, found, err := a.cache.Get(a.url)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read ICS cache")
		found = false
	}

	if !found || !entry.Fresh(now) {
		body, fetchErr := a.client.GetBytes(ctx, "", maxFeedSize)
		switch {
		case fetchErr == nil:
			if err := a.cache.Store(a.url, body, a.ttl); err != nil {
				log.Warn().Err(err).Msg("Failed to cache ICS feed")
			}
			// Whole seconds, as the cache stores them.
			entry = kv.Entry{Value: body, UpdatedAt: now.UTC().Truncate(time.Second)}
			found = true
			log.Debug().Int("bytes", len(body)).Msg("Fetched ICS feed")
		case found:
			log.Warn().Err(fetchErr).Time("cached_at", entry.UpdatedAt).Msg("Using stale ICS cache due to fetch failure")
		default:
			return nil, fetchErr
		}
	}

	if a.parsed != nil && a.parsedAt.Equal(entry.UpdatedAt) {
		return a.parsed, nil
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(entry.Value))
	if err != nil {
		return nil, err
	}
	a.parsed = cal
	a.parsedAt = entry.UpdatedAt
	return cal, nil
}
