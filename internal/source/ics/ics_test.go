package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	ical "github.com/arran4/golang-ical"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/statuslight/internal/db"
	"github.com/dokzlo13/statuslight/internal/kv"
	"github.com/dokzlo13/statuslight/internal/source/httpapi"
	"github.com/dokzlo13/statuslight/internal/status"
)

// Monday 8 January 2024, 10:00 UTC.
var now = time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)

func calendar(events ...string) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n")
	for _, e := range events {
		b.WriteString("BEGIN:VEVENT\r\n")
		for _, line := range strings.Split(strings.TrimSpace(e), "\n") {
			b.WriteString(strings.TrimSpace(line))
			b.WriteString("\r\n")
		}
		b.WriteString("END:VEVENT\r\n")
	}
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func evaluate(t *testing.T, raw string) status.Status {
	t.Helper()
	cal, err := ical.ParseCalendar(strings.NewReader(raw))
	require.NoError(t, err)
	return Evaluate(cal, now, now.Add(5*time.Minute))
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		events []string
		want   status.Status
	}{
		{
			name: "no events",
			want: status.Free,
		},
		{
			name: "confirmed event in window",
			events: []string{`
				UID:1
				SUMMARY:Standup
				DTSTART:20240108T095500Z
				DTEND:20240108T101500Z`},
			want: status.Busy,
		},
		{
			name: "event starting inside lookahead",
			events: []string{`
				UID:1
				DTSTART:20240108T100400Z
				DTEND:20240108T110000Z`},
			want: status.Busy,
		},
		{
			name: "event ended before window",
			events: []string{`
				UID:1
				DTSTART:20240108T090000Z
				DTEND:20240108T100000Z`},
			want: status.Free,
		},
		{
			name: "event after lookahead",
			events: []string{`
				UID:1
				DTSTART:20240108T100600Z
				DTEND:20240108T110000Z`},
			want: status.Free,
		},
		{
			name: "transparent",
			events: []string{`
				UID:1
				TRANSP:TRANSPARENT
				DTSTART:20240108T093000Z
				DTEND:20240108T113000Z`},
			want: status.Free,
		},
		{
			name: "cancelled",
			events: []string{`
				UID:1
				STATUS:CANCELLED
				DTSTART:20240108T093000Z
				DTEND:20240108T113000Z`},
			want: status.Free,
		},
		{
			name: "tentative",
			events: []string{`
				UID:1
				STATUS:TENTATIVE
				DTSTART:20240108T093000Z
				DTEND:20240108T113000Z`},
			want: status.Tentative,
		},
		{
			name: "busy beats tentative",
			events: []string{`
				UID:1
				STATUS:TENTATIVE
				DTSTART:20240108T093000Z
				DTEND:20240108T113000Z`, `
				UID:2
				STATUS:CONFIRMED
				DTSTART:20240108T100000Z
				DURATION:PT30M`},
			want: status.Busy,
		},
		{
			name: "multi-day all-day event",
			events: []string{`
				UID:1
				DTSTART;VALUE=DATE:20240107
				DTEND;VALUE=DATE:20240110`},
			want: status.Busy,
		},
		{
			name: "tzid event",
			events: []string{`
				UID:1
				DTSTART;TZID=Europe/Berlin:20240108T105000
				DTEND;TZID=Europe/Berlin:20240108T113000`},
			want: status.Busy,
		},
		{
			name: "daily recurrence",
			events: []string{`
				UID:1
				DTSTART:20240101T095000Z
				DTEND:20240101T101500Z
				RRULE:FREQ=DAILY`},
			want: status.Busy,
		},
		{
			name: "weekly recurrence on another day",
			events: []string{`
				UID:1
				DTSTART:20240102T095000Z
				DTEND:20240102T101500Z
				RRULE:FREQ=WEEKLY;BYDAY=TU`},
			want: status.Free,
		},
		{
			name: "recurrence ended",
			events: []string{`
				UID:1
				DTSTART:20240101T095000Z
				DTEND:20240101T101500Z
				RRULE:FREQ=DAILY;UNTIL=20240105T000000Z`},
			want: status.Free,
		},
		{
			name: "excluded occurrence",
			events: []string{`
				UID:1
				DTSTART:20240101T095000Z
				DTEND:20240101T101500Z
				RRULE:FREQ=DAILY
				EXDATE:20240108T095000Z`},
			want: status.Free,
		},
		{
			name: "moved occurrence",
			events: []string{`
				UID:1
				DTSTART:20240101T095000Z
				DTEND:20240101T101500Z
				RRULE:FREQ=DAILY`, `
				UID:1
				RECURRENCE-ID:20240108T095000Z
				DTSTART:20240108T150000Z
				DTEND:20240108T160000Z`},
			want: status.Free,
		},
		{
			name: "moved occurrence marked tentative",
			events: []string{`
				UID:1
				DTSTART:20240101T140000Z
				DTEND:20240101T150000Z
				RRULE:FREQ=DAILY`, `
				UID:1
				RECURRENCE-ID:20240108T140000Z
				STATUS:TENTATIVE
				DTSTART:20240108T095500Z
				DTEND:20240108T103000Z`},
			want: status.Tentative,
		},
		{
			name: "unreadable event skipped",
			events: []string{`
				UID:1
				SUMMARY:No start`},
			want: status.Free,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluate(t, calendar(tt.events...)))
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"PT1H30M": 90 * time.Minute,
		"P1D":     24 * time.Hour,
		"P1W":     7 * 24 * time.Hour,
		"PT45S":   45 * time.Second,
		"-PT5M":   0,
	}
	for in, want := range tests {
		got, err := parseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "P", "PT", "1H", "PT1X"} {
		_, err := parseDuration(bad)
		assert.Error(t, err, bad)
	}
}

const busyFeed = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:1\r\nDTSTART:20240108T095500Z\r\nDTEND:20240108T103000Z\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

type feedServer struct {
	*httptest.Server
	hits atomic.Int32
	fail atomic.Bool
}

func newFeedServer(t *testing.T, body string) *feedServer {
	t.Helper()
	fs := &feedServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		if fs.fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(fs.Close)
	return fs
}

func newCache(t *testing.T, clk *testclock.Clock) *kv.SQLiteBucket {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return kv.NewSQLiteBucket(database.DB, "ics", clk)
}

func TestAdapter_CachesFeed(t *testing.T) {
	clk := testclock.NewClock(now)
	fs := newFeedServer(t, busyFeed)
	a := New(Config{URL: fs.URL + "/cal.ics"}, newCache(t, clk), clk, httpapi.WithHTTPClient(fs.Client()))

	assert.Equal(t, status.SourceICS, a.Source())
	assert.Equal(t, status.Busy, a.Poll(context.Background()))
	assert.Equal(t, status.Busy, a.Poll(context.Background()))
	assert.Equal(t, int32(1), fs.hits.Load(), "fresh cache must not refetch")

	clk.Advance(DefaultCacheLifetime + time.Second)
	assert.Equal(t, status.Free, a.Poll(context.Background()), "event is over by now")
	assert.Equal(t, int32(2), fs.hits.Load())
}

func TestAdapter_ReusesParsedCalendarAfterFetch(t *testing.T) {
	clk := testclock.NewClock(now.Add(1500 * time.Millisecond))
	fs := newFeedServer(t, busyFeed)
	a := New(Config{URL: fs.URL}, newCache(t, clk), clk, httpapi.WithHTTPClient(fs.Client()))

	require.Equal(t, status.Busy, a.Poll(context.Background()))
	first := a.parsed
	require.NotNil(t, first)

	require.Equal(t, status.Busy, a.Poll(context.Background()))
	assert.Same(t, first, a.parsed, "cached feed must not be parsed again")
	assert.Equal(t, int32(1), fs.hits.Load())
}

func TestAdapter_StaleCacheOnFetchFailure(t *testing.T) {
	clk := testclock.NewClock(now)
	fs := newFeedServer(t, busyFeed)
	a := New(Config{URL: fs.URL, CacheLifetime: time.Minute, Lookahead: time.Minute}, newCache(t, clk), clk,
		httpapi.WithHTTPClient(fs.Client()))

	require.Equal(t, status.Busy, a.Poll(context.Background()))

	fs.fail.Store(true)
	clk.Advance(2 * time.Minute)
	assert.Equal(t, status.Busy, a.Poll(context.Background()))
	assert.Equal(t, int32(2), fs.hits.Load())
}

func TestAdapter_NoCacheAndFetchFails(t *testing.T) {
	clk := testclock.NewClock(now)
	fs := newFeedServer(t, busyFeed)
	fs.fail.Store(true)
	a := New(Config{URL: fs.URL}, newCache(t, clk), clk, httpapi.WithHTTPClient(fs.Client()))

	assert.Equal(t, status.Unknown, a.Poll(context.Background()))
}

func TestAdapter_UnparsableFeed(t *testing.T) {
	clk := testclock.NewClock(now)
	fs := newFeedServer(t, "not a calendar")
	a := New(Config{URL: fs.URL}, newCache(t, clk), clk, httpapi.WithHTTPClient(fs.Client()))

	assert.Equal(t, status.Unknown, a.Poll(context.Background()))
}

func TestNew_WebcalScheme(t *testing.T) {
	a := New(Config{URL: "webcal://example.com/cal.ics"}, nil, nil)
	assert.Equal(t, "https://example.com/cal.ics", a.url)
	assert.Equal(t, DefaultLookahead, a.lookahead)
}
