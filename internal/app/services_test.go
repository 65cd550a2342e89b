package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/statuslight/internal/config"
	"github.com/dokzlo13/statuslight/internal/status"
)

func icsFeed(start, end time.Time) string {
	const layout = "20060102T150405Z"
	return "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:standup\r\nSUMMARY:Standup\r\n" +
		"DTSTART:" + start.UTC().Format(layout) + "\r\n" +
		"DTEND:" + end.UTC().Format(layout) + "\r\n" +
		"END:VEVENT\r\nEND:VCALENDAR\r\n"
}

func testConfig(t *testing.T, feedURL string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(fmt.Sprintf(`
database:
  path: %s
sources: [ics]
ics:
  url: %s
`, filepath.Join(t.TempDir(), "statuslight.sqlite"), feedURL)))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServices_RunsStatusLoop(t *testing.T) {
	now := time.Now()
	feed := icsFeed(now.Add(-time.Hour), now.Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/calendar.ics")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := NewServices(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, []status.Source{status.SourceICS}, svc.Poller.Sources())

	fatal := make(chan error, 1)
	require.NoError(t, svc.Start(ctx, func(err error) { fatal <- err }))

	require.Eventually(t, func() bool {
		return svc.Controller.State().LastStatus == status.Busy
	}, 5*time.Second, 10*time.Millisecond)

	rep := svc.Controller.Report()
	assert.Equal(t, status.SourceICS, rep.State.LastSource)
	assert.Equal(t, status.BandScheduled, rep.Band)
	assert.True(t, rep.State.LastActuationSucceeded)

	entry, found, err := svc.Cache.Get(srv.URL + "/calendar.ics")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, feed, string(entry.Value))

	cancel()
	require.NoError(t, svc.Stop())

	select {
	case err := <-fatal:
		t.Fatalf("unexpected fatal error: %v", err)
	default:
	}

	var types []string
	for _, e := range svc.Events.Recent() {
		types = append(types, string(e.Type))
	}
	assert.Contains(t, types, "status_changed")
	assert.Contains(t, types, "shutdown")
}

func TestNewServices_RejectsBadTarget(t *testing.T) {
	cfg := testConfig(t, "https://example.com/cal.ics")
	cfg.Target.Device = `{"type":"lamp"}`

	_, err := NewServices(context.Background(), cfg)
	assert.ErrorContains(t, err, "invalid target device")
}
