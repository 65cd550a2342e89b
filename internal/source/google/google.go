// Package google reads free/busy information from Google Calendar.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/dokzlo13/statuslight/internal/status"
)

const (
	DefaultCalendarID = "primary"
	DefaultLookahead  = 5 * time.Minute
)

// Config points at the OAuth client secret and the stored user token.
// The token file is created once by an interactive authorization and
// kept up to date as the token refreshes.
type Config struct {
	CredentialsFile string
	TokenFile       string
	CalendarID      string
	Lookahead       time.Duration
}

// Adapter polls one calendar's free/busy state.
type Adapter struct {
	service    *calendar.Service
	calendarID string
	lookahead  time.Duration
	clock      clock.Clock
}

// New loads credentials and builds the Calendar client.
func New(ctx context.Context, cfg Config, clk clock.Clock) (*Adapter, error) {
	secret, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read google credentials: %w", err)
	}
	oauthCfg, err := googleoauth.ConfigFromJSON(secret, calendar.CalendarFreebusyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse google credentials: %w", err)
	}

	tok, err := readToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	ts := &persistingTokenSource{
		base: oauthCfg.TokenSource(ctx, tok),
		path: cfg.TokenFile,
		last: tok.AccessToken,
	}
	return NewWithOptions(ctx, cfg, clk, option.WithTokenSource(ts))
}

// NewWithOptions builds an adapter on explicit API client options.
func NewWithOptions(ctx context.Context, cfg Config, clk clock.Clock, opts ...option.ClientOption) (*Adapter, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	calID := cfg.CalendarID
	if calID == "" {
		calID = DefaultCalendarID
	}
	lookahead := cfg.Lookahead
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	if clk == nil {
		clk = clock.WallClock
	}

	return &Adapter{
		service:    svc,
		calendarID: calID,
		lookahead:  lookahead,
		clock:      clk,
	}, nil
}

// Source implements source.Adapter.
func (a *Adapter) Source() status.Source { return status.SourceGoogle }

// Poll implements source.Adapter.
func (a *Adapter) Poll(ctx context.Context) status.Status {
	now := a.clock.Now().UTC()
	req := &calendar.FreeBusyRequest{
		TimeMin: now.Format(time.RFC3339),
		TimeMax: now.Add(a.lookahead).Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: a.calendarID}},
	}

	resp, err := a.service.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to query Google free/busy")
		return status.Unknown
	}

	cal, ok := resp.Calendars[a.calendarID]
	if !ok {
		log.Warn().Str("calendar", a.calendarID).Msg("Google free/busy response missing calendar")
		return status.Unknown
	}
	if len(cal.Errors) > 0 {
		log.Warn().Str("calendar", a.calendarID).Str("reason", cal.Errors[0].Reason).Msg("Google free/busy error")
		return status.Unknown
	}
	if len(cal.Busy) > 0 {
		log.Debug().Int("periods", len(cal.Busy)).Msg("Found busy period in Google calendar")
		return status.Busy
	}
	return status.Free
}

func readToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read google token (authorize once and store it at %s): %w", path, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse google token: %w", err)
	}
	return &tok, nil
}

// persistingTokenSource writes refreshed tokens back to disk.
type persistingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.last {
		return tok, nil
	}
	s.last = tok.AccessToken

	data, err := json.Marshal(tok)
	if err != nil {
		return tok, nil
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Failed to persist refreshed Google token")
	}
	return tok, nil
}
