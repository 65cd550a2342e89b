// Package office365 reads free/busy availability from Microsoft Graph
// using an application (client credentials) grant.
package office365

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/dokzlo13/statuslight/internal/source/httpapi"
	"github.com/dokzlo13/statuslight/internal/status"
)

const (
	DefaultGraphURL     = "https://graph.microsoft.com/v1.0"
	DefaultAuthorityURL = "https://login.microsoftonline.com"
	DefaultLookahead    = 5 * time.Minute

	graphScope = "https://graph.microsoft.com/.default"
)

// Config holds the Azure AD application and the mailbox to query.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	User         string // UPN or object id
	Lookahead    time.Duration

	GraphURL     string
	AuthorityURL string
}

// Adapter polls one mailbox's schedule.
type Adapter struct {
	client    *httpapi.Client
	user      string
	lookahead time.Duration
	clock     clock.Clock
}

// New creates an Office 365 adapter. Tokens are fetched lazily and
// refreshed by the oauth2 client.
func New(ctx context.Context, cfg Config, clk clock.Clock) *Adapter {
	graph := cfg.GraphURL
	if graph == "" {
		graph = DefaultGraphURL
	}
	authority := cfg.AuthorityURL
	if authority == "" {
		authority = DefaultAuthorityURL
	}
	lookahead := cfg.Lookahead
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	if clk == nil {
		clk = clock.WallClock
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", authority, url.PathEscape(cfg.TenantID)),
		Scopes:       []string{graphScope},
	}

	return &Adapter{
		client:    httpapi.New(graph, httpapi.WithHTTPClient(cc.Client(ctx))),
		user:      cfg.User,
		lookahead: lookahead,
		clock:     clk,
	}
}

// Source implements source.Adapter.
func (a *Adapter) Source() status.Source { return status.SourceOffice365 }

type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type scheduleRequest struct {
	Schedules                []string         `json:"schedules"`
	StartTime                dateTimeTimeZone `json:"startTime"`
	EndTime                  dateTimeTimeZone `json:"endTime"`
	AvailabilityViewInterval int              `json:"availabilityViewInterval"`
}

type scheduleResponse struct {
	Value []struct {
		ScheduleID       string `json:"scheduleId"`
		AvailabilityView string `json:"availabilityView"`
		Error            *struct {
			Message      string `json:"message"`
			ResponseCode string `json:"responseCode"`
		} `json:"error"`
	} `json:"value"`
}

// Poll implements source.Adapter.
func (a *Adapter) Poll(ctx context.Context) status.Status {
	now := a.clock.Now().UTC()
	interval := int(a.lookahead / time.Minute)
	if interval < 5 {
		interval = 5
	}

	req := scheduleRequest{
		Schedules:                []string{a.user},
		StartTime:                dateTimeTimeZone{DateTime: now.Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
		EndTime:                  dateTimeTimeZone{DateTime: now.Add(a.lookahead).Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
		AvailabilityViewInterval: interval,
	}

	var resp scheduleResponse
	path := "users/" + url.PathEscape(a.user) + "/calendar/getSchedule"
	if err := a.client.PostJSON(ctx, path, req, &resp); err != nil {
		log.Warn().Err(err).Msg("Failed to get Office 365 schedule")
		return status.Unknown
	}

	if len(resp.Value) == 0 {
		log.Warn().Str("user", a.user).Msg("Office 365 returned no schedule")
		return status.Unknown
	}
	sched := resp.Value[0]
	if sched.Error != nil {
		log.Warn().Str("user", a.user).Str("error", sched.Error.Message).Msg("Office 365 schedule error")
		return status.Unknown
	}
	if sched.AvailabilityView == "" {
		log.Warn().Str("user", a.user).Msg("Office 365 returned an empty availability view")
		return status.Unknown
	}

	log.Debug().Str("view", sched.AvailabilityView).Msg("Got Office 365 availability view")
	return fromAvailability(sched.AvailabilityView[0])
}

// fromAvailability maps one availabilityView digit to a status.
func fromAvailability(c byte) status.Status {
	switch c {
	case '0':
		return status.Free
	case '1':
		return status.Tentative
	case '2':
		return status.Busy
	case '3':
		return status.OutOfOffice
	case '4':
		return status.WorkingElsewhere
	default:
		return status.Unknown
	}
}
