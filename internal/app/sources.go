package app

import (
	"context"
	"fmt"

	"github.com/juju/clock"

	"github.com/dokzlo13/statuslight/internal/config"
	"github.com/dokzlo13/statuslight/internal/source"
	"github.com/dokzlo13/statuslight/internal/source/google"
	"github.com/dokzlo13/statuslight/internal/source/ics"
	"github.com/dokzlo13/statuslight/internal/source/office365"
	"github.com/dokzlo13/statuslight/internal/source/slack"
	"github.com/dokzlo13/statuslight/internal/source/webex"
	"github.com/dokzlo13/statuslight/internal/status"
)

// buildAdapters creates one adapter per enabled source, in config order.
func buildAdapters(ctx context.Context, cfg *config.Config, cache ics.Cache, clk clock.Clock) ([]source.Adapter, error) {
	adapters := make([]source.Adapter, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		switch src {
		case status.SourceWebex:
			adapters = append(adapters, webex.New(webex.Config{
				BotToken: cfg.Webex.BotToken,
				PersonID: cfg.Webex.PersonID,
			}))
		case status.SourceSlack:
			adapters = append(adapters, slack.New(slack.Config{
				BotToken: cfg.Slack.BotToken,
				UserID:   cfg.Slack.UserID,
				Rules:    cfg.SlackRules(),
			}))
		case status.SourceOffice365:
			adapters = append(adapters, office365.New(ctx, office365.Config{
				TenantID:     cfg.Office365.TenantID,
				ClientID:     cfg.Office365.ClientID,
				ClientSecret: cfg.Office365.ClientSecret,
				User:         cfg.Office365.User,
				Lookahead:    cfg.Office365.Lookahead.Duration(),
			}, clk))
		case status.SourceGoogle:
			a, err := google.New(ctx, google.Config{
				CredentialsFile: cfg.Google.CredentialsFile,
				TokenFile:       cfg.Google.TokenFile,
				CalendarID:      cfg.Google.CalendarID,
				Lookahead:       cfg.Google.Lookahead.Duration(),
			}, clk)
			if err != nil {
				return nil, fmt.Errorf("failed to create google source: %w", err)
			}
			adapters = append(adapters, a)
		case status.SourceICS:
			adapters = append(adapters, ics.New(ics.Config{
				URL:           cfg.ICS.URL,
				CacheLifetime: cfg.ICS.CacheTTL.Duration(),
				Lookahead:     cfg.ICS.Lookahead.Duration(),
			}, cache, clk))
		default:
			return nil, fmt.Errorf("unsupported source %q", src)
		}
	}
	return adapters, nil
}
