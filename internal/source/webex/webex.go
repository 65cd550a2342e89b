// Package webex reads a person's presence from the Webex people API.
package webex

import (
	"context"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/statuslight/internal/source/httpapi"
	"github.com/dokzlo13/statuslight/internal/status"
)

// DefaultBaseURL is the public Webex REST API root.
const DefaultBaseURL = "https://webexapis.com/v1"

// Config holds Webex credentials.
type Config struct {
	BotToken string
	PersonID string
	BaseURL  string
}

// Adapter polls one person's status.
type Adapter struct {
	client   *httpapi.Client
	personID string
}

// New creates a Webex adapter.
func New(cfg Config, opts ...httpapi.Option) *Adapter {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	opts = append([]httpapi.Option{httpapi.WithBearerToken(cfg.BotToken)}, opts...)
	return &Adapter{
		client:   httpapi.New(base, opts...),
		personID: cfg.PersonID,
	}
}

// Source implements source.Adapter.
func (a *Adapter) Source() status.Source { return status.SourceWebex }

type person struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Poll implements source.Adapter.
func (a *Adapter) Poll(ctx context.Context) status.Status {
	var p person
	if err := a.client.GetJSON(ctx, "people/"+url.PathEscape(a.personID), nil, &p); err != nil {
		log.Warn().Err(err).Msg("Failed to get Webex person status")
		return status.Unknown
	}

	st, ok := status.ParseStatus(p.Status)
	if !ok {
		log.Warn().Str("status", p.Status).Msg("Unrecognised Webex status")
		return status.Unknown
	}
	return st
}
