// Package slack derives a presence status from a Slack user's custom
// status, huddle state and presence.
package slack

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/statuslight/internal/source/httpapi"
	"github.com/dokzlo13/statuslight/internal/status"
)

// DefaultBaseURL is the Slack Web API root.
const DefaultBaseURL = "https://slack.com/api"

// CustomStatus maps custom status prefixes ("<emoji> <text>", compared
// case-insensitively) to a status.
type CustomStatus struct {
	Prefixes []string
	Status   status.Status
}

// Config holds Slack credentials and custom status rules.
type Config struct {
	BotToken string
	UserID   string
	BaseURL  string

	// Rules are checked in order and the last match wins, so the most
	// urgent rule goes last.
	Rules []CustomStatus
}

// DefaultRules returns the stock custom status rules, least urgent first.
func DefaultRules() []CustomStatus {
	return []CustomStatus{
		{Prefixes: []string{":no_entry: out of office", ":airplane:", ":palm_tree: vacationing"}, Status: status.OutOfOffice},
		{Prefixes: []string{":spiral_calendar_pad: in a meeting"}, Status: status.Meeting},
		{Prefixes: []string{":no_entry_sign: do not disturb"}, Status: status.DoNotDisturb},
	}
}

// Adapter polls one Slack user.
type Adapter struct {
	client *httpapi.Client
	userID string
	rules  []CustomStatus
}

// New creates a Slack adapter.
func New(cfg Config, opts ...httpapi.Option) *Adapter {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	opts = append([]httpapi.Option{httpapi.WithBearerToken(cfg.BotToken)}, opts...)

	rules := make([]CustomStatus, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		folded := make([]string, 0, len(r.Prefixes))
		for _, p := range r.Prefixes {
			folded = append(folded, strings.ToLower(p))
		}
		rules = append(rules, CustomStatus{Prefixes: folded, Status: r.Status})
	}

	return &Adapter{
		client: httpapi.New(base, opts...),
		userID: cfg.UserID,
		rules:  rules,
	}
}

// Source implements source.Adapter.
func (a *Adapter) Source() status.Source { return status.SourceSlack }

type response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type profile struct {
	StatusText  string `json:"status_text"`
	StatusEmoji string `json:"status_emoji"`
	HuddleState string `json:"huddle_state"`
}

type userInfoResponse struct {
	response
	User struct {
		Profile *profile `json:"profile"`
	} `json:"user"`
}

type presenceResponse struct {
	response
	Presence string `json:"presence"`
}

// Poll implements source.Adapter.
func (a *Adapter) Poll(ctx context.Context) status.Status {
	st, err := a.customStatus(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to get Slack user info")
		return status.Unknown
	}
	if st != status.Unknown {
		return st
	}

	var pr presenceResponse
	if err := a.call(ctx, "users.getPresence", &pr, &pr.response); err != nil {
		log.Warn().Err(err).Msg("Failed to get Slack user presence")
		return status.Unknown
	}

	switch pr.Presence {
	case "active":
		return status.Active
	case "away":
		return status.Inactive
	default:
		log.Warn().Str("presence", pr.Presence).Msg("Unrecognised Slack presence")
		return status.Unknown
	}
}

func (a *Adapter) customStatus(ctx context.Context) (status.Status, error) {
	var info userInfoResponse
	if err := a.call(ctx, "users.info", &info, &info.response); err != nil {
		return status.Unknown, err
	}
	p := info.User.Profile
	if p == nil {
		return status.Unknown, nil
	}

	st := matchRules(a.rules, strings.ToLower(p.StatusEmoji+" "+p.StatusText))

	if p.HuddleState == "in_a_huddle" || p.StatusEmoji == ":slack_call:" {
		st = status.Call
	}

	log.Debug().
		Str("emoji", p.StatusEmoji).
		Str("text", p.StatusText).
		Str("huddle", p.HuddleState).
		Str("status", st.String()).
		Msg("Parsed Slack custom status")
	return st, nil
}

func matchRules(rules []CustomStatus, custom string) status.Status {
	st := status.Unknown
	for _, r := range rules {
		for _, prefix := range r.Prefixes {
			if strings.HasPrefix(custom, prefix) {
				st = r.Status
				break
			}
		}
	}
	return st
}

func (a *Adapter) call(ctx context.Context, method string, out any, resp *response) error {
	if err := a.client.GetJSON(ctx, method, url.Values{"user": {a.userID}}, out); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("slack %s: %s", method, resp.Error)
	}
	return nil
}
