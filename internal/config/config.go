// Package config loads the statuslight YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/statuslight/internal/actuation"
	"github.com/dokzlo13/statuslight/internal/schedule"
	"github.com/dokzlo13/statuslight/internal/source/slack"
	"github.com/dokzlo13/statuslight/internal/status"
	"github.com/dokzlo13/statuslight/internal/target"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Poll interval bounds.
const (
	MinPollInterval = 5 * time.Second
	MaxPollInterval = 60 * time.Second
)

type Config struct {
	Log             LogConfig         `yaml:"log"`
	Database        DatabaseConfig    `yaml:"database"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // bound for the final turn-off and service stops
	PollInterval    Duration          `yaml:"poll_interval"`
	SourceTimeout   Duration          `yaml:"source_timeout"` // per-source poll timeout
	Timezone        string            `yaml:"timezone"`       // IANA name; empty means the host zone

	Sources     []status.Source   `yaml:"sources"`
	ActiveHours ActiveHoursConfig `yaml:"active_hours"`
	Bands       BandsConfig       `yaml:"bands"`
	Colors      ColorsConfig      `yaml:"colors"`
	Target      TargetConfig      `yaml:"target"`

	Webex     WebexConfig     `yaml:"webex"`
	Slack     SlackConfig     `yaml:"slack"`
	Office365 Office365Config `yaml:"office365"`
	Google    GoogleConfig    `yaml:"google"`
	ICS       ICSConfig       `yaml:"ics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type EventBusConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

type ActiveHoursConfig struct {
	Days  []string           `yaml:"days"`
	Start schedule.TimeOfDay `yaml:"start"`
	End   schedule.TimeOfDay `yaml:"end"`
}

type BandsConfig struct {
	Off       []status.Status `yaml:"off"`
	Available []status.Status `yaml:"available"`
	Scheduled []status.Status `yaml:"scheduled"`
	Busy      []status.Status `yaml:"busy"`
}

type ColorsConfig struct {
	Available  string `yaml:"available"`
	Scheduled  string `yaml:"scheduled"`
	Busy       string `yaml:"busy"`
	Brightness *int   `yaml:"brightness"` // percent
}

type TargetConfig struct {
	// Device is a JSON descriptor, e.g. {"type":"hue","bridge":"...","username":"...","light_id":1}.
	Device string `yaml:"device"`
}

type WebexConfig struct {
	BotToken string `yaml:"bot_token"`
	PersonID string `yaml:"person_id"`
}

type SlackConfig struct {
	BotToken     string              `yaml:"bot_token"`
	UserID       string              `yaml:"user_id"`
	CustomStatus []CustomStatusRule `yaml:"custom_status"`
}

// CustomStatusRule maps Slack custom status prefixes to a status. Rules
// are checked in order and the last match wins.
type CustomStatusRule struct {
	Prefixes []string      `yaml:"prefixes"`
	Status   status.Status `yaml:"status"`
}

type Office365Config struct {
	TenantID     string   `yaml:"tenant_id"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	User         string   `yaml:"user"`
	Lookahead    Duration `yaml:"lookahead"`
}

type GoogleConfig struct {
	CredentialsFile string   `yaml:"credentials_file"`
	TokenFile       string   `yaml:"token_file"`
	CalendarID      string   `yaml:"calendar_id"`
	Lookahead       Duration `yaml:"lookahead"`
}

type ICSConfig struct {
	URL       string   `yaml:"url"`
	CacheTTL  Duration `yaml:"cache_ttl"`
	Lookahead Duration `yaml:"lookahead"`
}

type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads path, expands ${VAR} references, decodes the YAML and fills
// in defaults. It does not validate; call Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./statuslight.sqlite"
	}
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}
	if cfg.EventBus.Workers <= 0 {
		cfg.EventBus.Workers = 2
	}
	if cfg.EventBus.QueueSize <= 0 {
		cfg.EventBus.QueueSize = 64
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(MinPollInterval)
	}
	if cfg.SourceTimeout == 0 {
		cfg.SourceTimeout = Duration(20 * time.Second)
	}

	if len(cfg.ActiveHours.Days) == 0 {
		cfg.ActiveHours.Days = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}
	}
	if cfg.ActiveHours.Start == 0 && cfg.ActiveHours.End == 0 {
		cfg.ActiveHours.End = schedule.NewTimeOfDay(23, 59, 59)
	}

	defaults := status.DefaultBandConfig()
	if cfg.Bands.Off == nil {
		cfg.Bands.Off = defaults.Off.Slice()
	}
	if cfg.Bands.Available == nil {
		cfg.Bands.Available = defaults.Available.Slice()
	}
	if cfg.Bands.Scheduled == nil {
		cfg.Bands.Scheduled = defaults.Scheduled.Slice()
	}
	if cfg.Bands.Busy == nil {
		cfg.Bands.Busy = defaults.Busy.Slice()
	}

	colors := actuation.DefaultColors()
	if cfg.Colors.Available == "" {
		cfg.Colors.Available = colors.Available
	}
	if cfg.Colors.Scheduled == "" {
		cfg.Colors.Scheduled = colors.Scheduled
	}
	if cfg.Colors.Busy == "" {
		cfg.Colors.Busy = colors.Busy
	}
	if cfg.Colors.Brightness == nil {
		b := 50
		cfg.Colors.Brightness = &b
	}

	if cfg.Slack.CustomStatus == nil {
		for _, r := range slack.DefaultRules() {
			cfg.Slack.CustomStatus = append(cfg.Slack.CustomStatus, CustomStatusRule{Prefixes: r.Prefixes, Status: r.Status})
		}
	}
}

// Validate checks the whole configuration and returns every problem found,
// wrapped in ErrInvalid.
func (cfg *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := parseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if d := cfg.PollInterval.Duration(); d < MinPollInterval || d > MaxPollInterval {
		add("poll_interval %s must be between %s and %s", d, MinPollInterval, MaxPollInterval)
	}
	if cfg.SourceTimeout.Duration() <= 0 {
		add("source_timeout must be positive")
	}
	if cfg.ShutdownTimeout.Duration() <= 0 {
		add("shutdown_timeout must be positive")
	}
	if _, err := cfg.Location(); err != nil {
		errs = append(errs, err)
	}

	if _, err := cfg.Window(); err != nil {
		errs = append(errs, err)
	}

	for name, c := range map[string]string{
		"colors.available": cfg.Colors.Available,
		"colors.scheduled": cfg.Colors.Scheduled,
		"colors.busy":      cfg.Colors.Busy,
	} {
		if err := target.ValidateColor(c); err != nil {
			add("%s: %w", name, err)
		}
	}
	if err := target.ValidateBrightness(*cfg.Colors.Brightness); err != nil {
		add("colors.brightness: %w", err)
	}

	if _, err := target.ParseDescriptor(cfg.Target.Device); err != nil {
		add("target.device: %w", err)
	}

	errs = append(errs, cfg.validateSources()...)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func (cfg *Config) validateSources() []error {
	var errs []error
	if len(cfg.Sources) == 0 {
		return []error{errors.New("sources: at least one source must be enabled")}
	}

	seen := make(map[status.Source]bool)
	for _, src := range cfg.Sources {
		if seen[src] {
			errs = append(errs, fmt.Errorf("sources: %s listed twice", src))
			continue
		}
		seen[src] = true

		missing := func(field, value string) {
			if strings.TrimSpace(value) == "" {
				errs = append(errs, fmt.Errorf("%s.%s is required when %s is enabled", src, field, src))
			}
		}
		switch src {
		case status.SourceWebex:
			missing("bot_token", cfg.Webex.BotToken)
			missing("person_id", cfg.Webex.PersonID)
		case status.SourceSlack:
			missing("bot_token", cfg.Slack.BotToken)
			missing("user_id", cfg.Slack.UserID)
		case status.SourceOffice365:
			missing("tenant_id", cfg.Office365.TenantID)
			missing("client_id", cfg.Office365.ClientID)
			missing("client_secret", cfg.Office365.ClientSecret)
			missing("user", cfg.Office365.User)
		case status.SourceGoogle:
			missing("credentials_file", cfg.Google.CredentialsFile)
			missing("token_file", cfg.Google.TokenFile)
		case status.SourceICS:
			missing("url", cfg.ICS.URL)
		}
	}
	return errs
}

// Warnings returns non-fatal configuration issues.
func (cfg *Config) Warnings() []string {
	var out []string
	for _, st := range cfg.BandConfig().Overlaps() {
		out = append(out, fmt.Sprintf("status %q is configured in more than one band; the most urgent band wins", st))
	}
	return out
}

// Location returns the zone active hours are evaluated in.
func (cfg *Config) Location() (*time.Location, error) {
	if cfg.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// Window returns the validated active-hours window.
func (cfg *Config) Window() (schedule.Window, error) {
	w := schedule.Window{
		Days:  make(map[time.Weekday]bool, len(cfg.ActiveHours.Days)),
		Start: cfg.ActiveHours.Start,
		End:   cfg.ActiveHours.End,
	}
	for _, name := range cfg.ActiveHours.Days {
		d, err := schedule.ParseWeekday(name)
		if err != nil {
			return schedule.Window{}, fmt.Errorf("active_hours.days: %w", err)
		}
		w.Days[d] = true
	}
	if err := w.Validate(); err != nil {
		return schedule.Window{}, err
	}
	return w, nil
}

// BandConfig returns the band membership sets.
func (cfg *Config) BandConfig() status.BandConfig {
	return status.BandConfig{
		Off:       status.NewSet(cfg.Bands.Off...),
		Available: status.NewSet(cfg.Bands.Available...),
		Scheduled: status.NewSet(cfg.Bands.Scheduled...),
		Busy:      status.NewSet(cfg.Bands.Busy...),
	}
}

// LightColors returns the band colors.
func (cfg *Config) LightColors() actuation.Colors {
	return actuation.Colors{
		Available: cfg.Colors.Available,
		Scheduled: cfg.Colors.Scheduled,
		Busy:      cfg.Colors.Busy,
	}
}

// SlackRules converts the custom status rules.
func (cfg *Config) SlackRules() []slack.CustomStatus {
	out := make([]slack.CustomStatus, 0, len(cfg.Slack.CustomStatus))
	for _, r := range cfg.Slack.CustomStatus {
		out = append(out, slack.CustomStatus{Prefixes: r.Prefixes, Status: r.Status})
	}
	return out
}

// Enabled reports whether src is listed in sources.
func (cfg *Config) Enabled(src status.Source) bool {
	for _, s := range cfg.Sources {
		if s == src {
			return true
		}
	}
	return false
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:default}. An unset VAR falls back
// to the contents of the file named by VAR_FILE, then to the default.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		if file := os.Getenv(varName + "_FILE"); file != "" {
			if data, err := os.ReadFile(file); err == nil {
				return strings.TrimSpace(string(data))
			}
		}
		return defaultVal
	})
}
