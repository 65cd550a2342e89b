package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

func parseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("log.level %q must be debug, info, warn or error", level)
	}
}

// GetLevel returns the configured zerolog level, info when unrecognised.
func (c LogConfig) GetLevel() zerolog.Level {
	lvl, _ := parseLevel(c.Level)
	return lvl
}
