package ics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// parseTime decodes a DATE or DATE-TIME value. Floating times and dates
// are read in the local zone; TZID selects an IANA zone.
func parseTime(value string, params map[string][]string) (time.Time, error) {
	value = strings.TrimSpace(value)
	loc := time.Local
	if tz, ok := params["TZID"]; ok && len(tz) > 0 {
		l, err := time.LoadLocation(strings.Trim(tz[0], `"`))
		if err != nil {
			return time.Time{}, fmt.Errorf("unknown TZID %q: %w", tz[0], err)
		}
		loc = l
	}

	switch {
	case strings.HasSuffix(value, "Z"):
		return time.Parse("20060102T150405Z", value)
	case len(value) == len("20060102"):
		return time.ParseInLocation("20060102", value, loc)
	default:
		return time.ParseInLocation("20060102T150405", value, loc)
	}
}

var durationPattern = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseDuration decodes an RFC 5545 DURATION such as PT1H30M or P1D.
func parseDuration(value string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil || value == "P" || strings.HasSuffix(value, "T") {
		return 0, fmt.Errorf("invalid DURATION %q", value)
	}

	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, fmt.Errorf("invalid DURATION %q: %w", value, err)
		}
		d += time.Duration(n) * unit
	}
	if m[1] == "-" {
		d = -d
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}
