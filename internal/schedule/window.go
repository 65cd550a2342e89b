// Package schedule decides whether the daemon should be polling right now.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time expressed as seconds since midnight.
type TimeOfDay int

var timeOfDayPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

// NewTimeOfDay builds a TimeOfDay from its components.
func NewTimeOfDay(hour, min, sec int) TimeOfDay {
	return TimeOfDay(hour*3600 + min*60 + sec)
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	matches := timeOfDayPattern.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM or HH:MM:SS", s)
	}

	hour, _ := strconv.Atoi(matches[1])
	min, _ := strconv.Atoi(matches[2])
	sec := 0
	if matches[3] != "" {
		sec, _ = strconv.Atoi(matches[3])
	}

	if hour > 23 {
		return 0, fmt.Errorf("invalid hour: %d", hour)
	}
	if min > 59 {
		return 0, fmt.Errorf("invalid minute: %d", min)
	}
	if sec > 59 {
		return 0, fmt.Errorf("invalid second: %d", sec)
	}

	return NewTimeOfDay(hour, min, sec), nil
}

// Of returns the time of day of t in t's location, truncated to the second.
func Of(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
}

// String formats the time as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)%3600/60, int(t)%60)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseWeekday accepts full ("monday") and short ("mon") English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if key == name || key == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

// Window is the set of days and the daily time range during which the
// light is driven. Both boundaries are inclusive.
type Window struct {
	Days  map[time.Weekday]bool
	Start TimeOfDay
	End   TimeOfDay
}

// AlwaysOn returns a window covering every second of every day.
func AlwaysOn() Window {
	days := make(map[time.Weekday]bool, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		days[d] = true
	}
	return Window{Days: days, Start: NewTimeOfDay(0, 0, 0), End: NewTimeOfDay(23, 59, 59)}
}

// IsActive reports whether now falls inside the window. now is used as-is;
// callers pass a time in the same location the window was configured for.
//
// Comparison is done at one-second resolution, so a window with
// Start == End is active only during that single second.
func (w Window) IsActive(now time.Time) bool {
	if !w.Days[now.Weekday()] {
		return false
	}
	tod := Of(now)
	return tod >= w.Start && tod <= w.End
}

// Validate rejects windows that can never be active.
func (w Window) Validate() error {
	if len(w.Days) == 0 {
		return fmt.Errorf("active hours: at least one day is required")
	}
	if w.Start > w.End {
		return fmt.Errorf("active hours: start %s is after end %s", w.Start, w.End)
	}
	return nil
}

// String renders the window as "Mon,Tue 09:00:00-17:00:00".
func (w Window) String() string {
	var days []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Days[d] {
			days = append(days, d.String()[:3])
		}
	}
	return fmt.Sprintf("%s %s-%s", strings.Join(days, ","), w.Start, w.End)
}
