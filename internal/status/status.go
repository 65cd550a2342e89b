// Package status defines the presence values shared by every part of
// statuslight: normalized statuses, the sources that report them, and the
// bands that group statuses into light colors.
package status

import (
	"fmt"
	"strings"
)

// Status is a presence value normalized across all sources.
// The zero value is Unknown, which is also what every source reports on failure.
type Status int

const (
	Unknown Status = iota

	// Collaboration (Webex, Slack)
	Active
	Call
	DoNotDisturb
	Inactive
	Meeting
	Pending
	Presenting

	// Calendars (Office 365, Google, ICS)
	Free
	Tentative
	Busy
	OutOfOffice
	WorkingElsewhere
)

var statusNames = [...]string{
	Unknown:          "unknown",
	Active:           "active",
	Call:             "call",
	DoNotDisturb:     "donotdisturb",
	Inactive:         "inactive",
	Meeting:          "meeting",
	Pending:          "pending",
	Presenting:       "presenting",
	Free:             "free",
	Tentative:        "tentative",
	Busy:             "busy",
	OutOfOffice:      "outofoffice",
	WorkingElsewhere: "workingelsewhere",
}

// All returns every status, Unknown first.
func All() []Status {
	all := make([]Status, len(statusNames))
	for i := range statusNames {
		all[i] = Status(i)
	}
	return all
}

// String returns the lowercase name of the status.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return statusNames[Unknown]
	}
	return statusNames[s]
}

// ParseStatus maps a name to a Status. Matching ignores case, spaces,
// dashes and underscores, so "Do Not Disturb" and "do_not_disturb" both
// parse. Unrecognized names return (Unknown, false).
func ParseStatus(name string) (Status, bool) {
	key := normalize(name)
	for i, n := range statusNames {
		if n == key {
			return Status(i), true
		}
	}
	return Unknown, false
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unlike ParseStatus it
// rejects unknown names.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, ok := ParseStatus(string(text))
	if !ok {
		return fmt.Errorf("unknown status %q", string(text))
	}
	*s = parsed
	return nil
}

func normalize(name string) string {
	r := strings.NewReplacer(" ", "", "-", "", "_", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(name)))
}

// Set is an unordered collection of statuses.
type Set map[Status]struct{}

// NewSet builds a set from the given statuses.
func NewSet(statuses ...Status) Set {
	s := make(Set, len(statuses))
	for _, st := range statuses {
		s[st] = struct{}{}
	}
	return s
}

// Contains reports whether st is in the set. A nil set contains nothing.
func (s Set) Contains(st Status) bool {
	_, ok := s[st]
	return ok
}

// Slice returns the members ordered by their enum value.
func (s Set) Slice() []Status {
	out := make([]Status, 0, len(s))
	for _, st := range All() {
		if s.Contains(st) {
			out = append(out, st)
		}
	}
	return out
}
