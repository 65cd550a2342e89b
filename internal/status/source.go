package status

import "fmt"

// Source identifies the upstream system a status reading came from.
type Source int

const (
	SourceUnknown Source = iota
	SourceWebex
	SourceSlack
	SourceOffice365
	SourceGoogle
	SourceICS
)

var sourceNames = [...]string{
	SourceUnknown:   "unknown",
	SourceWebex:     "webex",
	SourceSlack:     "slack",
	SourceOffice365: "office365",
	SourceGoogle:    "google",
	SourceICS:       "ics",
}

// Category partitions sources into collaboration tools and calendars.
type Category int

const (
	CategoryNone Category = iota
	CategoryCollaboration
	CategoryCalendar
)

// Fixed priority order within each category. Only enablement is
// configurable.
var (
	collaborationOrder = []Source{SourceWebex, SourceSlack}
	calendarOrder      = []Source{SourceOffice365, SourceGoogle, SourceICS}
)

// CollaborationSources returns the collaboration sources, highest priority first.
func CollaborationSources() []Source {
	return append([]Source(nil), collaborationOrder...)
}

// CalendarSources returns the calendar sources, highest priority first.
func CalendarSources() []Source {
	return append([]Source(nil), calendarOrder...)
}

// String returns the lowercase name of the source.
func (s Source) String() string {
	if s < 0 || int(s) >= len(sourceNames) {
		return sourceNames[SourceUnknown]
	}
	return sourceNames[s]
}

// Category returns the category the source belongs to.
func (s Source) Category() Category {
	for _, c := range collaborationOrder {
		if c == s {
			return CategoryCollaboration
		}
	}
	for _, c := range calendarOrder {
		if c == s {
			return CategoryCalendar
		}
	}
	return CategoryNone
}

// ParseSource maps a name to a Source, returning (SourceUnknown, false)
// for anything unrecognized.
func ParseSource(name string) (Source, bool) {
	key := normalize(name)
	for i, n := range sourceNames {
		if i == int(SourceUnknown) {
			continue
		}
		if n == key {
			return Source(i), true
		}
	}
	return SourceUnknown, false
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Source) UnmarshalText(text []byte) error {
	parsed, ok := ParseSource(string(text))
	if !ok {
		return fmt.Errorf("unknown source %q", string(text))
	}
	*s = parsed
	return nil
}
