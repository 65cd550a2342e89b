// Package precedence picks the single winning status out of the readings
// of every enabled source.
//
// Collaboration tools always beat calendars, except when the tool's status
// is in the available or off band. In that case any calendar with
// something to report fills the gap.
package precedence

import (
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/statuslight/internal/status"
)

// Readings maps a source to the status it reported this cycle.
// A source missing from the map is disabled and reads as Unknown.
type Readings map[status.Source]status.Status

// Get returns the reading for src, or Unknown when src is absent.
func (r Readings) Get(src status.Source) status.Status {
	if st, ok := r[src]; ok {
		return st
	}
	return status.Unknown
}

// Has reports whether src is enabled (present in the map).
func (r Readings) Has(src status.Source) bool {
	_, ok := r[src]
	return ok
}

// Select returns the winning status and the source it came from.
// It is a pure function of its inputs.
func Select(collaboration, calendar Readings, off, available status.Set) (status.Status, status.Source) {
	collabOrder := status.CollaborationSources()

	// Phase 1: primary collaboration source, falling back to the others
	// only when they have a real reading.
	winner := collaboration.Get(collabOrder[0])
	source := collabOrder[0]

	if winner == status.Unknown || off.Contains(winner) {
		for _, src := range collabOrder[1:] {
			st := collaboration.Get(src)
			if st == status.Unknown {
				continue
			}
			log.Debug().Str("source", src.String()).Str("status", st.String()).Msg("Falling back to secondary collaboration source")
			winner, source = st, src
			break
		}
	}

	// Phase 2: calendar override.
	if !overridable(winner, off, available) {
		log.Debug().Str("status", winner.String()).Str("source", source.String()).Msg("Collaboration status not overridable")
		return winner, source
	}

	enabled := enabledCalendars(calendar)
	if !anyCalendarBusy(calendar, enabled, off) {
		log.Debug().Str("status", winner.String()).Str("source", source.String()).Msg("No calendar activity, keeping collaboration status")
		return winner, source
	}

	// Phase 3: first calendar with a real reading; if every calendar is
	// unknown, attribute to the last one so the result stays deterministic.
	for _, src := range enabled {
		if st := calendar.Get(src); st != status.Unknown {
			log.Debug().Str("status", st.String()).Str("source", src.String()).Msg("Calendar overrides collaboration status")
			return st, src
		}
	}
	last := enabled[len(enabled)-1]
	return calendar.Get(last), last
}

// overridable reports whether the collaboration winner may be replaced by
// a calendar reading. Unknown is overridable only when configured in one
// of the two bands.
func overridable(st status.Status, off, available status.Set) bool {
	return available.Contains(st) || off.Contains(st)
}

// enabledCalendars returns the calendar sources present in readings, in
// fixed priority order.
func enabledCalendars(readings Readings) []status.Source {
	var out []status.Source
	for _, src := range status.CalendarSources() {
		if readings.Has(src) {
			out = append(out, src)
		}
	}
	return out
}

func anyCalendarBusy(readings Readings, enabled []status.Source, off status.Set) bool {
	for _, src := range enabled {
		if !off.Contains(readings.Get(src)) {
			return true
		}
	}
	return false
}
