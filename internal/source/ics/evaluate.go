package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/rs/zerolog/log"
	"github.com/teambition/rrule-go"

	"github.com/dokzlo13/statuslight/internal/status"
)

const (
	propExdate       = "EXDATE"
	propRdate        = "RDATE"
	propRecurrenceID = "RECURRENCE-ID"
	propDuration     = "DURATION"
)

// Evaluate returns the busiest status of the events overlapping
// [from, to]: busy beats tentative beats free. No events means free.
func Evaluate(cal *ical.Calendar, from, to time.Time) status.Status {
	events := cal.Events()

	// Overridden occurrences of recurring events, keyed by UID.
	overridden := make(map[string][]time.Time)
	for _, ev := range events {
		if p := ev.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
			if rid := findProperty(ev, propRecurrenceID); rid != nil {
				if t, err := parseTime(rid.Value, rid.ICalParameters); err == nil {
					overridden[p.Value] = append(overridden[p.Value], t)
				}
			}
		}
	}

	result := status.Free
	matched := 0
	for _, ev := range events {
		ok, err := occursIn(ev, overridden, from, to)
		if err != nil {
			log.Debug().Err(err).Str("summary", summary(ev)).Msg("Skipping unreadable ICS event")
			continue
		}
		if !ok {
			continue
		}
		matched++

		st := eventStatus(ev)
		log.Debug().Str("summary", summary(ev)).Str("status", st.String()).Msg("ICS event in lookahead window")
		switch st {
		case status.Busy:
			return status.Busy
		case status.Tentative:
			result = status.Tentative
		}
	}

	if matched == 0 {
		log.Debug().Msg("No ICS events in lookahead window")
	}
	return result
}

// eventStatus maps TRANSP and STATUS onto a status.
func eventStatus(ev *ical.VEvent) status.Status {
	if p := ev.GetProperty(ical.ComponentPropertyTransp); p != nil && strings.EqualFold(p.Value, "TRANSPARENT") {
		return status.Free
	}
	if p := ev.GetProperty(ical.ComponentPropertyStatus); p != nil {
		switch strings.ToUpper(p.Value) {
		case "CANCELLED":
			return status.Free
		case "TENTATIVE":
			return status.Tentative
		}
	}
	return status.Busy
}

func occursIn(ev *ical.VEvent, overridden map[string][]time.Time, from, to time.Time) (bool, error) {
	dtstart := ev.GetProperty(ical.ComponentPropertyDtStart)
	if dtstart == nil {
		return false, fmt.Errorf("missing DTSTART")
	}
	start, err := parseTime(dtstart.Value, dtstart.ICalParameters)
	if err != nil {
		return false, err
	}
	dur, err := eventDuration(ev, start, isDate(dtstart))
	if err != nil {
		return false, err
	}

	rr := ev.GetProperty(ical.ComponentPropertyRrule)
	if rr == nil || findProperty(ev, propRecurrenceID) != nil {
		return overlaps(start, start.Add(dur), from, to), nil
	}

	set, err := recurrenceSet(ev, rr.Value, start)
	if err != nil {
		return false, err
	}
	if uid := ev.GetProperty(ical.ComponentPropertyUniqueId); uid != nil {
		for _, t := range overridden[uid.Value] {
			set.ExDate(t)
		}
	}

	for _, occ := range set.Between(from.Add(-dur), to, true) {
		if overlaps(occ, occ.Add(dur), from, to) {
			return true, nil
		}
	}
	return false, nil
}

func recurrenceSet(ev *ical.VEvent, rule string, start time.Time) (*rrule.Set, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("invalid RRULE %q: %w", rule, err)
	}
	opt.Dtstart = start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("invalid RRULE %q: %w", rule, err)
	}

	set := &rrule.Set{}
	set.RRule(r)

	for _, p := range ev.Properties {
		switch p.IANAToken {
		case propExdate, propRdate:
			for _, v := range strings.Split(p.Value, ",") {
				t, err := parseTime(v, p.ICalParameters)
				if err != nil {
					continue
				}
				if p.IANAToken == propExdate {
					set.ExDate(t)
				} else {
					set.RDate(t)
				}
			}
		}
	}
	return set, nil
}

// overlaps reports whether [s, e) intersects [from, to]. Zero-length
// events count when they start inside the window.
func overlaps(s, e, from, to time.Time) bool {
	if s.After(to) {
		return false
	}
	if e.Equal(s) {
		return !s.Before(from)
	}
	return e.After(from) && s.Before(to)
}

func eventDuration(ev *ical.VEvent, start time.Time, allDay bool) (time.Duration, error) {
	if p := ev.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		end, err := parseTime(p.Value, p.ICalParameters)
		if err != nil {
			return 0, err
		}
		if end.Before(start) {
			return 0, nil
		}
		return end.Sub(start), nil
	}
	if p := findProperty(ev, propDuration); p != nil {
		return parseDuration(p.Value)
	}
	if allDay {
		return 24 * time.Hour, nil
	}
	return 0, nil
}

func findProperty(ev *ical.VEvent, token string) *ical.IANAProperty {
	for i := range ev.Properties {
		if ev.Properties[i].IANAToken == token {
			return &ev.Properties[i]
		}
	}
	return nil
}

func isDate(p *ical.IANAProperty) bool {
	if v, ok := p.ICalParameters["VALUE"]; ok && len(v) > 0 && strings.EqualFold(v[0], "DATE") {
		return true
	}
	return len(p.Value) == len("20060102")
}

func summary(ev *ical.VEvent) string {
	if p := ev.GetProperty(ical.ComponentPropertySummary); p != nil {
		return p.Value
	}
	return "Untitled"
}
