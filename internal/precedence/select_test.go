package precedence

import (
	"testing"

	"github.com/dokzlo13/statuslight/internal/status"
)

var (
	defaultOff       = status.NewSet(status.Inactive, status.Unknown)
	defaultAvailable = status.NewSet(status.Active)
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name       string
		collab     Readings
		calendar   Readings
		off        status.Set
		available  status.Set
		wantStatus status.Status
		wantSource status.Source
	}{
		// === Collaboration only ===
		{
			name:       "collab/primary_busy",
			collab:     Readings{status.SourceWebex: status.Busy},
			calendar:   Readings{},
			wantStatus: status.Busy,
			wantSource: status.SourceWebex,
		},
		{
			name:       "collab/primary_beats_secondary",
			collab:     Readings{status.SourceWebex: status.Meeting, status.SourceSlack: status.Active},
			calendar:   Readings{},
			wantStatus: status.Meeting,
			wantSource: status.SourceWebex,
		},
		{
			name:       "collab/primary_unknown_uses_secondary",
			collab:     Readings{status.SourceWebex: status.Unknown, status.SourceSlack: status.Call},
			calendar:   Readings{},
			wantStatus: status.Call,
			wantSource: status.SourceSlack,
		},
		{
			name:       "collab/primary_disabled_uses_secondary",
			collab:     Readings{status.SourceSlack: status.DoNotDisturb},
			calendar:   Readings{},
			wantStatus: status.DoNotDisturb,
			wantSource: status.SourceSlack,
		},
		{
			name:       "collab/primary_off_uses_secondary",
			collab:     Readings{status.SourceWebex: status.Inactive, status.SourceSlack: status.Presenting},
			calendar:   Readings{},
			wantStatus: status.Presenting,
			wantSource: status.SourceSlack,
		},
		{
			name:       "collab/primary_off_secondary_unknown_keeps_primary",
			collab:     Readings{status.SourceWebex: status.Inactive, status.SourceSlack: status.Unknown},
			calendar:   Readings{},
			wantStatus: status.Inactive,
			wantSource: status.SourceWebex,
		},
		{
			name:       "collab/nothing_enabled",
			collab:     Readings{},
			calendar:   Readings{},
			wantStatus: status.Unknown,
			wantSource: status.SourceWebex,
		},

		// === Calendar override ===
		{
			name:       "calendar/overrides_available",
			collab:     Readings{status.SourceWebex: status.Active},
			calendar:   Readings{status.SourceOffice365: status.Busy},
			wantStatus: status.Busy,
			wantSource: status.SourceOffice365,
		},
		{
			name:       "calendar/overrides_off",
			collab:     Readings{status.SourceWebex: status.Inactive},
			calendar:   Readings{status.SourceGoogle: status.Tentative},
			wantStatus: status.Tentative,
			wantSource: status.SourceGoogle,
		},
		{
			name:       "calendar/overrides_unknown",
			collab:     Readings{status.SourceWebex: status.Unknown, status.SourceSlack: status.Unknown},
			calendar:   Readings{status.SourceICS: status.Busy},
			wantStatus: status.Busy,
			wantSource: status.SourceICS,
		},
		{
			name:       "calendar/never_overrides_busy_collab",
			collab:     Readings{status.SourceWebex: status.Meeting},
			calendar:   Readings{status.SourceOffice365: status.Busy, status.SourceGoogle: status.OutOfOffice, status.SourceICS: status.Busy},
			wantStatus: status.Meeting,
			wantSource: status.SourceWebex,
		},
		{
			name:       "calendar/all_off_keeps_collab",
			collab:     Readings{status.SourceWebex: status.Active},
			calendar:   Readings{status.SourceOffice365: status.Inactive, status.SourceGoogle: status.Unknown},
			wantStatus: status.Active,
			wantSource: status.SourceWebex,
		},
		{
			name:       "calendar/priority_office_first",
			collab:     Readings{status.SourceWebex: status.Active},
			calendar:   Readings{status.SourceOffice365: status.Tentative, status.SourceGoogle: status.Busy, status.SourceICS: status.Busy},
			wantStatus: status.Tentative,
			wantSource: status.SourceOffice365,
		},
		{
			name:       "calendar/unknown_office_skipped",
			collab:     Readings{status.SourceWebex: status.Active},
			calendar:   Readings{status.SourceOffice365: status.Unknown, status.SourceGoogle: status.Busy, status.SourceICS: status.Tentative},
			wantStatus: status.Busy,
			wantSource: status.SourceGoogle,
		},
		{
			name:   "calendar/free_not_off_wins",
			collab: Readings{status.SourceWebex: status.Active},
			// Free is not an off status here, so the calendar has something to say.
			calendar:   Readings{status.SourceICS: status.Free},
			wantStatus: status.Free,
			wantSource: status.SourceICS,
		},
		{
			name:       "calendar/disabled_ignored",
			collab:     Readings{status.SourceWebex: status.Active},
			calendar:   Readings{},
			wantStatus: status.Active,
			wantSource: status.SourceWebex,
		},
		{
			name:       "calendar/custom_available_band",
			collab:     Readings{status.SourceSlack: status.Pending},
			calendar:   Readings{status.SourceOffice365: status.Busy},
			available:  status.NewSet(status.Active, status.Pending),
			wantStatus: status.Busy,
			wantSource: status.SourceOffice365,
		},
		{
			name:       "calendar/unknown_in_no_band_not_overridden",
			collab:     Readings{status.SourceWebex: status.Unknown},
			calendar:   Readings{status.SourceOffice365: status.Busy},
			off:        status.NewSet(status.Inactive),
			wantStatus: status.Unknown,
			wantSource: status.SourceWebex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			off, available := tt.off, tt.available
			if off == nil {
				off = defaultOff
			}
			if available == nil {
				available = defaultAvailable
			}

			gotStatus, gotSource := Select(tt.collab, tt.calendar, off, available)
			if gotStatus != tt.wantStatus || gotSource != tt.wantSource {
				t.Errorf("Select() = (%s, %s), want (%s, %s)",
					gotStatus, gotSource, tt.wantStatus, tt.wantSource)
			}
		})
	}
}

func TestSelect_Scenarios(t *testing.T) {
	t.Run("busy_primary_without_calendar", func(t *testing.T) {
		st, src := Select(
			Readings{status.SourceWebex: status.Busy},
			Readings{},
			status.NewSet(status.Inactive, status.Unknown),
			status.NewSet(status.Active),
		)
		if st != status.Busy || src != status.SourceWebex {
			t.Errorf("got (%s, %s), want (busy, webex)", st, src)
		}
	})

	t.Run("active_primary_busy_calendar", func(t *testing.T) {
		st, src := Select(
			Readings{status.SourceWebex: status.Active},
			Readings{status.SourceOffice365: status.Busy},
			status.NewSet(status.Inactive, status.Unknown),
			status.NewSet(status.Active),
		)
		if st != status.Busy || src != status.SourceOffice365 {
			t.Errorf("got (%s, %s), want (busy, office365)", st, src)
		}
	})

	t.Run("all_unknown_attributes_last_calendar", func(t *testing.T) {
		// Unknown is available and not off, so the collaboration reading is
		// overridable and an unknown calendar still has something to report.
		st, src := Select(
			Readings{status.SourceWebex: status.Unknown, status.SourceSlack: status.Unknown},
			Readings{status.SourceOffice365: status.Unknown},
			status.NewSet(status.Inactive),
			status.NewSet(status.Active, status.Unknown),
		)
		if st != status.Unknown || src != status.SourceOffice365 {
			t.Errorf("got (%s, %s), want (unknown, office365)", st, src)
		}
	})

	t.Run("all_unknown_with_unknown_as_off", func(t *testing.T) {
		st, src := Select(
			Readings{status.SourceWebex: status.Unknown, status.SourceSlack: status.Unknown},
			Readings{status.SourceOffice365: status.Unknown},
			status.NewSet(status.Inactive, status.Unknown),
			status.NewSet(status.Active),
		)
		if st != status.Unknown || src != status.SourceWebex {
			t.Errorf("got (%s, %s), want (unknown, webex)", st, src)
		}
	})

	t.Run("all_unknown_falls_back_to_last_enabled", func(t *testing.T) {
		st, src := Select(
			Readings{},
			Readings{status.SourceOffice365: status.Unknown, status.SourceGoogle: status.Unknown, status.SourceICS: status.Unknown},
			status.NewSet(status.Inactive),
			status.NewSet(status.Active, status.Unknown),
		)
		if st != status.Unknown || src != status.SourceICS {
			t.Errorf("got (%s, %s), want (unknown, ics)", st, src)
		}
	})

	t.Run("unknown_in_no_band_keeps_collaboration", func(t *testing.T) {
		st, src := Select(
			Readings{status.SourceWebex: status.Unknown},
			Readings{status.SourceOffice365: status.Busy},
			status.NewSet(status.Inactive),
			status.NewSet(status.Active),
		)
		if st != status.Unknown || src != status.SourceWebex {
			t.Errorf("got (%s, %s), want (unknown, webex)", st, src)
		}
	})
}

func TestSelect_BusyPrimaryAlwaysWins(t *testing.T) {
	bands := status.DefaultBandConfig()
	for _, busy := range bands.Busy.Slice() {
		for _, cal := range status.All() {
			st, src := Select(
				Readings{status.SourceWebex: busy, status.SourceSlack: status.Active},
				Readings{status.SourceOffice365: cal, status.SourceGoogle: cal, status.SourceICS: cal},
				bands.Off,
				bands.Available,
			)
			if st != busy || src != status.SourceWebex {
				t.Fatalf("primary %s with calendar %s: got (%s, %s)", busy, cal, st, src)
			}
		}
	}
}

func TestSelect_Deterministic(t *testing.T) {
	collab := Readings{status.SourceWebex: status.Inactive, status.SourceSlack: status.Active}
	calendar := Readings{status.SourceOffice365: status.Unknown, status.SourceGoogle: status.Tentative, status.SourceICS: status.Busy}

	wantStatus, wantSource := Select(collab, calendar, defaultOff, defaultAvailable)
	for i := 0; i < 100; i++ {
		st, src := Select(collab, calendar, defaultOff, defaultAvailable)
		if st != wantStatus || src != wantSource {
			t.Fatalf("iteration %d: got (%s, %s), want (%s, %s)", i, st, src, wantStatus, wantSource)
		}
	}
}

func TestReadings_Get(t *testing.T) {
	r := Readings{status.SourceSlack: status.Active}
	if got := r.Get(status.SourceWebex); got != status.Unknown {
		t.Errorf("absent source = %s, want unknown", got)
	}
	if !r.Has(status.SourceSlack) || r.Has(status.SourceWebex) {
		t.Error("Has() reports wrong enablement")
	}
	var nilReadings Readings
	if got := nilReadings.Get(status.SourceWebex); got != status.Unknown {
		t.Errorf("nil readings = %s, want unknown", got)
	}
}
