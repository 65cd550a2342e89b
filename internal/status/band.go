package status

// Band groups statuses that share a light color.
type Band int

const (
	// BandInvalid is returned when a status belongs to no configured band.
	BandInvalid Band = iota
	BandOff
	BandAvailable
	BandScheduled
	BandBusy
)

// String returns a human-readable name for the band.
func (b Band) String() string {
	switch b {
	case BandOff:
		return "off"
	case BandAvailable:
		return "available"
	case BandScheduled:
		return "scheduled"
	case BandBusy:
		return "busy"
	default:
		return "invalid"
	}
}

// BandConfig holds the configured membership of each band. A status may
// appear in more than one set.
type BandConfig struct {
	Off       Set
	Available Set
	Scheduled Set
	Busy      Set
}

// DefaultBandConfig returns the stock band membership.
func DefaultBandConfig() BandConfig {
	return BandConfig{
		Off:       NewSet(Inactive, OutOfOffice, WorkingElsewhere, Unknown, Free),
		Available: NewSet(Active),
		Scheduled: NewSet(Busy, Tentative),
		Busy:      NewSet(Call, DoNotDisturb, Meeting, Presenting, Pending),
	}
}

// Overlaps returns statuses configured in more than one band.
func (c BandConfig) Overlaps() []Status {
	var out []Status
	for _, st := range All() {
		n := 0
		for _, set := range []Set{c.Off, c.Available, c.Scheduled, c.Busy} {
			if set.Contains(st) {
				n++
			}
		}
		if n > 1 {
			out = append(out, st)
		}
	}
	return out
}
