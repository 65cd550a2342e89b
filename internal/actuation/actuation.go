// Package actuation maps a presence status onto a light command.
package actuation

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/statuslight/internal/metrics"
	"github.com/dokzlo13/statuslight/internal/status"
	"github.com/dokzlo13/statuslight/internal/target"
)

// ResolveBand returns the band st belongs to. When st is configured in
// several bands the most urgent one wins: busy, then scheduled, then
// available, then off.
func ResolveBand(st status.Status, bands status.BandConfig) status.Band {
	switch {
	case bands.Busy.Contains(st):
		return status.BandBusy
	case bands.Scheduled.Contains(st):
		return status.BandScheduled
	case bands.Available.Contains(st):
		return status.BandAvailable
	case bands.Off.Contains(st):
		return status.BandOff
	default:
		return status.BandInvalid
	}
}

// Colors holds the light color of each lit band as rrggbb.
type Colors struct {
	Available string
	Scheduled string
	Busy      string
}

// DefaultColors returns green, orange and red.
func DefaultColors() Colors {
	return Colors{Available: "00ff00", Scheduled: "ff9000", Busy: "ff0000"}
}

// Controller turns bands into target commands.
type Controller struct {
	bands      status.BandConfig
	colors     Colors
	brightness int
	target     target.LightTarget
}

// New creates a Controller.
func New(bands status.BandConfig, colors Colors, brightness int, t target.LightTarget) *Controller {
	return &Controller{
		bands:      bands,
		colors:     colors,
		brightness: brightness,
		target:     t,
	}
}

// Target returns the underlying light target.
func (c *Controller) Target() target.LightTarget {
	return c.target
}

// Actuate drives the light for band and reports whether the device
// accepted the command.
func (c *Controller) Actuate(ctx context.Context, band status.Band) bool {
	var ok bool
	switch band {
	case status.BandBusy:
		ok = c.target.SetColor(ctx, c.colors.Busy, c.brightness)
	case status.BandScheduled:
		ok = c.target.SetColor(ctx, c.colors.Scheduled, c.brightness)
	case status.BandAvailable:
		ok = c.target.SetColor(ctx, c.colors.Available, c.brightness)
	case status.BandOff:
		ok = c.target.TurnOff(ctx)
	default:
		log.Warn().Str("band", band.String()).Msg("Status is not in any configured band, turning light off")
		ok = c.target.TurnOff(ctx)
	}

	metrics.ObserveActuation(band.String(), ok)
	return ok
}

// Apply resolves the band for st and actuates it.
func (c *Controller) Apply(ctx context.Context, st status.Status) (status.Band, bool) {
	band := ResolveBand(st, c.bands)
	log.Debug().Str("status", st.String()).Str("band", band.String()).Msg("Resolved band")
	return band, c.Actuate(ctx, band)
}
