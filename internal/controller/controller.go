// Package controller runs the periodic poll, decide and actuate loop.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/statuslight/internal/eventbus"
	"github.com/dokzlo13/statuslight/internal/metrics"
	"github.com/dokzlo13/statuslight/internal/precedence"
	"github.com/dokzlo13/statuslight/internal/schedule"
	"github.com/dokzlo13/statuslight/internal/status"
	"github.com/dokzlo13/statuslight/internal/target"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Poller returns this cycle's readings split by category.
type Poller interface {
	Poll(ctx context.Context) (collaboration, calendar precedence.Readings)
}

// Actuator drives the light for a status.
type Actuator interface {
	Apply(ctx context.Context, st status.Status) (status.Band, bool)
	Target() target.LightTarget
}

// Config wires a Controller.
type Config struct {
	Poller          Poller
	Actuator        Actuator
	Bands           status.BandConfig
	Window          schedule.Window
	Location        *time.Location
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	Bus             *eventbus.Bus
	Clock           clock.Clock
}

// Report is a snapshot of the loop for the status endpoint.
type Report struct {
	State         LoopState
	Mode          Mode
	Band          status.Band
	Collaboration precedence.Readings
	Calendar      precedence.Readings
	UpdatedAt     time.Time
}

// Controller owns the loop state. Only the goroutine running Run (or Tick)
// mutates it.
type Controller struct {
	cfg Config

	mu     sync.RWMutex
	state  LoopState
	report Report
}

// New creates a controller in the initial state.
func New(cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return &Controller{
		cfg:    cfg,
		state:  InitialState(),
		report: Report{State: InitialState()},
	}
}

// State returns a copy of the loop state.
func (c *Controller) State() LoopState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Report returns the latest snapshot.
func (c *Controller) Report() Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.report
}

// Run ticks every poll interval until ctx is done, then turns the light off.
func (c *Controller) Run(ctx context.Context) error {
	log.Info().
		Dur("poll_interval", c.cfg.PollInterval).
		Str("active_hours", c.cfg.Window.String()).
		Msg("Status loop started")

	for {
		c.Tick(ctx, c.cfg.Clock.Now())

		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case <-c.cfg.Clock.After(c.cfg.PollInterval):
		}
	}
}

// Tick runs one cycle. A panic inside the cycle is logged and leaves the
// state untouched.
func (c *Controller) Tick(ctx context.Context, now time.Time) {
	cycle := uuid.NewString()[:8]
	logger := log.With().Str("cycle", cycle).Logger()

	defer func() {
		if r := recover(); r != nil {
			metrics.ObserveCycle("panic")
			logger.Error().Interface("panic", r).Msg("Status loop cycle panicked, state unchanged")
		}
	}()

	next, report := c.cycle(ctx, now, cycle, logger)

	c.mu.Lock()
	c.state = next
	c.report = report
	c.mu.Unlock()
}

func (c *Controller) cycle(ctx context.Context, now time.Time, cycle string, logger zerolog.Logger) (LoopState, Report) {
	state := c.State()
	report := Report{UpdatedAt: now}

	active := c.cfg.Window.IsActive(now.In(c.cfg.Location))
	metrics.SetActiveHours(active)

	if !active {
		report.Mode = ModePaused
		action := DetermineAction(state, ModePaused, status.Unknown)

		ok := false
		if action == ActionTurnOff {
			logger.Info().Msg("Outside active hours, turning light off")
			ok = c.cfg.Actuator.Target().TurnOff(ctx)
			if !ok {
				logger.Warn().Msg("Failed to turn light off, will retry next cycle")
			}
			c.publish(eventbus.EventPaused, cycle, now, map[string]any{"succeeded": ok})
		}
		metrics.ObserveCycle("paused")

		state = Commit(state, ModePaused, action, status.Unknown, status.SourceUnknown, ok)
		report.State = state
		return state, report
	}

	report.Mode = ModePolling
	collaboration, calendar := c.cfg.Poller.Poll(ctx)
	report.Collaboration, report.Calendar = collaboration, calendar

	winner, source := precedence.Select(collaboration, calendar, c.cfg.Bands.Off, c.cfg.Bands.Available)
	logger.Debug().Str("status", winner.String()).Str("source", source.String()).Msg("Selected status")

	if winner != state.LastStatus {
		logger.Info().
			Str("from", state.LastStatus.String()).
			Str("to", winner.String()).
			Str("source", source.String()).
			Msg("Status changed")
		c.publish(eventbus.EventStatusChanged, cycle, now, map[string]any{
			"from":   state.LastStatus.String(),
			"status": winner.String(),
			"source": source.String(),
		})
	}
	metrics.SetCurrentStatus(winner.String(), source.String())

	action := DetermineAction(state, ModePolling, winner)
	ok := false
	if action == ActionApply {
		var band status.Band
		band, ok = c.cfg.Actuator.Apply(ctx, winner)
		report.Band = band
		if ok {
			logger.Info().Str("status", winner.String()).Str("band", band.String()).Msg("Light updated")
		} else {
			logger.Warn().Str("status", winner.String()).Str("band", band.String()).Msg("Light update failed, will retry next cycle")
		}
		c.publish(eventbus.EventActuation, cycle, now, map[string]any{
			"status":    winner.String(),
			"band":      band.String(),
			"succeeded": ok,
		})
		metrics.ObserveCycle("actuated")
	} else {
		report.Band = c.Report().Band
		metrics.ObserveCycle("unchanged")
	}

	state = Commit(state, ModePolling, action, winner, source, ok)
	report.State = state
	return state, report
}

func (c *Controller) shutdown() {
	log.Info().Msg("Status loop stopping, turning light off")

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()

	ok := c.cfg.Actuator.Target().TurnOff(ctx)
	if !ok {
		log.Error().Msg("Failed to turn light off during shutdown")
	}
	c.publish(eventbus.EventShutdown, "", c.cfg.Clock.Now(), map[string]any{"succeeded": ok})
}

func (c *Controller) publish(t eventbus.EventType, cycle string, now time.Time, data map[string]any) {
	c.cfg.Bus.Publish(eventbus.Event{Type: t, Cycle: cycle, Time: now, Data: data})
}
