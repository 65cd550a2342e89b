package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/statuslight/internal/actuation"
	"github.com/dokzlo13/statuslight/internal/config"
	"github.com/dokzlo13/statuslight/internal/controller"
	"github.com/dokzlo13/statuslight/internal/db"
	"github.com/dokzlo13/statuslight/internal/eventbus"
	"github.com/dokzlo13/statuslight/internal/kv"
	"github.com/dokzlo13/statuslight/internal/source"
	"github.com/dokzlo13/statuslight/internal/target"
)

const (
	icsCacheBucket = "ics"

	cacheCleanupInterval = time.Hour
	cacheRetention       = 24 * time.Hour
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg   *config.Config
	clock clock.Clock

	// Core infrastructure
	DB    *db.DB
	Cache *kv.SQLiteBucket
	Bus   *eventbus.Bus

	// Status pipeline
	Target     *target.Retrying
	Actuator   *actuation.Controller
	Poller     *source.Poller
	Controller *controller.Controller

	// High-level services
	Events *EventService
	Health *HealthService

	wg sync.WaitGroup
}

// NewServices creates all services with proper dependency injection.
// ctx bounds the OAuth clients of calendar sources.
func NewServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg, clock: clock.WallClock}

	window, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	desc, err := target.ParseDescriptor(cfg.Target.Device)
	if err != nil {
		return nil, fmt.Errorf("invalid target device: %w", err)
	}
	transport, err := target.NewTransport(desc)
	if err != nil {
		return nil, err
	}
	s.Target = target.NewRetrying(transport, target.WithClock(s.clock))
	s.Actuator = actuation.New(cfg.BandConfig(), cfg.LightColors(), *cfg.Colors.Brightness, s.Target)

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database
	s.Cache = kv.NewSQLiteBucket(database.DB, icsCacheBucket, s.clock)

	adapters, err := buildAdapters(ctx, cfg, s.Cache, s.clock)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Poller, err = source.NewPoller(cfg.SourceTimeout.Duration(), adapters...)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.Workers, cfg.EventBus.QueueSize)
	s.Events = NewEventService(s.Bus, DefaultEventHistory)

	s.Controller = controller.New(controller.Config{
		Poller:          s.Poller,
		Actuator:        s.Actuator,
		Bands:           cfg.BandConfig(),
		Window:          window,
		Location:        loc,
		PollInterval:    cfg.PollInterval.Duration(),
		ShutdownTimeout: cfg.ShutdownTimeout.Duration(),
		Bus:             s.Bus,
		Clock:           s.clock,
	})

	s.Health = NewHealthService(cfg.Healthcheck, cfg.ShutdownTimeout.Duration(), s.Controller, s.Events, window)

	return s, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a service cannot keep running.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	s.Events.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Controller.Run(ctx); err != nil {
			onFatalError(fmt.Errorf("status loop: %w", err))
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCacheCleanup(ctx)
	}()

	if s.cfg.Healthcheck.Enabled {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.Health.Run(ctx); err != nil {
				onFatalError(fmt.Errorf("status server: %w", err))
			}
		}()
	} else {
		log.Debug().Msg("Status server disabled")
	}

	return nil
}

// runCacheCleanup periodically removes cache rows that expired long ago.
func (s *Services) runCacheCleanup(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(cacheCleanupInterval):
			deleted, err := kv.CleanupExpired(s.DB.DB, s.clock.Now().Add(-cacheRetention))
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup expired cache entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("Cleaned up expired cache entries")
			}
		}
	}
}

// Stop waits for the background services to finish (the status loop turns
// the light off on its way out) and releases resources. The context passed
// to Start must already be cancelled.
func (s *Services) Stop() error {
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
	defer cancel()
	if s.Bus != nil {
		s.Bus.Close(ctx)
	}

	return s.close()
}

// Close releases all resources.
func (s *Services) Close() {
	if err := s.close(); err != nil {
		log.Error().Err(err).Msg("Failed to release resources")
	}
}

func (s *Services) close() error {
	var errs []error
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
		s.DB = nil
	}
	return errors.Join(errs...)
}
