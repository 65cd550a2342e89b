package source

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dokzlo13/statuslight/internal/metrics"
	"github.com/dokzlo13/statuslight/internal/precedence"
	"github.com/dokzlo13/statuslight/internal/status"
)

// DefaultPollTimeout bounds a single adapter call.
const DefaultPollTimeout = 30 * time.Second

// Poller queries every enabled adapter concurrently.
type Poller struct {
	adapters []Adapter
	timeout  time.Duration
}

// NewPoller creates a poller. Duplicate sources are rejected.
func NewPoller(timeout time.Duration, adapters ...Adapter) (*Poller, error) {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	seen := make(map[status.Source]bool, len(adapters))
	for _, a := range adapters {
		src := a.Source()
		if src.Category() == status.CategoryNone {
			return nil, fmt.Errorf("adapter reports invalid source %q", src)
		}
		if seen[src] {
			return nil, fmt.Errorf("source %q configured twice", src)
		}
		seen[src] = true
	}
	return &Poller{adapters: adapters, timeout: timeout}, nil
}

// Sources returns the enabled sources in registration order.
func (p *Poller) Sources() []status.Source {
	out := make([]status.Source, len(p.adapters))
	for i, a := range p.adapters {
		out[i] = a.Source()
	}
	return out
}

// Poll runs every adapter and splits the readings by category. Every
// enabled source appears in exactly one of the returned maps.
func (p *Poller) Poll(ctx context.Context) (collaboration, calendar precedence.Readings) {
	results := make([]status.Status, len(p.adapters))

	var g errgroup.Group
	for i, a := range p.adapters {
		g.Go(func() error {
			results[i] = p.pollOne(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	collaboration = make(precedence.Readings)
	calendar = make(precedence.Readings)
	for i, a := range p.adapters {
		src := a.Source()
		switch src.Category() {
		case status.CategoryCollaboration:
			collaboration[src] = results[i]
		case status.CategoryCalendar:
			calendar[src] = results[i]
		}
	}
	return collaboration, calendar
}

func (p *Poller) pollOne(ctx context.Context, a Adapter) (st status.Status) {
	src := a.Source()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("source", src.String()).Interface("panic", r).Msg("Source panicked, treating as unknown")
			st = status.Unknown
		}
		metrics.ObserveSourcePoll(src.String(), st.String())
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	st = a.Poll(ctx)
	log.Debug().
		Str("source", src.String()).
		Str("status", st.String()).
		Dur("took", time.Since(start)).
		Msg("Polled source")
	return st
}
