package target

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/statuslight/internal/metrics"
)

// Default retry policy for device commands.
const (
	DefaultAttempts = 5
	DefaultDelay    = time.Second
)

// Retrying is a LightTarget that validates commands and retries transient
// transport failures with a fixed delay. Cancelling the context aborts the
// wait between attempts and the command counts as failed.
type Retrying struct {
	transport Transport
	clock     clock.Clock
	attempts  int
	delay     time.Duration
}

// Option configures a Retrying target.
type Option func(*Retrying)

// WithClock overrides the clock used for delays between attempts.
func WithClock(clk clock.Clock) Option {
	return func(r *Retrying) { r.clock = clk }
}

// WithAttempts overrides the maximum number of attempts per command.
func WithAttempts(n int) Option {
	return func(r *Retrying) { r.attempts = n }
}

// WithDelay overrides the fixed delay between attempts.
func WithDelay(d time.Duration) Option {
	return func(r *Retrying) { r.delay = d }
}

// NewRetrying wraps transport with the default retry policy.
func NewRetrying(transport Transport, opts ...Option) *Retrying {
	r := &Retrying{
		transport: transport,
		clock:     clock.WallClock,
		attempts:  DefaultAttempts,
		delay:     DefaultDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetColor implements LightTarget.
func (r *Retrying) SetColor(ctx context.Context, hexColor string, brightness int) bool {
	cmd, err := NewColorCommand(hexColor, brightness)
	if err != nil {
		log.Error().Err(err).Str("target", r.transport.Name()).Msg("Refusing to send invalid color command")
		return false
	}
	return r.send(ctx, cmd)
}

// TurnOff implements LightTarget.
func (r *Retrying) TurnOff(ctx context.Context) bool {
	return r.send(ctx, OffCommand())
}

func (r *Retrying) send(ctx context.Context, cmd Command) bool {
	name := r.transport.Name()

	// Reused connections are a known source of broken pipes; always start
	// the next command from a fresh one.
	defer r.transport.Reset()

	if ctx.Err() != nil {
		log.Warn().Str("target", name).Str("command", cmd.String()).Msg("Command skipped, shutting down")
		return false
	}

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			return r.transport.Send(ctx, cmd)
		},
		NotifyFunc: func(err error, attempt int) {
			metrics.ObserveDeviceSendFailure(name)
			log.Warn().
				Err(err).
				Str("target", name).
				Str("command", cmd.String()).
				Int("attempt", attempt).
				Int("max_attempts", r.attempts).
				Msg("Failed to send command to light")
		},
		Attempts: r.attempts,
		Delay:    r.delay,
		Clock:    r.clock,
		Stop:     ctx.Done(),
	})

	switch {
	case err == nil:
		log.Debug().Str("target", name).Str("command", cmd.String()).Msg("Command sent")
		return true
	case retry.IsRetryStopped(err):
		log.Warn().Str("target", name).Str("command", cmd.String()).Msg("Command retries interrupted")
	default:
		log.Error().
			Err(retry.LastError(err)).
			Str("target", name).
			Str("command", cmd.String()).
			Int("attempts", r.attempts).
			Msg("Giving up on light command")
	}
	return false
}
