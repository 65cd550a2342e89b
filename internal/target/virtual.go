package target

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Virtual is a transport that only logs and remembers the last command.
// Useful for running without hardware.
type Virtual struct {
	mu    sync.Mutex
	state Command
	sent  int
}

// NewVirtual creates a virtual light that starts off.
func NewVirtual() *Virtual {
	return &Virtual{}
}

// Name implements Transport.
func (v *Virtual) Name() string { return "virtual" }

// Send implements Transport.
func (v *Virtual) Send(_ context.Context, cmd Command) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state = cmd
	v.sent++

	if cmd.Power {
		log.Info().Str("color", cmd.Color).Int("brightness", cmd.Brightness).Msg("[Virtual] Light on")
	} else {
		log.Info().Msg("[Virtual] Light off")
	}
	return nil
}

// Reset implements Transport. There is no connection to drop.
func (v *Virtual) Reset() {}

// State returns the last command received.
func (v *Virtual) State() Command {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Sent returns how many commands were received.
func (v *Virtual) Sent() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sent
}
