// Package target drives the physical or virtual light.
//
// A LightTarget accepts two commands: set a color at a brightness, or turn
// off. Concrete devices implement the smaller Transport interface and are
// wrapped in Retrying, which owns input validation and the retry policy.
package target

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// LightTarget is the actuator capability used by the control loop.
// Neither method panics or returns an error; false means the command did
// not reach the device.
type LightTarget interface {
	// SetColor turns the light on at the given 6-digit hex RGB color and
	// brightness percentage (0-100).
	SetColor(ctx context.Context, hexColor string, brightness int) bool
	// TurnOff switches the light off.
	TurnOff(ctx context.Context) bool
}

// Command is a single, already validated instruction for a transport.
type Command struct {
	Power      bool
	Color      string // rrggbb, lowercase; empty when Power is false
	Brightness int    // percent, 0-100
}

// String renders the command for logs.
func (c Command) String() string {
	if !c.Power {
		return "off"
	}
	return fmt.Sprintf("#%s@%d%%", c.Color, c.Brightness)
}

// Transport sends commands to one concrete device.
type Transport interface {
	// Name identifies the transport in logs and metrics.
	Name() string
	// Send delivers one command. It may fail transiently.
	Send(ctx context.Context, cmd Command) error
	// Reset drops any cached connection so the next Send opens a new one.
	Reset()
}

var (
	ErrInvalidColor      = errors.New("invalid color")
	ErrInvalidBrightness = errors.New("invalid brightness")
)

var hexColorPattern = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)

// MinBrightness and MaxBrightness bound the brightness percentage.
const (
	MinBrightness = 0
	MaxBrightness = 100
)

// ValidateColor checks that color is exactly six hex digits.
func ValidateColor(color string) error {
	if !hexColorPattern.MatchString(color) {
		return fmt.Errorf("%w: %q is not a 6-digit hex RGB value", ErrInvalidColor, color)
	}
	return nil
}

// ValidateBrightness checks that brightness is a percentage.
func ValidateBrightness(brightness int) error {
	if brightness < MinBrightness || brightness > MaxBrightness {
		return fmt.Errorf("%w: %d is outside %d-%d", ErrInvalidBrightness, brightness, MinBrightness, MaxBrightness)
	}
	return nil
}

// NewColorCommand validates its inputs and builds a power-on command.
func NewColorCommand(hexColor string, brightness int) (Command, error) {
	if err := ValidateColor(hexColor); err != nil {
		return Command{}, err
	}
	if err := ValidateBrightness(brightness); err != nil {
		return Command{}, err
	}
	return Command{Power: true, Color: strings.ToLower(hexColor), Brightness: brightness}, nil
}

// OffCommand returns the power-off command.
func OffCommand() Command {
	return Command{}
}
