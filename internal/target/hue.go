package target

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// HueDescriptor addresses a single light on a Philips Hue bridge.
type HueDescriptor struct {
	Type         string  `json:"type"`
	Bridge       string  `json:"bridge"`
	Username     string  `json:"username"`
	LightID      int     `json:"light_id"`
	RateLimitRPS float64 `json:"rate_limit_rps,omitempty"`
}

func (d HueDescriptor) validate() error {
	if d.Bridge == "" {
		return fmt.Errorf("hue: bridge is required")
	}
	if d.Username == "" {
		return fmt.Errorf("hue: username is required")
	}
	if d.LightID <= 0 {
		return fmt.Errorf("hue: light_id must be positive")
	}
	if d.RateLimitRPS < 0 {
		return fmt.Errorf("hue: rate_limit_rps must not be negative")
	}
	return nil
}

// Hue drives one Hue light through the bridge's v1 API.
type Hue struct {
	desc    HueDescriptor
	limiter *rate.Limiter

	mu     sync.Mutex
	bridge *huego.Bridge
}

// NewHue creates a Hue transport. The bridge connection is opened lazily.
func NewHue(desc HueDescriptor) *Hue {
	rps := desc.RateLimitRPS
	if rps == 0 {
		rps = 10.0
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	return &Hue{
		desc:    desc,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Name implements Transport.
func (h *Hue) Name() string {
	return "hue:" + strconv.Itoa(h.desc.LightID)
}

// Send implements Transport.
func (h *Hue) Send(ctx context.Context, cmd Command) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}

	state := huego.State{On: false}
	if cmd.Power {
		x, y, err := hexToXY(cmd.Color)
		if err != nil {
			return err
		}
		state = huego.State{
			On:  true,
			Bri: percentToHueBri(cmd.Brightness),
			Xy:  []float32{x, y},
		}
	}

	log.Debug().
		Str("bridge", h.desc.Bridge).
		Int("light", h.desc.LightID).
		Interface("state", state).
		Msg("Applying state to Hue light")

	if _, err := h.conn().SetLightStateContext(ctx, h.desc.LightID, state); err != nil {
		return fmt.Errorf("hue: set light %d state: %w", h.desc.LightID, err)
	}
	return nil
}

// Reset implements Transport. huego sends every request through
// http.DefaultClient, so its idle keep-alive connections are closed here
// to make the next command dial the bridge again.
func (h *Hue) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = nil
	http.DefaultClient.CloseIdleConnections()
}

func (h *Hue) conn() *huego.Bridge {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bridge == nil {
		h.bridge = huego.New(h.desc.Bridge, h.desc.Username)
	}
	return h.bridge
}

// percentToHueBri maps 0-100% onto the bridge's 1-254 brightness scale.
func percentToHueBri(percent int) uint8 {
	bri := int(math.Round(float64(percent) * 254 / 100))
	if bri < 1 {
		bri = 1
	}
	if bri > 254 {
		bri = 254
	}
	return uint8(bri)
}

// hexToXY converts an rrggbb color to CIE 1931 xy using the sRGB gamma
// curve and the wide-gamut conversion matrix published for Hue lights.
func hexToXY(hex string) (float32, float32, error) {
	if err := ValidateColor(hex); err != nil {
		return 0, 0, err
	}
	v, _ := strconv.ParseUint(hex, 16, 32)

	r := gammaCorrect(float64((v>>16)&0xff) / 255)
	g := gammaCorrect(float64((v>>8)&0xff) / 255)
	b := gammaCorrect(float64(v&0xff) / 255)

	X := r*0.664511 + g*0.154324 + b*0.162028
	Y := r*0.283881 + g*0.668433 + b*0.047685
	Z := r*0.000088 + g*0.072310 + b*0.986039

	sum := X + Y + Z
	if sum == 0 {
		// Black has no chromaticity; use the D65 white point.
		return 0.3127, 0.3290, nil
	}
	return float32(X / sum), float32(Y / sum), nil
}

func gammaCorrect(c float64) float64 {
	if c > 0.04045 {
		return math.Pow((c+0.055)/1.055, 2.4)
	}
	return c / 12.92
}
