package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/statuslight/internal/config"
	"github.com/dokzlo13/statuslight/internal/controller"
	"github.com/dokzlo13/statuslight/internal/precedence"
	"github.com/dokzlo13/statuslight/internal/schedule"
)

// Reporter exposes the latest control-loop snapshot.
type Reporter interface {
	Report() controller.Report
}

// HealthService provides the HTTP health, status and metrics endpoints.
type HealthService struct {
	cfg             config.HealthcheckConfig
	shutdownTimeout time.Duration
	reporter        Reporter
	events          *EventService
	window          schedule.Window
}

// NewHealthService creates a new HealthService.
// events may be nil.
func NewHealthService(
	cfg config.HealthcheckConfig,
	shutdownTimeout time.Duration,
	reporter Reporter,
	events *EventService,
	window schedule.Window,
) *HealthService {
	return &HealthService{
		cfg:             cfg,
		shutdownTimeout: shutdownTimeout,
		reporter:        reporter,
		events:          events,
		window:          window,
	}
}

// Router builds the HTTP handler.
func (s *HealthService) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// Ready once the first cycle has completed.
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if s.reporter.Report().UpdatedAt.IsZero() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type statusResponse struct {
	Status             string              `json:"status"`
	Source             string              `json:"source"`
	Band               string              `json:"band"`
	Mode               string              `json:"mode"`
	ActuationSucceeded bool                `json:"actuation_succeeded"`
	ActiveHours        string              `json:"active_hours"`
	Collaboration      precedence.Readings `json:"collaboration"`
	Calendar           precedence.Readings `json:"calendar"`
	UpdatedAt          *time.Time          `json:"updated_at,omitempty"`
	Events             []EventRecord       `json:"recent_events"`
}

func (s *HealthService) handleStatus(w http.ResponseWriter, r *http.Request) {
	rep := s.reporter.Report()

	resp := statusResponse{
		Status:             rep.State.LastStatus.String(),
		Source:             rep.State.LastSource.String(),
		Band:               rep.Band.String(),
		Mode:               rep.Mode.String(),
		ActuationSucceeded: rep.State.LastActuationSucceeded,
		ActiveHours:        s.window.String(),
		Collaboration:      rep.Collaboration,
		Calendar:           rep.Calendar,
		Events:             []EventRecord{},
	}
	if !rep.UpdatedAt.IsZero() {
		t := rep.UpdatedAt
		resp.UpdatedAt = &t
	}
	if s.events != nil {
		resp.Events = s.events.Recent()
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

// Run serves until ctx is done, then shuts the server down.
func (s *HealthService) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Starting status server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Status server shutdown error")
	}
	return <-errCh
}
