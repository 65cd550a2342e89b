// Package metrics exposes Prometheus collectors for the status light daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deviceSendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statuslight_device_send_failures_total",
		Help: "Failed attempts to deliver a command to the light, per target",
	}, []string{"target"})

	actuations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statuslight_actuations_total",
		Help: "Light actuations by band and outcome",
	}, []string{"band", "outcome"}) // outcome=success|failure

	sourcePolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statuslight_source_polls_total",
		Help: "Source polls by source and resulting status",
	}, []string{"source", "status"})

	currentStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "statuslight_current_status",
		Help: "Winning status of the last cycle (1 for the active status and source)",
	}, []string{"status", "source"})

	activeHours = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "statuslight_active_hours",
		Help: "Whether the last cycle ran inside active hours (1) or not (0)",
	})

	loopCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statuslight_loop_cycles_total",
		Help: "Control loop cycles by outcome",
	}, []string{"outcome"}) // outcome=actuated|unchanged|paused|panic
)

// ObserveDeviceSendFailure records one failed send attempt.
func ObserveDeviceSendFailure(target string) {
	deviceSendFailures.WithLabelValues(target).Inc()
}

// ObserveActuation records the outcome of driving the light for a band.
func ObserveActuation(band string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	actuations.WithLabelValues(band, outcome).Inc()
}

// ObserveSourcePoll records the status a source returned.
func ObserveSourcePoll(source, status string) {
	sourcePolls.WithLabelValues(source, status).Inc()
}

// SetCurrentStatus marks status/source as the current winner.
func SetCurrentStatus(status, source string) {
	currentStatus.Reset()
	currentStatus.WithLabelValues(status, source).Set(1)
}

// SetActiveHours records whether the loop is inside active hours.
func SetActiveHours(active bool) {
	if active {
		activeHours.Set(1)
		return
	}
	activeHours.Set(0)
}

// ObserveCycle records one control loop cycle.
func ObserveCycle(outcome string) {
	loopCycles.WithLabelValues(outcome).Inc()
}
