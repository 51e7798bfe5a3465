// Package metrics exposes bot counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"FacilityBot/bot/chat"
)

// Metrics owns a private registry so tests can build it repeatedly.
type Metrics struct {
	Registry *prometheus.Registry

	sessionsStarted   *prometheus.CounterVec
	stepsAdvanced     *prometheus.CounterVec
	invalidInputs     *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec
	actionFailures    *prometheus.CounterVec
	inboundMessages   *prometheus.CounterVec
	classifyDuration  prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		sessionsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_sessions_started_total",
				Help: "Sessions started by script.",
			},
			[]string{"script"},
		),
		stepsAdvanced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_steps_advanced_total",
				Help: "Non-terminal step transitions.",
			},
			[]string{"script", "step"},
		),
		invalidInputs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_invalid_inputs_total",
				Help: "Inputs that did not match the current step.",
			},
			[]string{"script", "step"},
		),
		sessionsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_sessions_completed_total",
				Help: "Sessions that reached a terminal step.",
			},
			[]string{"script", "action"},
		),
		actionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_action_failures_total",
				Help: "Completion actions that returned an error.",
			},
			[]string{"action"},
		),
		inboundMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_inbound_messages_total",
				Help: "Inbound chat messages by type and routing.",
			},
			[]string{"type", "route"},
		),
		classifyDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bot_classify_duration_seconds",
				Help:    "Duration of message classification.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) SessionStarted(scriptID string) {
	m.sessionsStarted.WithLabelValues(scriptID).Inc()
}

func (m *Metrics) StepAdvanced(scriptID string, step chat.StepID) {
	m.stepsAdvanced.WithLabelValues(scriptID, string(step)).Inc()
}

func (m *Metrics) InvalidInput(scriptID string, step chat.StepID) {
	m.invalidInputs.WithLabelValues(scriptID, string(step)).Inc()
}

func (m *Metrics) SessionCompleted(scriptID, action string) {
	m.sessionsCompleted.WithLabelValues(scriptID, action).Inc()
}

func (m *Metrics) ActionFailed(action string) {
	m.actionFailures.WithLabelValues(action).Inc()
}

// InboundMessage counts a message by its type and whether it continued a
// session, cancelled one or started intake.
func (m *Metrics) InboundMessage(msgType, route string) {
	m.inboundMessages.WithLabelValues(msgType, route).Inc()
}

func (m *Metrics) ObserveClassify(d time.Duration) {
	m.classifyDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
