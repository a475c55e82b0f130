// Package metrics holds the prometheus collectors of the bot.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	sessionsStarted prometheus.Counter
	sessionsEnded   *prometheus.CounterVec
	panelUpdates    *prometheus.CounterVec
	forceScans      prometheus.Counter
	scanFailures    prometheus.Counter
	streamChecks    *prometheus.CounterVec
	presenceEvents  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apbeeper",
			Name:      "sessions_started_total",
			Help:      "Play sessions started.",
		}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apbeeper",
			Name:      "sessions_ended_total",
			Help:      "Play sessions ended, by reason.",
		}, []string{"reason"}),
		panelUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apbeeper",
			Name:      "panel_updates_total",
			Help:      "Panel refreshes, by kind and result.",
		}, []string{"kind", "result"}),
		forceScans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apbeeper",
			Name:      "force_scans_total",
			Help:      "Force scans run.",
		}),
		scanFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apbeeper",
			Name:      "force_scan_member_failures_total",
			Help:      "Members a force scan could not update.",
		}),
		streamChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apbeeper",
			Name:      "stream_checks_total",
			Help:      "Twitch streamer checks, by result.",
		}, []string{"result"}),
		presenceEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apbeeper",
			Name:      "presence_events_total",
			Help:      "Presence updates reduced.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsStarted,
		m.sessionsEnded,
		m.panelUpdates,
		m.forceScans,
		m.scanFailures,
		m.streamChecks,
		m.presenceEvents,
	)
	return m
}

// Reasons a session ends
const (
	EndPresence   = "presence"
	EndUnresolved = "unresolved"
	EndScan       = "scan"
	EndStale      = "stale"
)

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SessionStarted() {
	if m != nil {
		m.sessionsStarted.Inc()
	}
}

func (m *Metrics) SessionsEnded(reason string, count int) {
	if m != nil && count > 0 {
		m.sessionsEnded.WithLabelValues(reason).Add(float64(count))
	}
}

func (m *Metrics) PanelUpdated(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.panelUpdates.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ForceScan(failures int) {
	if m != nil {
		m.forceScans.Inc()
		m.scanFailures.Add(float64(failures))
	}
}

func (m *Metrics) StreamChecked(result string) {
	if m != nil {
		m.streamChecks.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) PresenceEvent() {
	if m != nil {
		m.presenceEvents.Inc()
	}
}
