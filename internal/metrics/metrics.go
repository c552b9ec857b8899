// Package metrics exposes interactive flow counters in Prometheus format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements interactive.Recorder.
type Metrics struct {
	FlowsTotal       *prometheus.CounterVec
	FlowDuration     prometheus.Histogram
	PortBindAttempts *prometheus.CounterVec
	StrayRequests    *prometheus.CounterVec
	BrowserLaunches  *prometheus.CounterVec
}

// New registers the loopauth metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FlowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loopauth_interactive_flows_total",
			Help: "Interactive flows by terminal outcome",
		}, []string{"outcome"}),
		FlowDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loopauth_interactive_flow_duration_seconds",
			Help:    "Duration of Coordinator.Run from the call to the terminal outcome or error",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		PortBindAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loopauth_port_bind_attempts_total",
			Help: "Loopback bind attempts by result",
		}, []string{"result"}),
		StrayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loopauth_stray_requests_total",
			Help: "Requests to the loopback listener without the expected state",
		}, []string{"limited"}),
		BrowserLaunches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loopauth_browser_launches_total",
			Help: "Browser launch attempts by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) FlowFinished(outcome string, duration time.Duration) {
	m.FlowsTotal.WithLabelValues(outcome).Inc()
	m.FlowDuration.Observe(duration.Seconds())
}

func (m *Metrics) PortBindAttempt(success bool) {
	m.PortBindAttempts.WithLabelValues(result(success)).Inc()
}

func (m *Metrics) StrayRequest(limited bool) {
	label := "false"
	if limited {
		label = "true"
	}
	m.StrayRequests.WithLabelValues(label).Inc()
}

func (m *Metrics) BrowserLaunch(success bool) {
	m.BrowserLaunches.WithLabelValues(result(success)).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// WriteTextfile writes everything gathered by g to path in the node
// exporter textfile format. The write is atomic.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	return prometheus.WriteToTextfile(path, g)
}
