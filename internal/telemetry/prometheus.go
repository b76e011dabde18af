package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "novastrike"

// PromMetrics implements Metrics on a Prometheus registry.
type PromMetrics struct {
	sessions       prometheus.Gauge
	authenticated  prometheus.Gauge
	packetsIn      *prometheus.CounterVec
	packetsDropped *prometheus.CounterVec
	snapshotBytes  prometheus.Counter
	tickDuration   prometheus.Histogram
}

// NewPromMetrics registers the server's metric family on reg. Pass
// prometheus.DefaultRegisterer outside of tests.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	factory := promauto.With(reg)
	return &PromMetrics{
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_open",
			Help:      "Currently open transport connections.",
		}),
		authenticated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "players_authenticated",
			Help:      "Players holding an assigned player id.",
		}),
		packetsIn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "packets_received_total",
			Help:      "Inbound packets by opcode.",
		}, []string{"opcode"}),
		packetsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "packets_dropped_total",
			Help:      "Discarded inbound packets by reason.",
		}, []string{"reason"}),
		snapshotBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_bytes_total",
			Help:      "Bytes of unreliable state sent to clients.",
		}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent inside one simulation tick.",
			Buckets:   []float64{.0005, .001, .002, .004, .008, .016, .032, .064},
		}),
	}
}

func (m *PromMetrics) SessionOpened()       { m.sessions.Inc() }
func (m *PromMetrics) SessionClosed()       { m.sessions.Dec() }
func (m *PromMetrics) PlayerAuthenticated() { m.authenticated.Inc() }
func (m *PromMetrics) PlayerRemoved()       { m.authenticated.Dec() }

func (m *PromMetrics) PacketReceived(opcode string) {
	m.packetsIn.WithLabelValues(opcode).Inc()
}

func (m *PromMetrics) PacketDropped(reason string) {
	m.packetsDropped.WithLabelValues(reason).Inc()
}

func (m *PromMetrics) SnapshotBytes(n int) {
	m.snapshotBytes.Add(float64(n))
}

func (m *PromMetrics) TickObserved(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}
