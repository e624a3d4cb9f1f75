package relay

import "github.com/prometheus/client_golang/prometheus"

// Drop reasons reported on the dropped-frames counter.
const (
	dropNoDestination = "no_destination"
	dropBufferFull    = "buffer_full"
	dropRateLimited   = "rate_limited"
)

// Metrics holds the relay's Prometheus collectors.
type Metrics struct {
	frames      *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	connections prometheus.Gauge
	joined      prometheus.Gauge
}

// NewMetrics creates the relay collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sealrelay",
			Name:      "frames_total",
			Help:      "Inbound frames accepted, by kind.",
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sealrelay",
			Name:      "dropped_frames_total",
			Help:      "Frames dropped without delivery, by kind and reason.",
		}, []string{"kind", "reason"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sealrelay",
			Name:      "rejected_frames_total",
			Help:      "Inbound frames rejected with an error frame, by reason.",
		}, []string{"reason"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sealrelay",
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}),
		joined: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sealrelay",
			Name:      "joined_identities",
			Help:      "Identities currently listed in the directory.",
		}),
	}
	reg.MustRegister(m.frames, m.dropped, m.rejected, m.connections, m.joined)
	return m
}
