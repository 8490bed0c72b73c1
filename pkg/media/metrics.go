package media

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes per-session counters and gauges as Prometheus
// collectors, registered once and updated by Session as it sends and
// receives packets.
type Metrics struct {
	PacketsSent     prometheus.Counter
	OctetsSent      prometheus.Counter
	PacketsReceived prometheus.Counter
	PacketsLost     prometheus.Gauge
	Jitter          prometheus.Gauge
}

// NewMetrics builds a Metrics set labeled with ssrc and registers it
// against reg. Pass prometheus.NewRegistry() (or nil to use the
// default global registry) from the application.
func NewMetrics(reg prometheus.Registerer, ssrc uint32) *Metrics {
	labels := prometheus.Labels{"ssrc": uint32ToLabel(ssrc)}

	m := &Metrics{
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rtpaudio_packets_sent_total",
			Help:        "RTP packets transmitted by this session.",
			ConstLabels: labels,
		}),
		OctetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rtpaudio_octets_sent_total",
			Help:        "RTP payload bytes transmitted by this session.",
			ConstLabels: labels,
		}),
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rtpaudio_packets_received_total",
			Help:        "RTP packets received by this session.",
			ConstLabels: labels,
		}),
		PacketsLost: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "rtpaudio_packets_lost",
			Help:        "Cumulative estimated packet loss for this session, per RFC 3550 A.3.",
			ConstLabels: labels,
		}),
		Jitter: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "rtpaudio_jitter_timestamp_units",
			Help:        "RFC 3550 A.8 interarrival jitter estimate, in RTP timestamp units.",
			ConstLabels: labels,
		}),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.PacketsSent, m.OctetsSent, m.PacketsReceived, m.PacketsLost, m.Jitter)
	return m
}

func uint32ToLabel(v uint32) string {
	const hex = "0123456789abcdef"
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = hex[v&0xF]
		v >>= 4
	}
	return string(b)
}
