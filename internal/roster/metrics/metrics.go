package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CheckIns    *prometheus.CounterVec
	ShirtsGiven prometheus.Counter
	Resets      prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		CheckIns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkdesk_checkins_total",
			Help: "Total number of check-in toggles applied",
		}, []string{"collection"}),
		ShirtsGiven: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkdesk_shirts_distributed_total",
			Help: "Total number of shirt handout toggles applied",
		}),
		Resets: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkdesk_resets_total",
			Help: "Total number of full data resets",
		}),
	}
}

func (m *Metrics) IncrementCheckIn(collection string) {
	m.CheckIns.WithLabelValues(collection).Inc()
}

func (m *Metrics) IncrementShirtGiven() {
	m.ShirtsGiven.Inc()
}

func (m *Metrics) IncrementReset() {
	m.Resets.Inc()
}
