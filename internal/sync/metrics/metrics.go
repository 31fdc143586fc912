package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Pushes          prometheus.Counter
	PushFailures    *prometheus.CounterVec
	SnapshotsSeen   prometheus.Counter
	Adoptions       prometheus.Counter
	Keeps           prometheus.Counter
	OnlineInstances prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Pushes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkdesk_sync_pushes_total",
			Help: "Total number of outbound snapshot pushes",
		}),
		PushFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "checkdesk_sync_push_failures_total",
			Help: "Total number of failed pushes by transport",
		}, []string{"transport"}),
		SnapshotsSeen: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkdesk_sync_inbound_snapshots_total",
			Help: "Total number of inbound snapshots offered to reconciliation",
		}),
		Adoptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkdesk_sync_adoptions_total",
			Help: "Total number of inbound snapshots adopted",
		}),
		Keeps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "checkdesk_sync_keeps_total",
			Help: "Total number of inbound snapshots discarded as stale",
		}),
		OnlineInstances: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "checkdesk_online_instances",
			Help: "Distinct live sessions seen on the broadcast channel",
		}),
	}
}
