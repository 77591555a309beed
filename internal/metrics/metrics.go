package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PostbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postback_requests_total",
		Help: "Total number of postbacks handled, labelled by outcome.",
	}, []string{"outcome"})

	DeliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "postback_delivery_duration_seconds",
		Help:    "Latency of outbound chat deliveries.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	AnalyticsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postback_analytics_dropped_total",
		Help: "Total number of audit rows not offered to analytics due to a full queue.",
	})

	AnalyticsFlushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postback_analytics_flushed_total",
		Help: "Total number of audit rows flushed to analytics, labelled by result.",
	}, []string{"result"})
)
