package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	panelRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cwp_panel_requests_total",
		Help: "Total CentOS WebPanel API requests by function and outcome",
	}, []string{"function", "outcome"})

	panelRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cwp_panel_request_duration_seconds",
		Help:    "CentOS WebPanel API request latency",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 20},
	}, []string{"function"})
)

// Request outcomes
const (
	outcomeSuccess   = "success"
	outcomeRejected  = "rejected"
	outcomeTransport = "transport_error"
)
