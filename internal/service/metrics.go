package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cwp_lifecycle_transitions_total",
	Help: "Service lifecycle transitions by transition and outcome",
}, []string{"transition", "outcome"})

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
)
