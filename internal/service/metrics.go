package service

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AlamKhalidDev/product-search/pkg/httpclient"
)

var (
	engineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_engine_requests_total",
			Help: "Search engine calls by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	degradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_degraded_total",
			Help: "Requests answered with an empty result because the index is missing",
		},
		[]string{"op"},
	)
)

func observe(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, httpclient.ErrCircuitOpen):
		outcome = "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	engineRequestsTotal.WithLabelValues(op, outcome).Inc()
}
