package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workflowSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_workflow_steps_total",
			Help: "Order workflow steps by outcome.",
		},
		[]string{"step", "outcome"},
	)

	orderCreateAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_create_attempts_total",
			Help: "Order header and items write attempts by outcome.",
		},
		[]string{"outcome"},
	)

	cartClears = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_clear_total",
			Help: "Cart clearing results by the method that succeeded, or failed.",
		},
		[]string{"method"},
	)
)
