// Package metrics exports the daemon's Prometheus counters: container
// lifecycle events from the supervisor and request outcomes from the remote
// API client. Grounded in the teacher's dependency graph, which already
// pulls in github.com/prometheus/client_golang indirectly; promoted here to
// a direct, actually-exercised import per SPEC_FULL.md §2.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ContainersStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacetraders_containers_started_total",
		Help: "Containers started by the supervisor, by container type.",
	}, []string{"container_type"})

	ContainersRestarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacetraders_containers_restarted_total",
		Help: "Container restarts performed by the supervisor, by container type.",
	}, []string{"container_type"})

	ContainersTerminated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacetraders_containers_terminated_total",
		Help: "Containers that reached a terminal state, by container type and outcome (completed/failed).",
	}, []string{"container_type", "outcome"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacetraders_api_requests_total",
		Help: "Requests issued to the SpaceTraders API, by outcome (ok/retried/error).",
	}, []string{"outcome"})

	APICircuitBreakerTrips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spacetraders_api_circuit_breaker_trips_total",
		Help: "Number of times the API client's circuit breaker opened.",
	})

	WorkQueueClaims = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spacetraders_work_queue_claims_total",
		Help: "Work queue pair claims, by outcome (completed/failed).",
	}, []string{"outcome"})
)
