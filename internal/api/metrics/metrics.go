// Package metrics defines and registers all custom Prometheus metrics for the
// account service. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics register with the default Prometheus registry on package init via
// promauto and are exposed by the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "account"

// ── Session metrics ───────────────────────────────────────────────────────────

// RegistrationsTotal counts registration attempts.
// Label:
//   - outcome: "created", or the error kind ("validation", "conflict", "internal")
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by outcome.",
	},
	[]string{"outcome"},
)

// SessionOperationsTotal counts login, logout and refresh attempts.
// Labels:
//   - operation: "login", "logout", "refresh"
//   - outcome: "ok", or the error kind ("validation", "not_found", "auth", "internal")
var SessionOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_operations_total",
		Help:      "Total number of session operations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// TokenIssuanceFailuresTotal counts token pairs that could not be minted or stored.
var TokenIssuanceFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_issuance_failures_total",
		Help:      "Total number of failed token issuances.",
	},
)

// ── Media cleanup metrics ─────────────────────────────────────────────────────

// MediaCleanupTotal counts orphaned media objects handled by the cleanup dispatcher.
// Label:
//   - result: "deleted", "error", or "dropped" (queue full)
var MediaCleanupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "media_cleanup_total",
		Help:      "Total number of orphaned media objects processed, by result.",
	},
	[]string{"result"},
)

// MediaCleanupQueueDepth tracks pending deletions per cleanup worker.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var MediaCleanupQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "media_cleanup_queue_depth",
		Help:      "Current number of media objects pending deletion in each worker channel.",
	},
	[]string{"worker_id"},
)
