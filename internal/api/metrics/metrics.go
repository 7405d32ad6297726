// Package metrics defines and registers the custom Prometheus metrics for the
// session-security gateway. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "session_security"

// ── Authentication metrics ───────────────────────────────────────────────────

// LoginAttemptsTotal counts login submissions.
// Label:
//   - result: "success" or the failure kind (e.g. "bad_credentials", "internal_error")
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login submissions, by result.",
	},
	[]string{"result"},
)

// ── Session metrics ──────────────────────────────────────────────────────────

// SessionsDisplacedTotal counts sessions ended by a newer login for the same identifier.
var SessionsDisplacedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_displaced_total",
		Help:      "Total number of sessions evicted by a newer login of the same user.",
	},
)

// SessionsEndedTotal counts sessions ended for reasons other than displacement.
// Label:
//   - reason: "logout", "expired", or "admin_eviction"
var SessionsEndedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_ended_total",
		Help:      "Total number of sessions ended, by reason.",
	},
	[]string{"reason"},
)

// ── Authorization metrics ────────────────────────────────────────────────────

// AccessDecisionsTotal counts gate decisions.
// Label:
//   - decision: "allow", "require_login", or "forbidden"
var AccessDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_decisions_total",
		Help:      "Total number of access policy decisions, by outcome.",
	},
	[]string{"decision"},
)

// ── HTTP metrics ─────────────────────────────────────────────────────────────

// HTTPRequestsTotal counts handled requests.
// Labels:
//   - method: HTTP method
//   - route: the registered route pattern (e.g. "/admin/sessions/:identifier")
//   - status: response status code
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests handled.",
	},
	[]string{"method", "route", "status"},
)

// HTTPRequestDuration measures request latency per route.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)
