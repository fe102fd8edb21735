// Package metrics defines and registers the custom Prometheus metrics of the
// CRM identity service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default registry on package init through
// promauto; HTTP request metrics come from echoprometheus in the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crm_identity"

// ── Authentication ───────────────────────────────────────────────────────────

// AuthAttemptsTotal counts authentication attempts by internal outcome.
// Label:
//   - outcome: "success", "cache_hit", "not_found", "inactive", "bad_password", "unavailable"
//
// The outcome label is for operators only; callers always see a single
// "authentication failed" result.
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of authentication attempts, by outcome.",
	},
	[]string{"outcome"},
)

// AuthCacheTotal counts authentication cache lookups.
// Label:
//   - result: "hit", "miss", or "error"
var AuthCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_cache_lookups_total",
		Help:      "Total number of authentication cache lookups, by result.",
	},
	[]string{"result"},
)

// StoreLookupDuration measures account lookups made while authenticating.
// Label:
//   - by: "username" or "email"
var StoreLookupDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "store_lookup_duration_seconds",
		Help:      "Duration of account lookups performed during authentication.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 8, 10},
	},
	[]string{"by"},
)

// HashDuration measures bcrypt work.
// Label:
//   - op: "hash" or "verify"
var HashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "password_hash_duration_seconds",
		Help:      "Duration of password hashing and verification.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"op"},
)

// ── Account lifecycle ────────────────────────────────────────────────────────

// AccountOperationsTotal counts lifecycle operations.
// Labels:
//   - op: "create", "update", "delete", "reset_password"
//   - result: "ok", "forbidden", "cardinality", "invalid", "not_found", "error"
var AccountOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "account_operations_total",
		Help:      "Total number of account lifecycle operations, by operation and result.",
	},
	[]string{"op", "result"},
)

// ── Audit ────────────────────────────────────────────────────────────────────

// AuditQueueDepth tracks pending audit events in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditDroppedTotal counts audit events dropped because a worker queue was full.
var AuditDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_dropped_total",
		Help:      "Total number of audit events dropped because the queue was full.",
	},
)
