// Package metrics defines and registers the custom Prometheus metrics of the
// AnonyChat API. It is the single source of truth for metric names, labels and
// help strings.
//
// Metrics are registered with the default registry through promauto at package
// init; HTTP request metrics come from the echoprometheus middleware instead.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric this service exports.
const Namespace = "anonychat"

// ── Account metrics ───────────────────────────────────────────────────────────

// AccountsRegisteredTotal counts signup attempts that reached the store.
// Label:
//   - result: "created", "replaced" (unverified account retried) or "conflict"
var AccountsRegisteredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "accounts_registered_total",
		Help:      "Total number of signup attempts, by outcome.",
	},
	[]string{"result"},
)

// SessionsTotal counts sign-in attempts.
// Label:
//   - result: "ok", "invalid_credentials", "not_verified"
var SessionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "sessions_total",
		Help:      "Total number of sign-in attempts, by outcome.",
	},
	[]string{"result"},
)

// ── Verification metrics ──────────────────────────────────────────────────────

// CodesIssuedTotal counts verification codes issued and emailed.
// Label:
//   - purpose: "verify-email" or "password-reset"
var CodesIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "verification_codes_issued_total",
		Help:      "Total number of verification codes issued, by purpose.",
	},
	[]string{"purpose"},
)

// CodeRedemptionsTotal counts redemption attempts.
// Labels:
//   - purpose: "verify-email" or "password-reset"
//   - result: "ok", "invalid", "expired"
var CodeRedemptionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "verification_code_redemptions_total",
		Help:      "Total number of verification code redemptions, by purpose and result.",
	},
	[]string{"purpose", "result"},
)

// ── Inbox metrics ─────────────────────────────────────────────────────────────

// MessagesDeliveredTotal counts messages appended to an inbox.
var MessagesDeliveredTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "messages_delivered_total",
		Help:      "Total number of anonymous messages delivered.",
	},
)

// MessagesRejectedTotal counts public deliveries that were refused.
// Label:
//   - reason: "not_found", "not_accepting", "throttled", "invalid"
var MessagesRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "messages_rejected_total",
		Help:      "Total number of refused message deliveries, by reason.",
	},
	[]string{"reason"},
)

// MessagesDeletedTotal counts owner delete requests that succeeded.
var MessagesDeletedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "messages_deleted_total",
		Help:      "Total number of message delete requests that succeeded.",
	},
)

// ── Upstream metrics ──────────────────────────────────────────────────────────

// ThrottleDecisionsTotal counts rate limiter decisions.
// Labels:
//   - scope: "code_issue" or "delivery"
//   - result: "allowed", "limited", "error"
var ThrottleDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "throttle_decisions_total",
		Help:      "Total number of rate limiter decisions, by scope and result.",
	},
	[]string{"scope", "result"},
)

// AIRequestDuration measures calls to the generative-AI provider.
// Labels:
//   - operation: "suggest" or "summarize"
//   - result: "ok" or "error"
var AIRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "ai_request_duration_seconds",
		Help:      "Duration of generative-AI provider calls.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
	},
	[]string{"operation", "result"},
)
