// Package metrics defines the custom Prometheus metrics of the inventory API.
// It is the single source of truth for metric names, labels and help strings.
// Metrics register with the default registry on package load.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inventory"

// ── Scan metrics ──────────────────────────────────────────────────────────────

// ScansProcessedTotal counts scans that completed successfully.
// Label:
//   - action: stored, dispatched, installed, uninstalled or already_completed
var ScansProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scans_processed_total",
		Help:      "Total number of QR scans successfully processed, by resulting action.",
	},
	[]string{"action"},
)

// ScanErrorsTotal counts scans that failed.
// Label:
//   - reason: invalid_qr, invalid_request, store or internal
var ScanErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scan_errors_total",
		Help:      "Total number of QR scans that failed, by reason.",
	},
	[]string{"reason"},
)

// ScanReplaysTotal counts scans carrying an Idempotency-Key.
// Label:
//   - result: "hit" (answered from the replay cache) or "miss"
var ScanReplaysTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scan_replays_total",
		Help:      "Total number of idempotent scan requests, labelled by cache result (hit/miss).",
	},
	[]string{"result"},
)

// ScanQueueDepth tracks pending scans per serializer worker.
// Label:
//   - worker_id: numeric worker index
var ScanQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scan_queue_depth",
		Help:      "Current number of scans waiting in each per-key serializer worker.",
	},
	[]string{"worker_id"},
)

// ScanDuration measures a scan from request to persisted transition.
// Label:
//   - action: the resulting action, or "error"
var ScanDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scan_duration_seconds",
		Help:      "Duration of scan processing including queueing and persistence.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"action"},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthAttemptsTotal counts login validations.
// Label:
//   - result: success, not_authorized, type_mismatch or error
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of credential validations, by outcome.",
	},
	[]string{"result"},
)

// UserChangesTotal counts successful user management operations.
// Label:
//   - operation: created, updated or deleted
var UserChangesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_changes_total",
		Help:      "Total number of user accounts created, updated or deleted.",
	},
	[]string{"operation"},
)
