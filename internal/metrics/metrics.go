// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Store operations (writes, reads, subtree deletes, fanout)
// - WebSocket connections and the store link
// - HTTP endpoint latency and throughput
// - Engine behavior (locks, classification, strokes, settle guard)
// - Background sweeping and replication

var (
	// Store Metrics
	StoreWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_writes_total",
			Help: "Total number of store writes applied",
		},
		[]string{"backend"},
	)

	StoreReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_reads_total",
			Help: "Total number of store reads served",
		},
		[]string{"backend"},
	)

	StoreDeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_subtree_deletes_total",
			Help: "Total number of subtree delete operations",
		},
		[]string{"backend"},
	)

	StoreDeletedPathsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_deleted_paths_total",
			Help: "Total number of paths removed by subtree deletes",
		},
		[]string{"backend"},
	)

	StoreFanoutEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_fanout_events_total",
			Help: "Total number of events published to the fanout",
		},
	)

	StoreFanoutDeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_fanout_deliveries_total",
			Help: "Total number of event deliveries to subscribers",
		},
	)

	// Store Link (Remote client) Metrics
	RemoteReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_link_reconnects_total",
			Help: "Total number of store link reconnections",
		},
	)

	RemoteWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_link_write_failures_total",
			Help: "Total number of writes rejected by the store link",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"breaker", "from", "to"},
	)

	// WebSocket Metrics
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
	)

	WSSlowClientDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_slow_client_disconnects_total",
			Help: "Total number of clients disconnected for not draining their send queue",
		},
	)

	WSIngressThrottledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ingress_throttled_total",
			Help: "Total number of inbound frames rejected by the per-connection rate limit",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Engine Metrics
	LockAcquiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lock_acquired_total",
			Help: "Total number of advisory lock acquisitions",
		},
		[]string{"kind"},
	)

	LockContentionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lock_contention_total",
			Help: "Total number of gestures blocked by a lock held elsewhere",
		},
		[]string{"kind"},
	)

	LockExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lock_leases_expired_total",
			Help: "Total number of lock leases observed expired and ignored",
		},
	)

	LockForceReleasedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lock_force_released_total",
			Help: "Total number of locks force-released by privileged participants",
		},
	)

	ClassifierReassignTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classifier_reassignments_total",
			Help: "Total number of note category reassignments persisted",
		},
	)

	RegionRepackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "region_repacks_total",
			Help: "Total number of region offset repacks",
		},
	)

	StrokePointsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stroke_points_total",
			Help: "Total number of stroke points captured",
		},
	)

	StrokesErasedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strokes_erased_total",
			Help: "Total number of strokes removed by the eraser",
		},
	)

	EraseCandidatesScanned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "erase_candidates_scanned",
			Help:    "Strokes examined per erase query after spatial index filtering",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	LimiterFlushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "limiter_flushes_total",
			Help: "Total number of rate-limited values actually written",
		},
		[]string{"limiter"},
	)

	SettleSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settle_guard_suppressed_total",
			Help: "Total number of remote position updates suppressed by the settle guard",
		},
	)

	// Sweeper Metrics
	SweeperPrunedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeper_pruned_total",
			Help: "Total number of stale records pruned by the sweeper",
		},
		[]string{"kind"},
	)

	// Replication Metrics
	ReplicationPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "replication_published_total",
			Help: "Total number of writes published to the replication stream",
		},
	)

	ReplicationAppliedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "replication_applied_total",
			Help: "Total number of peer writes applied from the replication stream",
		},
	)

	ReplicationLoopSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "replication_loop_suppressed_total",
			Help: "Total number of replication messages ignored as own-origin echoes",
		},
	)
)

// RecordStoreWrite counts one applied write.
func RecordStoreWrite(backend string) {
	StoreWritesTotal.WithLabelValues(backend).Inc()
}

// RecordStoreRead counts one served read.
func RecordStoreRead(backend string) {
	StoreReadsTotal.WithLabelValues(backend).Inc()
}

// RecordStoreDelete counts one subtree delete and the paths it removed.
func RecordStoreDelete(backend string, paths int) {
	StoreDeletesTotal.WithLabelValues(backend).Inc()
	StoreDeletedPathsTotal.WithLabelValues(backend).Add(float64(paths))
}

// RecordStoreFanout counts published events and per-subscriber deliveries.
func RecordStoreFanout(events, deliveries int) {
	StoreFanoutEventsTotal.Add(float64(events))
	StoreFanoutDeliveriesTotal.Add(float64(deliveries))
}

// RecordRemoteReconnect counts one successful store link redial.
func RecordRemoteReconnect() {
	RemoteReconnectsTotal.Inc()
}

// RecordRemoteWriteFailure counts one write rejected by the store link.
func RecordRemoteWriteFailure() {
	RemoteWriteFailuresTotal.Inc()
}

// RecordBreakerTransition records a circuit breaker state change. State is
// 0 for closed, 1 for half-open, 2 for open.
func RecordBreakerTransition(breaker, from, to string, state float64) {
	CircuitBreakerState.WithLabelValues(breaker).Set(state)
	CircuitBreakerTransitions.WithLabelValues(breaker, from, to).Inc()
}

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight HTTP request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// TrackWSConnection adjusts the active WebSocket connection gauge.
func TrackWSConnection(inc bool) {
	if inc {
		WSConnectionsActive.Inc()
	} else {
		WSConnectionsActive.Dec()
	}
}

// RecordLockAcquired counts one successful lock acquisition.
func RecordLockAcquired(kind string) {
	LockAcquiredTotal.WithLabelValues(kind).Inc()
}

// RecordLockContention counts one gesture refused because of a held lock.
func RecordLockContention(kind string) {
	LockContentionTotal.WithLabelValues(kind).Inc()
}

// RecordEraseScan records how many candidate strokes one erase examined.
func RecordEraseScan(candidates int) {
	EraseCandidatesScanned.Observe(float64(candidates))
}

// RecordLimiterFlush counts one value delivered by a rate limiter.
func RecordLimiterFlush(limiter string) {
	LimiterFlushTotal.WithLabelValues(limiter).Inc()
}

// RecordSweep counts records pruned by the background sweeper.
func RecordSweep(kind string, n int) {
	if n > 0 {
		SweeperPrunedTotal.WithLabelValues(kind).Add(float64(n))
	}
}
