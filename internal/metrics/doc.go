// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

/*
Package metrics provides Prometheus instrumentation for the server and the
engine.

All collectors are registered with the default registry via promauto at
package load, so importing any instrumented package is enough to expose its
metrics; the server serves them on /metrics through promhttp.

Naming follows Prometheus conventions: counters end in _total, durations
are histograms in seconds, gauges describe current state. Label cardinality
is kept deliberately low (backend, lock kind, HTTP route pattern); nothing
derived from user input becomes a label.

The package exposes both raw collectors (for callers composing their own
label sets, such as the circuit breaker wiring) and Record* helpers for
the common single-call sites.
*/
package metrics
