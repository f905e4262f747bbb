// Package infra groups the adapters that connect the dispatch engine to
// the outside world: MQTT transport, SQLite job storage, metric sinks,
// Sentry and location telemetry. Adapters implement interfaces owned by
// the core packages and never the other way round.
package infra
