// Package metrics defines the sinks that receive dispatch observations:
// job transitions, broadcasts, escalations, failed notifications and the
// size of the technician pool. Sinks like PromSink and InfluxSink live in
// infra/metrics and register themselves with the factory here. When more
// than one sink is configured NewMetricsSink wraps them in a MultiSink.
package metrics
