// Package prometheus renders engine counters and the authentication
// latency histogram in the Prometheus text format. The exporter keeps no
// registry of its own; callers mount [PrometheusExporter.Handler].
package prometheus
