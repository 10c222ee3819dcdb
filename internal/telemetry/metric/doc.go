// Package metric provides Prometheus metrics for quicksave.
//
// quicksave is a short-lived CLI, so metrics are not served over HTTP.
// Instead each command records pipeline outcomes into a private registry
// and, when metrics.textfile is configured, writes them in the text
// exposition format for the node-exporter textfile collector.
//
// Metrics include:
//
//   - quicksave_operations_total{op,outcome}
//   - quicksave_operation_duration_seconds{op}
//   - quicksave_artifact_size_bytes
//   - quicksave_compat_verdicts_total{verdict}
package metric
