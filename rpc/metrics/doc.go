// Package metrics collects counters, gauges and latency histograms of the switch and
// the replica server and exposes them in the Prometheus text format.
//
// Each component owns a Registry (a VictoriaMetrics metric set). Series are named
// `dts_<name>{component="<component>",<labels>}`. Serve starts an HTTP endpoint that
// writes all registries plus the process metrics on GET /metrics.
package metrics
