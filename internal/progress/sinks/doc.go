// Package sinks implements concrete progress consumers: Prometheus metrics,
// run-history persistence, structured logging and the live feed behind the
// job event stream. Each sink satisfies progress.Sink and tolerates repeated
// Consume calls.
package sinks
