// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces that generation workers use to report job progress. The hub batches
// events on a background goroutine and fans them out to pluggable sinks such as
// Prometheus metrics, the run repository, structured logs and live subscribers.
package progress
