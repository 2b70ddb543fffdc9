// Package progress defines the events a metascan run reports while it works
// and the Recorder that forwards them, in order, to pluggable sinks such as
// structured logs, Prometheus collectors or an in-memory buffer for tests.
package progress
