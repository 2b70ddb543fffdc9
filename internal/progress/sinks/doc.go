// Package sinks contains progress.Sink implementations: structured zap logs,
// Prometheus collectors and an in-memory buffer.
package sinks
