// Package log provides structured logging shared by the orchestrator
// and runner binaries, wrapping zerolog with a process-wide Logger and
// small helpers for attaching session/container context to a child
// logger.
package log
