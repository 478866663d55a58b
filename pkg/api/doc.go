// Package api implements the control-plane HTTP surface: provision,
// heartbeat, and deprovision handlers backed by pkg/orchestrator, plus
// the ambient /healthz and /metrics endpoints.
package api
