// Package types defines the data structures shared between the
// orchestrator (control plane) and the runner agent (data plane):
// the Runner bookkeeping record, its NetworkMode variants, and the
// stable error-kind taxonomy used to map internal failures onto HTTP
// status codes.
package types
