// Package runtime defines the container driver boundary the
// orchestrator provisions runners through, and a Docker Engine
// implementation of it.
package runtime

import (
	"context"

	"github.com/tailot/taylored-orchestrator/pkg/types"
)

// Handle identifies a created container to later Driver calls.
type Handle struct {
	ID string
}

// ContainerConfig describes the runner container to create.
type ContainerConfig struct {
	Image     string
	SessionID string
	Env       []string
	Labels    map[string]string
	Network   types.NetworkMode
}

// State is the driver's normalized view of a container's run state.
type State struct {
	Running  bool
	ExitCode int
}

// Driver is the seam between the orchestrator and a concrete container
// backend. Every method wraps backend-specific errors into a
// *types.OrchestratorError with a stable kind before returning, so
// callers never inspect backend error types directly.
type Driver interface {
	// ImageExists reports whether name is present in local image
	// storage without attempting to pull it.
	ImageExists(ctx context.Context, name string) (bool, error)

	// Create makes (but does not start) a container for cfg.
	Create(ctx context.Context, cfg ContainerConfig) (Handle, error)

	// Start starts a previously created container.
	Start(ctx context.Context, h Handle) error

	// Inspect returns the current state of a container.
	Inspect(ctx context.Context, h Handle) (State, error)

	// Stop asks a running container to terminate gracefully, killing it
	// if it does not exit within the backend's own grace period.
	Stop(ctx context.Context, h Handle) error

	// Remove deletes a stopped container.
	Remove(ctx context.Context, h Handle) error

	// ListBySessionLabel lists every container carrying the session-id
	// label, regardless of its run state, keyed by the label's value.
	// Used by the reaper's startup reconciliation pass.
	ListBySessionLabel(ctx context.Context) (map[string]Handle, error)
}

// SessionLabel is the Docker label key the orchestrator stamps onto
// every runner container it creates, and the key ListBySessionLabel
// reads back.
const SessionLabel = "taylored-runner-session-id"
