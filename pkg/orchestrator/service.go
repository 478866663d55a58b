// Package orchestrator implements the provision/heartbeat/deprovision
// use cases and the inactivity reaper on top of pkg/registry and
// pkg/runtime.
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tailot/taylored-orchestrator/pkg/health"
	"github.com/tailot/taylored-orchestrator/pkg/log"
	"github.com/tailot/taylored-orchestrator/pkg/metrics"
	"github.com/tailot/taylored-orchestrator/pkg/portalloc"
	"github.com/tailot/taylored-orchestrator/pkg/registry"
	"github.com/tailot/taylored-orchestrator/pkg/runtime"
	"github.com/tailot/taylored-orchestrator/pkg/storage"
	"github.com/tailot/taylored-orchestrator/pkg/types"
)

// Config configures a Service.
type Config struct {
	Registry *registry.Registry
	Driver   runtime.Driver

	// Image is the runner image provisioned for every session.
	Image string

	// ContainerPort is the port the runner process listens on inside
	// the container, used for the default and custom network modes.
	ContainerPort int

	// ReadinessTimeout bounds the best-effort post-start TCP probe in
	// default network mode. Zero disables the probe.
	ReadinessTimeout time.Duration

	// Store, if non-nil, persists each runner record when it is inserted
	// and deletes it when the runner is deprovisioned, for crash-recovery
	// reconciliation on the next startup. Heartbeat timestamp updates are
	// not written to it.
	Store *storage.BoltStore
}

// Service implements the control plane's three core operations.
type Service struct {
	cfg Config
}

// New constructs a Service from cfg.
func New(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// ProvisionResult carries the outcome of a provision request, including
// the exact status wording the API layer echoes back to the client.
type ProvisionResult struct {
	Runner  types.Runner
	Fresh   bool
	Message string
}

// Endpoint renders the runner's published endpoint, or the isolated
// placeholder when it holds no published port.
func (r ProvisionResult) Endpoint(host string) string {
	if r.Runner.Network.Kind == types.NetworkModeNone {
		return "N/A (isolated network mode)"
	}
	return host + ":" + portValueFromInt(r.Runner.Network.HostPort)
}

// Provision creates, starts, and (for the Default network mode, when
// ReadinessTimeout is set) best-effort probes a runner for sessionID. In per-session mode,
// provisioning a session id that already has a live runner is
// idempotent: the existing record is returned with a distinct message.
// In reuse mode every provision maps onto the one shared singleton.
func (s *Service) Provision(ctx context.Context, sessionID string, netReq types.NetworkMode) (ProvisionResult, error) {
	if sessionID == "" {
		return ProvisionResult{}, types.NewOrchestratorError(types.ErrSessionIDRequired, "session id is required", nil)
	}

	if existing, ok := s.cfg.Registry.Lookup(sessionID); ok {
		s.cfg.Registry.Touch(sessionID, time.Now())
		message := "Runner already exists for this session."
		if s.cfg.Registry.Mode() == registry.Reuse {
			message = "Returning existing singleton runner."
		}
		metrics.ProvisionRequestsTotal.WithLabelValues("idempotent").Inc()
		return ProvisionResult{Runner: existing, Fresh: false, Message: message}, nil
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ProvisionDuration)

	netMode := netReq
	if netMode.Kind != types.NetworkModeNone {
		netMode.ContainerPort = s.cfg.ContainerPort
		port, err := portalloc.Allocate()
		if err != nil {
			metrics.ProvisionRequestsTotal.WithLabelValues("error").Inc()
			return ProvisionResult{}, types.NewOrchestratorError(types.ErrServer, "allocate host port", err)
		}
		netMode.HostPort = port
	}

	cfg := runtime.ContainerConfig{
		Image:     s.cfg.Image,
		SessionID: sessionID,
		Env:       []string{"PORT=" + portValue(netMode)},
		Labels:    map[string]string{runtime.SessionLabel: sessionID},
		Network:   netMode,
	}

	handle, err := s.cfg.Driver.Create(ctx, cfg)
	if err != nil {
		metrics.ProvisionRequestsTotal.WithLabelValues("error").Inc()
		return ProvisionResult{}, err
	}

	if err := s.cfg.Driver.Start(ctx, handle); err != nil {
		metrics.ProvisionRequestsTotal.WithLabelValues("error").Inc()
		if stopErr := s.cfg.Driver.Stop(ctx, handle); stopErr != nil {
			log.WithContainerID(handle.ID).Warn("best-effort stop of unstarted container failed")
		}
		if rmErr := s.cfg.Driver.Remove(ctx, handle); rmErr != nil {
			log.WithContainerID(handle.ID).Warn("best-effort remove of unstarted container failed")
		}
		return ProvisionResult{}, err
	}

	now := time.Now()
	run := types.Runner{
		SessionID:    sessionID,
		ContainerID:  handle.ID,
		Image:        s.cfg.Image,
		Network:      netMode,
		CreatedAt:    now,
		LastActivity: now,
	}

	if netMode.Kind == types.NetworkModeDefault && s.cfg.ReadinessTimeout > 0 {
		s.probeReady(ctx, netMode.HostPort)
	}

	if !s.cfg.Registry.Insert(sessionID, run) {
		// Another concurrent Provision for this session won the race and
		// inserted first. Tear down the container we just started so it
		// doesn't orphan, and return the winner's record as if this call
		// had simply observed an existing runner.
		if stopErr := s.cfg.Driver.Stop(ctx, handle); stopErr != nil {
			log.WithContainerID(handle.ID).Warn("best-effort stop of losing concurrent-provision container failed")
		}
		if rmErr := s.cfg.Driver.Remove(ctx, handle); rmErr != nil {
			log.WithContainerID(handle.ID).Warn("best-effort remove of losing concurrent-provision container failed")
		}

		existing, ok := s.cfg.Registry.Lookup(sessionID)
		if !ok {
			metrics.ProvisionRequestsTotal.WithLabelValues("error").Inc()
			return ProvisionResult{}, types.NewOrchestratorError(types.ErrServer, "provision race: winning record vanished", nil)
		}
		s.cfg.Registry.Touch(sessionID, time.Now())
		message := "Runner already exists for this session."
		if s.cfg.Registry.Mode() == registry.Reuse {
			message = "Returning existing singleton runner."
		}
		metrics.ProvisionRequestsTotal.WithLabelValues("idempotent").Inc()
		return ProvisionResult{Runner: existing, Fresh: false, Message: message}, nil
	}

	if s.cfg.Store != nil {
		if err := s.cfg.Store.Put(run); err != nil {
			log.WithSessionID(sessionID).Warn("failed to persist runner record")
		}
	}

	metrics.ProvisionRequestsTotal.WithLabelValues("ok").Inc()
	return ProvisionResult{Runner: run, Fresh: true, Message: "Runner provisioned successfully."}, nil
}

// probeReady polls a just-started host port with bounded retries. It
// never fails provisioning: readiness is a best-effort diagnostic, not
// a hard gate (polling failure is logged and swallowed).
func (s *Service) probeReady(ctx context.Context, hostPort int) {
	checker := health.NewTCPChecker("127.0.0.1:" + portValueFromInt(hostPort))
	cfg := health.DefaultConfig()
	cfg.Timeout = 500 * time.Millisecond
	cfg.Interval = 200 * time.Millisecond
	cfg.Retries = 1
	status := health.NewStatus()

	deadline := time.Now().Add(s.cfg.ReadinessTimeout)
	for time.Now().Before(deadline) {
		if !status.InStartPeriod(cfg) {
			checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			result := checker.Check(checkCtx)
			cancel()
			status.Update(result, cfg)
			if status.Healthy && status.ConsecutiveSuccesses > 0 {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.Interval):
		}
	}
	log.Warn("runner did not become ready before readiness timeout elapsed")
}

// Heartbeat refreshes the last-activity timestamp for sessionID. In
// reuse mode the supplied session id must match the singleton's actual
// session id, not merely resolve to the shared slot.
func (s *Service) Heartbeat(sessionID string) error {
	if sessionID == "" {
		return types.NewOrchestratorError(types.ErrSessionIDRequired, "session id is required", nil)
	}

	if s.cfg.Registry.Mode() == registry.Reuse {
		run, ok := s.cfg.Registry.Lookup(sessionID)
		if !ok || run.SessionID != sessionID {
			metrics.HeartbeatsTotal.WithLabelValues("not_found").Inc()
			return types.NewOrchestratorError(types.ErrRunnerNotFound, "no runner for session", nil)
		}
	}

	if !s.cfg.Registry.Touch(sessionID, time.Now()) {
		metrics.HeartbeatsTotal.WithLabelValues("not_found").Inc()
		return types.NewOrchestratorError(types.ErrRunnerNotFound, "no runner for session", nil)
	}
	metrics.HeartbeatsTotal.WithLabelValues("ok").Inc()
	return nil
}

// Deprovision stops and removes the runner for sessionID and drops its
// registry (and, if configured, persisted) record. In reuse mode
// deprovisioning is disabled entirely and always reports success.
func (s *Service) Deprovision(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", types.NewOrchestratorError(types.ErrSessionIDRequired, "session id is required", nil)
	}

	if s.cfg.Registry.Mode() == registry.Reuse {
		metrics.DeprovisionRequestsTotal.WithLabelValues("ok").Inc()
		return "Deprovisioning is disabled in reuse mode.", nil
	}

	run, ok := s.cfg.Registry.Remove(sessionID)
	if !ok {
		metrics.DeprovisionRequestsTotal.WithLabelValues("not_found").Inc()
		return "", types.NewOrchestratorError(types.ErrRunnerNotFound, "no runner for session", nil)
	}

	if s.cfg.Store != nil {
		if err := s.cfg.Store.Delete(sessionID); err != nil {
			log.WithSessionID(sessionID).Warn("failed to delete persisted runner record")
		}
	}

	handle := runtime.Handle{ID: run.ContainerID}
	if err := s.cfg.Driver.Stop(ctx, handle); err != nil {
		log.WithContainerID(run.ContainerID).Warn("failed to stop runner container")
	}
	if err := s.cfg.Driver.Remove(ctx, handle); err != nil {
		metrics.DeprovisionRequestsTotal.WithLabelValues("error").Inc()
		return "", err
	}

	metrics.DeprovisionRequestsTotal.WithLabelValues("ok").Inc()
	return fmt.Sprintf("Runner for session %s deprovisioned successfully.", sessionID), nil
}

func portValue(mode types.NetworkMode) string {
	return portValueFromInt(mode.ContainerPort)
}

func portValueFromInt(port int) string {
	return strconv.Itoa(port)
}
