package agent

import (
	"context"
	"net"

	"github.com/tailot/taylored-orchestrator/pkg/log"
	"github.com/tailot/taylored-orchestrator/pkg/metrics"
)

// Config configures an Agent.
type Config struct {
	// ListenAddr is the address the agent's event channel listens on,
	// e.g. ":3000".
	ListenAddr string

	// ContainerRoot bounds listDirectory and downloadFile requests.
	ContainerRoot string

	// RunnerTool is the external command invoked for every tayloredRun,
	// e.g. []string{"taylored", "--automatic", "xml", "main"}.
	RunnerTool []string
}

// Agent is the runner's event-channel server: one TCP listener fanning
// out into one goroutine pair (reader, writer) per accepted connection.
type Agent struct {
	cfg Config
}

// New constructs an Agent from cfg.
func New(cfg Config) *Agent {
	return &Agent{cfg: cfg}
}

// ListenAndServe accepts connections until ctx is done or the listener
// fails. Each connection is handled independently; one misbehaving
// client cannot affect another.
func (a *Agent) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", a.cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Info("runner event channel listening on " + a.cfg.ListenAddr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		metrics.EventChannelConnectionsTotal.Inc()
		go a.handleConn(ctx, conn)
	}
}
