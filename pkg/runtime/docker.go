package runtime

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	imagetypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"

	"github.com/tailot/taylored-orchestrator/pkg/types"
)

// DockerDriver implements Driver against a Docker Engine daemon,
// reached over the Unix socket (or TCP endpoint) given at construction.
type DockerDriver struct {
	cli *client.Client
}

// NewDockerDriver dials host (e.g. "unix:///var/run/docker.sock") and
// negotiates the API version with the daemon, mirroring the
// client-construction shape the pack's own Docker executor uses.
func NewDockerDriver(ctx context.Context, host string) (*DockerDriver, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: create docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("runtime: ping docker daemon: %w", err)
	}

	return &DockerDriver{cli: cli}, nil
}

// Close releases the underlying Docker client's connections.
func (d *DockerDriver) Close() error {
	return d.cli.Close()
}

// Ping reports whether the Docker daemon is still reachable, backing
// the orchestrator's /healthz readiness check.
func (d *DockerDriver) Ping(ctx context.Context) error {
	_, err := d.cli.Ping(ctx)
	return err
}

func (d *DockerDriver) ImageExists(ctx context.Context, name string) (bool, error) {
	images, err := d.cli.ImageList(ctx, imagetypes.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", name)),
	})
	if err != nil {
		return false, wrapErr(err, types.ErrServer, "list images")
	}
	return len(images) > 0, nil
}

func (d *DockerDriver) Create(ctx context.Context, cfg ContainerConfig) (Handle, error) {
	exists, err := d.ImageExists(ctx, cfg.Image)
	if err != nil {
		return Handle{}, err
	}
	if !exists {
		return Handle{}, types.NewOrchestratorError(types.ErrDockerImageMissing,
			fmt.Sprintf("image %q not found", cfg.Image), nil)
	}

	labels := make(map[string]string, len(cfg.Labels)+1)
	for k, v := range cfg.Labels {
		labels[k] = v
	}
	labels[SessionLabel] = cfg.SessionID

	containerCfg := &container.Config{
		Image:  cfg.Image,
		Env:    cfg.Env,
		Labels: labels,
	}
	hostCfg := &container.HostConfig{}
	netCfg := &network.NetworkingConfig{}

	switch cfg.Network.Kind {
	case types.NetworkModeDefault, types.NetworkModeCustom:
		containerPort, err := nat.NewPort("tcp", strconv.Itoa(cfg.Network.ContainerPort))
		if err != nil {
			return Handle{}, wrapErr(err, types.ErrServer, "build container port")
		}
		containerCfg.ExposedPorts = nat.PortSet{containerPort: struct{}{}}
		hostCfg.PortBindings = nat.PortMap{
			containerPort: []nat.PortBinding{{
				HostIP:   "0.0.0.0",
				HostPort: strconv.Itoa(cfg.Network.HostPort),
			}},
		}
		if cfg.Network.Kind == types.NetworkModeCustom {
			hostCfg.NetworkMode = container.NetworkMode(cfg.Network.NetworkName)
			netCfg.EndpointsConfig = map[string]*network.EndpointSettings{
				cfg.Network.NetworkName: {},
			}
		}
	case types.NetworkModeNone:
		hostCfg.NetworkMode = container.NetworkMode("none")
	}

	resp, err := d.cli.ContainerCreate(ctx, containerCfg, hostCfg, netCfg, nil, "")
	if err != nil {
		return Handle{}, wrapErr(err, types.ErrServer, "create container")
	}
	return Handle{ID: resp.ID}, nil
}

func (d *DockerDriver) Start(ctx context.Context, h Handle) error {
	if err := d.cli.ContainerStart(ctx, h.ID, container.StartOptions{}); err != nil {
		return wrapErr(err, types.ErrServer, "start container")
	}
	return nil
}

func (d *DockerDriver) Inspect(ctx context.Context, h Handle) (State, error) {
	info, err := d.cli.ContainerInspect(ctx, h.ID)
	if err != nil {
		return State{}, wrapErr(err, types.ErrRunnerNotFound, "inspect container")
	}
	st := State{}
	if info.State != nil {
		st.Running = info.State.Running
		st.ExitCode = info.State.ExitCode
	}
	return st, nil
}

func (d *DockerDriver) Stop(ctx context.Context, h Handle) error {
	timeout := 10
	if err := d.cli.ContainerStop(ctx, h.ID, container.StopOptions{Timeout: &timeout}); err != nil {
		return wrapErr(err, types.ErrServer, "stop container")
	}
	return nil
}

func (d *DockerDriver) Remove(ctx context.Context, h Handle) error {
	if err := d.cli.ContainerRemove(ctx, h.ID, container.RemoveOptions{Force: true}); err != nil {
		return wrapErr(err, types.ErrServer, "remove container")
	}
	return nil
}

func (d *DockerDriver) ListBySessionLabel(ctx context.Context) (map[string]Handle, error) {
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", SessionLabel)),
	})
	if err != nil {
		return nil, wrapErr(err, types.ErrServer, "list containers")
	}

	out := make(map[string]Handle, len(containers))
	for _, c := range containers {
		sessionID := c.Labels[SessionLabel]
		if sessionID == "" {
			continue
		}
		out[sessionID] = Handle{ID: c.ID}
	}
	return out, nil
}

func wrapErr(err error, fallback types.ErrorKind, op string) error {
	kind := fallback
	if errdefs.IsNotFound(err) {
		kind = types.ErrRunnerNotFound
	}
	return types.NewOrchestratorError(kind, "runtime: "+op, err)
}

var _ Driver = (*DockerDriver)(nil)

// pingTimeout bounds how long NewDockerDriver waits on the initial
// daemon ping.
const pingTimeout = 5 * time.Second
