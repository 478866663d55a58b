// Package runtime wraps container lifecycle operations behind the
// Driver interface. DockerDriver is grounded on the Docker Engine
// client the rest of the pack uses for container execution; a named
// bridge/overlay network or a fully isolated container is requested
// through the same Create call as the default host-port-published
// case, selected by ContainerConfig.Network.Kind.
package runtime
