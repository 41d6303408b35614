// client.go wraps the Docker Engine SDK client used for container
// builds. It handles automatic socket detection across platforms and
// daemon reachability checks.
package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/shinji-kodama/layerpack/internal/model"
)

// pingTimeout bounds the daemon reachability probe. Docker Desktop on
// macOS can be slow to answer, so this is deliberately generous.
const pingTimeout = 5 * time.Second

// Client wraps the Docker Engine SDK client for layerpack's container
// builds. It exists so that socket detection, ping, and error-to-exit-
// code mapping live in one place.
//
// Usage:
//
//	c, err := docker.NewClient()
//	if err != nil { /* handle */ }
//	defer c.Close()
//	if err := c.Ping(ctx); err != nil { /* Docker not running */ }
type Client struct {
	// inner is the underlying SDK client. Wrapped rather than embedded
	// to control the exposed surface.
	inner *client.Client
}

// NewClient creates a Docker client with automatic socket detection.
//
// Detection order:
//  1. DOCKER_HOST environment variable, used as-is when set
//  2. Platform default socket paths:
//     - Linux: /var/run/docker.sock
//     - macOS: /var/run/docker.sock, then ~/.docker/run/docker.sock
//     - Windows: npipe:////./pipe/docker_engine
//
// Returns a model.CLIError with ExitDockerNotRunning if no socket is
// found or the client cannot be created.
func NewClient() (*Client, error) {
	// An explicit DOCKER_HOST always wins; the SDK parses the
	// connection string itself.
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		return newClientWithHost(host)
	}

	host, err := detectDockerHost()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "Docker socket not found", err)
	}

	return newClientWithHost(host)
}

// newClientWithHost creates a client for a specific connection string,
// with API version negotiation enabled so one binary works against a
// range of daemon versions.
func newClientWithHost(host string) (*Client, error) {
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create Docker client for host %q", host),
			err,
		)
	}

	return &Client{inner: c}, nil
}

// detectDockerHost probes the known socket locations for the current
// platform and returns the first that exists. Existence is checked
// rather than connectivity; Ping handles the latter.
func detectDockerHost() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return detectUnixSocket([]string{"/var/run/docker.sock"})

	case "darwin":
		// Newer Docker Desktop versions place the socket under the
		// user's home directory and may not create the /var/run symlink.
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return detectUnixSocket([]string{"/var/run/docker.sock"})
		}
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
			homeDir + "/.docker/run/docker.sock",
		})

	case "windows":
		// os.Stat does not work on Windows named pipes, so probe with
		// a short dial instead.
		pipePath := `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, 1*time.Second)
		if err == nil {
			conn.Close()
			return "npipe://" + pipePath, nil
		}
		return "", fmt.Errorf("Docker named pipe not found at %s: %w", pipePath, err)

	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// detectUnixSocket returns the Docker host URI for the first socket
// path that exists, checked in preference order.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v (is Docker running?)", paths)
}

// Ping verifies that the Docker daemon is reachable and responsive.
// Returns a model.CLIError with ExitDockerNotRunning on failure, which
// the CLI reports before any container build is attempted.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"Docker daemon is not responding (is Docker running?)",
			err,
		)
	}
	return nil
}

// Close releases the resources held by the Docker client.
// Safe to call multiple times.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// Inner returns the underlying Docker SDK client for operations not
// exposed through the wrapper.
func (c *Client) Inner() *client.Client {
	return c.inner
}
