// Package podman drives the container runtime CLI. One Client instance
// wraps every podman invocation this tool makes; nothing else in the
// repository shells out to the runtime directly.
package podman

import (
	"context"
	"fmt"

	"github.com/shingonati0n/xivomega/internal/logging"
)

// Binary is the container runtime executable.
const Binary = "podman"

// Client issues container runtime commands through a CommandRunner.
type Client struct {
	runner CommandRunner
	logger *logging.Logger
}

// NewClient creates a Client using the given runner.
func NewClient(runner CommandRunner) *Client {
	return &Client{
		runner: runner,
		logger: logging.WithComponent("podman"),
	}
}

// NetworkCreate creates the isolated ipvlan network bound to the parent
// adapter with the given subnet and gateway.
func (c *Client) NetworkCreate(name, subnet, gateway, parent string) error {
	err := c.runner.Run(Binary, "network", "create",
		"--subnet="+subnet,
		"--gateway="+gateway,
		"--driver=ipvlan",
		"-o", "parent="+parent,
		name)
	if err != nil {
		return fmt.Errorf("network create %s: %w", name, err)
	}
	c.logger.Info("ipvlan network created", "network", name, "subnet", subnet, "parent", parent)
	return nil
}

// NetworkRemove removes a runtime network.
func (c *Client) NetworkRemove(name string) error {
	if err := c.runner.Run(Binary, "network", "rm", name); err != nil {
		return fmt.Errorf("network rm %s: %w", name, err)
	}
	c.logger.Info("ipvlan network removed", "network", name)
	return nil
}

// NetworkConnect attaches a container to a network with a fixed address.
func (c *Client) NetworkConnect(network, container, ip string) error {
	if err := c.runner.Run(Binary, "network", "connect", network, container, "--ip="+ip); err != nil {
		return fmt.Errorf("network connect %s to %s: %w", container, network, err)
	}
	c.logger.Info("container attached to network", "container", container, "network", network, "ip", ip)
	return nil
}

// NetworkDisconnect detaches a container from a network.
func (c *Client) NetworkDisconnect(network, container string) error {
	if err := c.runner.Run(Binary, "network", "disconnect", network, container); err != nil {
		return fmt.Errorf("network disconnect %s from %s: %w", container, network, err)
	}
	c.logger.Info("container detached from network", "container", container, "network", network)
	return nil
}

// CreateContainer creates the workload container on the runtime's default
// network with its fixed internal address. The sysctls make the workload
// forward and hairpin traffic; NET_RAW and NET_ADMIN let its own firewall
// script manage rules.
func (c *Client) CreateContainer(name, internalIP, image string) error {
	err := c.runner.Run(Binary, "create",
		"--replace",
		"--name="+name,
		"--ip="+internalIP,
		"--sysctl", "net.ipv4.ip_forward=1",
		"--sysctl", "net.ipv4.conf.all.route_localnet=1",
		"--net=podman",
		"--cap-add=NET_RAW,NET_ADMIN",
		"-ti", image, "/bin/sh")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	c.logger.Info("container created", "container", name, "ip", internalIP, "image", image)
	return nil
}

// Start starts a container.
func (c *Client) Start(name string) error {
	if err := c.runner.Run(Binary, "start", name); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	c.logger.Info("container started", "container", name)
	return nil
}

// Stop stops a container.
func (c *Client) Stop(name string) error {
	if err := c.runner.Run(Binary, "stop", name); err != nil {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	c.logger.Info("container stopped", "container", name)
	return nil
}

// Restart restarts a container.
func (c *Client) Restart(name string) error {
	if err := c.runner.Run(Binary, "restart", name); err != nil {
		return fmt.Errorf("restart %s: %w", name, err)
	}
	c.logger.Info("container restarted", "container", name)
	return nil
}

// Remove removes a container.
func (c *Client) Remove(name string) error {
	if err := c.runner.Run(Binary, "rm", name); err != nil {
		return fmt.Errorf("rm %s: %w", name, err)
	}
	c.logger.Info("container removed", "container", name)
	return nil
}

// Exec runs a command inside a container, discarding output on success.
func (c *Client) Exec(container string, cmd ...string) error {
	args := append([]string{"exec", container}, cmd...)
	if err := c.runner.Run(Binary, args...); err != nil {
		return fmt.Errorf("exec in %s: %w", container, err)
	}
	return nil
}

// ExecOutput runs a command inside a container and returns its output.
func (c *Client) ExecOutput(container string, cmd ...string) (string, error) {
	args := append([]string{"exec", container}, cmd...)
	out, err := c.runner.Output(Binary, args...)
	if err != nil {
		return string(out), fmt.Errorf("exec in %s: %w", container, err)
	}
	return string(out), nil
}

// ExecInteractive runs a command inside a container with the caller's
// terminal attached.
func (c *Client) ExecInteractive(ctx context.Context, container string, cmd ...string) error {
	args := append([]string{"exec", "-it", container}, cmd...)
	if err := c.runner.RunAttached(ctx, Binary, args...); err != nil {
		return fmt.Errorf("interactive exec in %s: %w", container, err)
	}
	return nil
}
