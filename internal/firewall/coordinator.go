// Package firewall sequences the host firewall resets and static routes
// that bracket each connection attempt.
//
// The rule content applied inside the workload is opaque to this package:
// it lives in a script shipped with the workload image and is only invoked
// by name. The host side is a deliberate, destructive flush of the filter
// chains, scoped to whatever the runtime's network plugin installed
// moments earlier.
package firewall

import (
	"errors"
	"fmt"

	"github.com/shingonati0n/xivomega/internal/hostnet"
	"github.com/shingonati0n/xivomega/internal/logging"
	"github.com/shingonati0n/xivomega/internal/podman"
)

// IptablesBinary is the host firewall executable.
const IptablesBinary = "iptables"

// WorkloadRuleScript is the script inside the workload image that installs
// its own rule set. Its content is not this tool's concern.
const WorkloadRuleScript = "/home/iptset.sh"

// GameSubnets are the destination /24s routed through the workload's
// internal gateway for the duration of a session.
var GameSubnets = []string{
	"124.150.157.0/24",
	"153.254.80.0/24",
	"202.67.52.0/24",
	"204.2.29.0/24",
	"80.239.145.0/24",
}

// hostChains are flushed before delegating to the workload's script.
var hostChains = []string{"INPUT", "FORWARD", "OUTPUT"}

// CommandRunner abstracts host firewall command execution.
type CommandRunner interface {
	Run(name string, args ...string) error
}

// Coordinator installs/removes the session's static routes and resets
// firewall chains around each (re)connection attempt.
type Coordinator struct {
	runner  CommandRunner
	routes  *hostnet.Manager
	client  *podman.Client
	gateway string // the workload's internal gateway address
	logger  *logging.Logger
}

// NewCoordinator wires a Coordinator.
func NewCoordinator(runner CommandRunner, routes *hostnet.Manager, client *podman.Client, gateway string) *Coordinator {
	return &Coordinator{
		runner:  runner,
		routes:  routes,
		client:  client,
		gateway: gateway,
		logger:  logging.WithComponent("firewall"),
	}
}

// FlushHostChains flushes the INPUT, FORWARD and OUTPUT filter chains.
// All three are attempted regardless of individual failures.
func (c *Coordinator) FlushHostChains() error {
	var errs []error
	for _, chain := range hostChains {
		if err := c.runner.Run(IptablesBinary, "-F", chain); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", chain, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	c.logger.Info("host filter chains flushed")
	return nil
}

// ApplyRoutes installs the fixed game subnets as static routes via the
// workload's internal gateway. Best-effort per route: one failure is
// logged and does not stop the rest.
func (c *Coordinator) ApplyRoutes() {
	for _, subnet := range GameSubnets {
		if err := c.routes.AddRoute(subnet, c.gateway); err != nil {
			c.logger.Warn("route install failed", "dst", subnet, "error", err)
		}
	}
}

// RemoveRoutes removes the same route set. Exact mirror of ApplyRoutes.
// Returns how many deletions succeeded, for the pre-flight crash-recovery
// notice.
func (c *Coordinator) RemoveRoutes(quiet bool) int {
	removed := 0
	for _, subnet := range GameSubnets {
		if err := c.routes.DelRoute(subnet, c.gateway); err != nil {
			if !quiet {
				c.logger.Warn("route removal failed", "dst", subnet, "error", err)
			}
			continue
		}
		removed++
	}
	return removed
}

// InitWorkloadRules flushes the host chains, then delegates rule content
// to the workload's own script.
func (c *Coordinator) InitWorkloadRules(container string) error {
	if err := c.FlushHostChains(); err != nil {
		c.logger.Warn("host chain flush incomplete", "error", err)
	}
	if err := c.client.Exec(container, WorkloadRuleScript); err != nil {
		return fmt.Errorf("workload rule script: %w", err)
	}
	c.logger.Info("workload firewall rules applied", "container", container)
	return nil
}
