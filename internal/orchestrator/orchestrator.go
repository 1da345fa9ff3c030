// Package orchestrator owns the lifecycle of every external resource one
// run creates: the isolated ipvlan network, the host companion interface,
// the workload container and its attachment.
//
// Resources are recorded in a roster as they are created and torn down by
// one generic walk in a fixed removal order, replacing the hand-duplicated
// cleanup blocks this design grew out of. The roster is owned exclusively
// by this package for the duration of a run.
package orchestrator

import (
	"errors"
	"fmt"

	"github.com/shingonati0n/xivomega/internal/brand"
	"github.com/shingonati0n/xivomega/internal/firewall"
	"github.com/shingonati0n/xivomega/internal/hostnet"
	"github.com/shingonati0n/xivomega/internal/logging"
	"github.com/shingonati0n/xivomega/internal/netplan"
	"github.com/shingonati0n/xivomega/internal/podman"
)

// ErrProvisioningFailed marks a failure of a required provisioning step:
// the isolated network or the workload container could not be created.
var ErrProvisioningFailed = errors.New("provisioning failed")

// Kind identifies a provisioned resource.
type Kind int

const (
	KindNetwork Kind = iota
	KindCompanion
	KindContainer
	KindAttachment
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindCompanion:
		return "companion"
	case KindContainer:
		return "container"
	case KindAttachment:
		return "attachment"
	}
	return "unknown"
}

// State is a resource lifecycle state.
type State int

const (
	StateAbsent State = iota
	StateCreated
	StateAttached
	StateRunning
)

// Resource is one provisioned external object.
type Resource struct {
	Kind  Kind
	Name  string
	State State
}

// Orchestrator sequences provision, reconnect and teardown.
type Orchestrator struct {
	client  *podman.Client
	host    *hostnet.Manager
	fw      *firewall.Coordinator
	roster  []*Resource
	started bool // provisioning step (a) was attempted
	logger  *logging.Logger
}

// New wires an Orchestrator.
func New(client *podman.Client, host *hostnet.Manager, fw *firewall.Coordinator) *Orchestrator {
	return &Orchestrator{
		client: client,
		host:   host,
		fw:     fw,
		logger: logging.WithComponent("orchestrator"),
	}
}

// Roster returns a snapshot of the provisioned resources.
func (o *Orchestrator) Roster() []Resource {
	out := make([]Resource, len(o.roster))
	for i, r := range o.roster {
		out[i] = *r
	}
	return out
}

// Provisioned reports whether provisioning began this run.
func (o *Orchestrator) Provisioned() bool {
	return o.started
}

// SelfClean removes everything a previous, uncleanly-terminated run may
// have left behind. Every removal is attempted and "already absent" is
// silently tolerated; a one-line notice is printed only when something
// was actually cleaned up. Crash-recovery signal, not an error.
func (o *Orchestrator) SelfClean() int {
	cleaned := o.fw.RemoveRoutes(true)

	if err := o.client.Stop(brand.ContainerName); err == nil {
		cleaned++
	}
	if err := o.client.Remove(brand.ContainerName); err == nil {
		cleaned++
	}
	if err := o.client.NetworkRemove(brand.NetworkName); err == nil {
		cleaned++
	}
	if err := o.host.RemoveCompanion(brand.HostLinkName); err == nil {
		cleaned++
	}

	if cleaned > 0 {
		o.logger.Info("dangling resources from a previous session detected and cleaned up",
			"removed", cleaned)
	}
	return cleaned
}

// Provision creates the run's resources in order: (a) isolated network,
// (b) host companion interface, (c) workload container, (d) attachment,
// (e) start. Steps (a) and (c) are required; their failure aborts the run.
// Steps (b), (d) and (e) are best-effort: a failure is logged with the
// underlying tool's diagnostics and provisioning continues.
func (o *Orchestrator) Provision(plan *netplan.Plan, assign *netplan.Assignment) error {
	o.started = true

	// (a) isolated network bound to the chosen adapter
	if err := o.client.NetworkCreate(brand.NetworkName, plan.Subnet, plan.Gateway, plan.AdapterName); err != nil {
		o.logger.Error("isolated network creation failed", "error", err)
		return fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}
	o.roster = append(o.roster, &Resource{Kind: KindNetwork, Name: brand.NetworkName, State: StateCreated})

	// (b) host companion interface, best-effort
	if err := o.host.CreateCompanion(plan.AdapterName, brand.HostLinkName, assign.HostAddress, plan.PrefixLen, plan.Broadcast); err != nil {
		o.logger.Warn("host companion interface setup failed", "error", err)
	} else {
		o.roster = append(o.roster, &Resource{Kind: KindCompanion, Name: brand.HostLinkName, State: StateCreated})
	}

	// (c) workload container with its fixed internal address
	if err := o.client.CreateContainer(brand.ContainerName, brand.InternalAddress, brand.Image); err != nil {
		o.logger.Error("workload container creation failed", "error", err)
		return fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}
	container := &Resource{Kind: KindContainer, Name: brand.ContainerName, State: StateCreated}
	o.roster = append(o.roster, container)

	// (d) attach the workload to the isolated network, best-effort
	if err := o.client.NetworkConnect(brand.NetworkName, brand.ContainerName, assign.WorkloadAddress); err != nil {
		o.logger.Warn("workload attachment failed", "error", err)
	} else {
		o.roster = append(o.roster, &Resource{Kind: KindAttachment, Name: brand.NetworkName, State: StateAttached})
		container.State = StateAttached
	}

	// (e) start, best-effort
	if err := o.client.Start(brand.ContainerName); err != nil {
		o.logger.Warn("workload start failed", "error", err)
	} else {
		container.State = StateRunning
	}

	return nil
}

// removalOrder fixes the sequence destructive calls happen in: detach the
// workload, remove the isolated network, remove the container, and delete
// the host companion link last. Routes and the stop come before any of it.
var removalOrder = []Kind{KindAttachment, KindNetwork, KindContainer, KindCompanion}

// Teardown removes every provisioned resource. Each step is independently
// best-effort: one failure never prevents the next removal. Invoked with
// an empty roster it performs no destructive calls at all.
func (o *Orchestrator) Teardown() {
	if len(o.roster) == 0 {
		o.logger.Debug("nothing provisioned, teardown is a no-op")
		return
	}

	o.logger.Info("terminating mitigation session, removing resources")

	// Routes were installed after provisioning, so they go first.
	o.fw.RemoveRoutes(false)

	// Stopping undoes the start step, the last provisioning call.
	for _, r := range o.roster {
		if r.Kind == KindContainer && r.State == StateRunning {
			if err := o.client.Stop(r.Name); err != nil {
				o.logger.Warn("workload stop failed", "error", err)
			}
			r.State = StateAttached
		}
	}

	for _, kind := range removalOrder {
		for _, r := range o.roster {
			if r.Kind != kind {
				continue
			}
			var err error
			switch r.Kind {
			case KindAttachment:
				err = o.client.NetworkDisconnect(brand.NetworkName, brand.ContainerName)
			case KindNetwork:
				err = o.client.NetworkRemove(r.Name)
			case KindContainer:
				err = o.client.Remove(r.Name)
			case KindCompanion:
				err = o.host.RemoveCompanion(r.Name)
			}
			if err != nil {
				o.logger.Warn("teardown step failed", "resource", r.Kind.String(), "name", r.Name, "error", err)
			}
			r.State = StateAbsent
		}
	}

	o.roster = nil
	o.logger.Info("all resources removed")
}

// Reconnect restarts the workload, clears its NAT post-routing rules and
// re-runs its firewall init script. Used exclusively by the connectivity
// verifier between probe attempts.
func (o *Orchestrator) Reconnect() error {
	if err := o.client.Restart(brand.ContainerName); err != nil {
		return fmt.Errorf("reconnect restart: %w", err)
	}
	if err := o.client.Exec(brand.ContainerName, "iptables", "-t", "nat", "-F", "POSTROUTING"); err != nil {
		return fmt.Errorf("reconnect nat flush: %w", err)
	}
	if err := o.client.Exec(brand.ContainerName, firewall.WorkloadRuleScript); err != nil {
		return fmt.Errorf("reconnect rule script: %w", err)
	}
	o.logger.Info("workload reconnected")
	return nil
}
