// Package verifier drives the post-provisioning connectivity check as an
// explicit state machine with a bounded retry budget.
//
// Each attempt blocks for as long as the probe tool takes; the only
// termination guarantee is the attempt count, never wall-clock time.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shingonati0n/xivomega/internal/brand"
	"github.com/shingonati0n/xivomega/internal/logging"
	"github.com/shingonati0n/xivomega/internal/podman"
)

// ErrConnectivityFailed is returned when the retry budget is exhausted.
var ErrConnectivityFailed = errors.New("connectivity could not be established")

// ProbeTarget is the fixed, known-reachable address probed through the
// workload. One of the game's lobby servers; reachable iff the mitigation
// path works end to end.
const ProbeTarget = "204.2.29.7"

// ProbeCount is how many echoes one probe sends.
const ProbeCount = 5

// MaxAttempts is the retry budget: the verifier fails once the attempt
// count exceeds it.
const MaxAttempts = 5

// State is a verifier state.
type State int

const (
	StateProbing State = iota
	StateEstablished
	StateRecovering
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateProbing:
		return "probing"
	case StateEstablished:
		return "established"
	case StateRecovering:
		return "recovering"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// RetryState tracks the attempt budget. Reset at the start of each run
// and mutated only by the verifier.
type RetryState struct {
	Attempts    int
	MaxAttempts int
}

// Reconnector is the orchestrator primitive invoked between attempts.
type Reconnector interface {
	Reconnect() error
}

// RouteCoordinator reapplies the firewall/route state after a reconnect.
type RouteCoordinator interface {
	FlushHostChains() error
	ApplyRoutes()
}

// Verifier probes reachability through the workload and recovers via
// bounded reconnect cycles.
type Verifier struct {
	client *podman.Client
	rec    Reconnector
	fw     RouteCoordinator
	retry  RetryState
	state  State
	logger *logging.Logger

	// probe is swappable for tests, in the manner of a monitor check.
	probe func(ctx context.Context) error
}

// New wires a Verifier with a fresh retry budget.
func New(client *podman.Client, rec Reconnector, fw RouteCoordinator) *Verifier {
	v := &Verifier{
		client: client,
		rec:    rec,
		fw:     fw,
		retry:  RetryState{MaxAttempts: MaxAttempts},
		state:  StateProbing,
		logger: logging.WithComponent("verifier"),
	}
	v.probe = v.workloadProbe
	return v
}

// State returns the current state.
func (v *Verifier) State() State {
	return v.state
}

// Retry returns the current retry state.
func (v *Verifier) Retry() RetryState {
	return v.retry
}

// Establish probes until the connection is up, recovering between failed
// attempts, until the retry budget is exhausted. Context cancellation
// (operator interrupt) aborts cleanly without consuming the budget.
func (v *Verifier) Establish(ctx context.Context) error {
	v.logger.Info("establishing network connection", "target", ProbeTarget)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		v.state = StateProbing
		err := v.probe(ctx)
		if err == nil {
			v.state = StateEstablished
			v.logger.Info("network established", "attempts_used", v.retry.Attempts)
			return nil
		}

		v.retry.Attempts++
		v.logger.Warn("reachability probe failed",
			"attempt", v.retry.Attempts, "max", v.retry.MaxAttempts, "error", err)

		if v.retry.Attempts > v.retry.MaxAttempts {
			v.state = StateFailed
			return fmt.Errorf("%w: %d attempts", ErrConnectivityFailed, v.retry.Attempts)
		}

		v.state = StateRecovering
		v.logger.Info("retrying connection")
		if rerr := v.rec.Reconnect(); rerr != nil {
			v.logger.Warn("reconnect failed", "error", rerr)
		}
		if ferr := v.fw.FlushHostChains(); ferr != nil {
			v.logger.Warn("chain flush failed", "error", ferr)
		}
		v.fw.ApplyRoutes()
	}
}

// workloadProbe pings the fixed target from inside the workload. Success
// requires both a zero exit and echo replies in the output.
func (v *Verifier) workloadProbe(ctx context.Context) error {
	out, err := v.client.ExecOutput(brand.ContainerName,
		"ping", ProbeTarget, "-c", fmt.Sprintf("%d", ProbeCount))
	if err != nil {
		return err
	}
	if !strings.Contains(out, "bytes from") {
		return fmt.Errorf("probe returned unexpected output")
	}
	return nil
}
