// Package cmd implements the top-level commands behind the CLI entry
// points. RunMitigate is the whole mitigation lifecycle; RunStop tears
// down leftovers from an earlier run.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/shingonati0n/xivomega/internal/adapters"
	"github.com/shingonati0n/xivomega/internal/brand"
	"github.com/shingonati0n/xivomega/internal/config"
	"github.com/shingonati0n/xivomega/internal/discovery"
	"github.com/shingonati0n/xivomega/internal/firewall"
	"github.com/shingonati0n/xivomega/internal/hostnet"
	"github.com/shingonati0n/xivomega/internal/logging"
	"github.com/shingonati0n/xivomega/internal/netplan"
	"github.com/shingonati0n/xivomega/internal/orchestrator"
	"github.com/shingonati0n/xivomega/internal/podman"
	"github.com/shingonati0n/xivomega/internal/ui"
	"github.com/shingonati0n/xivomega/internal/verifier"
)

// Exit codes. ExitFailure mirrors a shell-visible 255 the way sys.exit(-1)
// would; ExitConnectivity marks a run that provisioned fine but never got
// the workload talking to the outside.
const (
	ExitOK           = 0
	ExitFailure      = -1
	ExitConnectivity = 4
)

// WorkloadEntrypoint is the script a run hands the terminal to once the
// network is verified.
const WorkloadEntrypoint = "/home/omega_alpha.sh"

// CountdownSeconds is the grace period before the workload takes over.
const CountdownSeconds = 10

// RunMitigate runs one full mitigation lifecycle and returns the process
// exit code.
func RunMitigate(configPath string) int {
	log := logging.WithComponent("run")

	if runtime.GOOS != "linux" {
		fmt.Fprintln(os.Stderr, "This program only runs on Linux")
		return ExitFailure
	}
	if os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "This program requires root permissions - use sudo")
		return ExitFailure
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, config.ErrInvalidAddress) {
			fmt.Fprintln(os.Stderr, "Invalid IP address detected in config file")
			fmt.Fprintln(os.Stderr, "If not sure, just put default")
		} else {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		}
		return ExitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nl := hostnet.DefaultNetlinker
	client := podman.NewClient(&podman.RealCommandRunner{})
	host := hostnet.NewManager(nl)
	fw := firewall.NewCoordinator(&firewall.RealCommandRunner{}, host, client, brand.InternalAddress)
	orch := orchestrator.New(client, host, fw)

	adapterName, err := selectAdapter(nl, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Adapter selection failed: %v\n", err)
		return ExitFailure
	}
	log.Info("adapter selected", "adapter", adapterName)

	// Leftovers from a crashed run would collide with provisioning.
	orch.SelfClean()

	plan, err := netplan.Derive(nl, adapterName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read adapter state: %v\n", err)
		return ExitFailure
	}

	assign, err := planAddresses(ctx, plan, cfg)
	if err != nil {
		if errors.Is(err, config.ErrInvalidAddress) {
			fmt.Fprintln(os.Stderr, "Invalid IP address detected in config file")
			fmt.Fprintln(os.Stderr, "If not sure, just put default")
		} else {
			fmt.Fprintf(os.Stderr, "Address planning failed: %v\n", err)
		}
		return ExitFailure
	}

	ui.PrintTitle(os.Stdout)

	if err := orch.Provision(plan, assign); err != nil {
		fmt.Fprintf(os.Stderr, "Provisioning failed: %v\n", err)
		orch.Teardown()
		return ExitFailure
	}
	defer orch.Teardown()

	fw.ApplyRoutes()
	if err := fw.InitWorkloadRules(brand.ContainerName); err != nil {
		// Recoverable: every reconnect cycle re-runs the script, so the
		// verifier gets a chance to bring the rules up.
		log.Warn("workload firewall setup failed", "error", err)
	}

	ver := verifier.New(client, orch, fw)
	if err := ver.Establish(ctx); err != nil {
		if errors.Is(err, verifier.ErrConnectivityFailed) {
			fmt.Fprintln(os.Stderr, "Connection could not be established - check your network and try again")
			return ExitConnectivity
		}
		log.Warn("run interrupted during connectivity check", "error", err)
		return ExitOK
	}

	fmt.Printf("Mitigation in %d seconds...\n", CountdownSeconds)
	if err := ui.Countdown(ctx, os.Stdout, CountdownSeconds); err != nil {
		return ExitOK
	}

	fmt.Println("MITIGATOR EXECUTING")
	if err := client.ExecInteractive(ctx, brand.ContainerName, WorkloadEntrypoint); err != nil {
		log.Warn("workload session ended with error", "error", err)
	}

	return ExitOK
}

// selectAdapter resolves which physical adapter carries the isolated
// segment, honoring the configured override.
func selectAdapter(nl hostnet.Netlinker, cfg *config.Config) (string, error) {
	candidates, err := adapters.Detect(nl)
	if err != nil {
		return "", err
	}

	override, _ := cfg.AdapterOverride()
	chosen, err := adapters.NewSelector().Select(candidates, override)
	if err != nil {
		return "", err
	}
	return chosen.Name, nil
}

// planAddresses sweeps the subnet for addresses already in use and
// allocates the pair this run needs.
func planAddresses(ctx context.Context, plan *netplan.Plan, cfg *config.Config) (*netplan.Assignment, error) {
	inUse, err := discovery.NewPingProber().Sweep(ctx, plan.Subnet)
	if err != nil {
		return nil, fmt.Errorf("subnet sweep failed: %w", err)
	}

	var ov netplan.Overrides
	ov.HostAddress, _ = cfg.HostAddressOverride()
	ov.WorkloadAddress, _ = cfg.WorkloadAddressOverride()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return netplan.Allocate(plan, inUse, ov, rng)
}
