package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/shingonati0n/xivomega/internal/brand"
	"github.com/shingonati0n/xivomega/internal/firewall"
	"github.com/shingonati0n/xivomega/internal/hostnet"
	"github.com/shingonati0n/xivomega/internal/orchestrator"
	"github.com/shingonati0n/xivomega/internal/podman"
)

// RunStop removes everything a previous run may have left behind: routes,
// the workload container, the isolated network, and the host companion
// link. Safe to run when nothing is left.
func RunStop() int {
	if runtime.GOOS != "linux" {
		fmt.Fprintln(os.Stderr, "This program only runs on Linux")
		return ExitFailure
	}
	if os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "This program requires root permissions - use sudo")
		return ExitFailure
	}

	client := podman.NewClient(&podman.RealCommandRunner{})
	host := hostnet.NewManager(hostnet.DefaultNetlinker)
	fw := firewall.NewCoordinator(&firewall.RealCommandRunner{}, host, client, brand.InternalAddress)
	orch := orchestrator.New(client, host, fw)

	removed := orch.SelfClean()
	if removed == 0 {
		fmt.Println("Nothing to clean up.")
	} else {
		fmt.Printf("Removed %d leftover resource(s).\n", removed)
	}
	return ExitOK
}
