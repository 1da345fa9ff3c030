package firewall

import (
	"fmt"
	"os/exec"
)

// RealCommandRunner executes host firewall commands with os/exec.
type RealCommandRunner struct{}

// Run executes a command, folding combined output into the error.
func (r *RealCommandRunner) Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("command %s failed: %w: %s", name, err, string(out))
	}
	return nil
}
