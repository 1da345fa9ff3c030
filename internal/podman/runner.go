package podman

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// CommandRunner abstracts executing the container runtime binary so the
// client can be tested without podman installed.
type CommandRunner interface {
	// Run executes a command, folding its combined output into the
	// returned error so the underlying tool's diagnostics survive.
	Run(name string, args ...string) error

	// Output executes a command and returns its combined output.
	Output(name string, args ...string) ([]byte, error)

	// RunAttached executes a command with the caller's stdio attached.
	RunAttached(ctx context.Context, name string, args ...string) error
}

// RealCommandRunner executes commands with os/exec.
type RealCommandRunner struct{}

// Run executes a command without capturing output for the caller.
func (r *RealCommandRunner) Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("command %s failed: %w: %s", name, err, string(out))
	}
	return nil
}

// Output executes a command and returns its combined output.
func (r *RealCommandRunner) Output(name string, args ...string) ([]byte, error) {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("command %s failed: %w: %s", name, err, string(out))
	}
	return out, nil
}

// RunAttached executes a command wired to the process stdio. Used for the
// interactive mitigation session inside the workload.
func (r *RealCommandRunner) RunAttached(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %s failed: %w", name, err)
	}
	return nil
}
