package packetfilter

import (
	"context"
	"fmt"
	"os/exec"
)

// CommandRunner abstracts external command execution so tests can intercept
// every invocation.
type CommandRunner interface {
	// Run executes a command, honoring the context deadline.
	Run(ctx context.Context, name string, args ...string) error
	// LookPath reports where the named binary lives, or an error if absent.
	LookPath(name string) (string, error)
}

// RealCommandRunner shells out via os/exec.
type RealCommandRunner struct{}

// Run executes a command and folds its combined output into the error.
func (r *RealCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("command %s failed: %w: %s", name, err, string(out))
	}
	return nil
}

// LookPath wraps exec.LookPath.
func (r *RealCommandRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
