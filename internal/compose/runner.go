package compose

import (
	"context"
	"os/exec"
	"strings"
)

// Runner executes an external command in a working directory and
// returns its combined output. The indirection exists so the controller
// tests can substitute a fake for the container engine.
type Runner interface {
	Run(ctx context.Context, dir string, command string, args ...string) (string, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

// Run executes the command and returns combined stdout/stderr. The
// context bounds the process lifetime: on deadline the process is
// killed and ctx.Err() is observable via context.Cause upstream.
func (ExecRunner) Run(ctx context.Context, dir string, command string, args ...string) (string, error) {
	// #nosec G204 — commands are fixed engine verbs with validated operands
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir

	var out strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}
