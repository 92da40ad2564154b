package compose

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hovel-sh/hovel/internal/model"
)

// ProjectPrefix namespaces the container groups this controller owns.
// Containers whose compose project lacks the prefix are never touched.
const ProjectPrefix = "hovel-"

// DefaultLogLines is the log tail length when the caller names none.
const DefaultLogLines = 100

// maxCapturedOutput bounds how much engine output is folded into an
// error. Build logs can run to megabytes; the tail is what diagnoses a
// failure.
const maxCapturedOutput = 16 * 1024

// ProjectName derives the compose project name for a workspace.
func ProjectName(workspace string) string {
	return ProjectPrefix + filepath.Base(workspace)
}

// StatusReporter answers per-service liveness queries for a compose
// project. Implemented by DockerStatus over the Engine SDK; faked in
// tests.
type StatusReporter interface {
	ProjectStatus(ctx context.Context, project, branch string) ([]model.ServiceStatus, error)
}

// Timeouts bounds the controller's engine invocations per verb class.
type Timeouts struct {
	Build time.Duration
	Up    time.Duration
	Op    time.Duration
}

// Controller runs container-group operations for branch workspaces.
type Controller struct {
	runner   Runner
	reporter StatusReporter
	timeouts Timeouts
	log      zerolog.Logger
}

// NewController creates a Controller.
func NewController(runner Runner, reporter StatusReporter, timeouts Timeouts, log zerolog.Logger) *Controller {
	return &Controller{runner: runner, reporter: reporter, timeouts: timeouts, log: log}
}

// Build builds all images the workspace's spec declares. Blocking; may
// take minutes, bounded by the build timeout.
func (c *Controller) Build(ctx context.Context, workspace string) error {
	out, err := c.compose(ctx, workspace, c.timeouts.Build, "build")
	if err != nil {
		return engineError(model.KindBuildFailed, "image build failed", out, err)
	}
	return nil
}

// Up starts the given services (all when none are named) detached.
// Idempotent for services that are already running.
func (c *Controller) Up(ctx context.Context, workspace string, services ...string) error {
	args := append([]string{"up", "-d"}, services...)
	out, err := c.compose(ctx, workspace, c.timeouts.Up, args...)
	if err != nil {
		return engineError(model.KindStartFailed, "container group start failed", out, err)
	}
	return nil
}

// Down stops and removes the workspace's container group. Idempotent:
// a group that was never started comes down without error.
func (c *Controller) Down(ctx context.Context, workspace string) error {
	out, err := c.compose(ctx, workspace, c.timeouts.Op, "down")
	if err != nil {
		return engineError(model.KindStopFailed, "container group stop failed", out, err)
	}
	return nil
}

// Restart stops and restarts the full container group.
func (c *Controller) Restart(ctx context.Context, workspace string) error {
	if err := c.Down(ctx, workspace); err != nil {
		return err
	}
	return c.Up(ctx, workspace)
}

// Status reports per-service liveness for the workspace's group.
func (c *Controller) Status(ctx context.Context, workspace string) ([]model.ServiceStatus, error) {
	queryCtx, cancel := context.WithTimeout(ctx, c.timeouts.Op)
	defer cancel()

	statuses, err := c.reporter.ProjectStatus(queryCtx, ProjectName(workspace), filepath.Base(workspace))
	if err != nil {
		return nil, model.WrapE(model.KindInternal, "container status query failed", err)
	}
	return statuses, nil
}

// Logs returns the last lines lines of the group's combined output.
func (c *Controller) Logs(ctx context.Context, workspace string, lines int) (string, error) {
	if lines <= 0 {
		lines = DefaultLogLines
	}
	out, err := c.compose(ctx, workspace, c.timeouts.Op, "logs", "--tail", strconv.Itoa(lines))
	if err != nil {
		return "", engineError(model.KindInternal, "log retrieval failed", out, err)
	}
	return out, nil
}

// Exec runs a command inside a running service and blocks until it
// exits, returning its combined output.
func (c *Controller) Exec(ctx context.Context, workspace, service string, command ...string) (string, error) {
	args := append([]string{"exec", "-T", service}, command...)
	out, err := c.compose(ctx, workspace, c.timeouts.Op, args...)
	if err != nil {
		return out, engineError(model.KindInternal, fmt.Sprintf("exec in service %q failed", service), out, err)
	}
	return out, nil
}

// ExecDetached starts a process inside a running service and returns
// once the engine has accepted it. Used for long-lived in-container
// processes such as terminal sessions.
func (c *Controller) ExecDetached(ctx context.Context, workspace, service, command string) error {
	out, err := c.compose(ctx, workspace, c.timeouts.Op, "exec", "-d", service, "sh", "-c", command)
	if err != nil {
		return engineError(model.KindInternal, fmt.Sprintf("detached exec in service %q failed", service), out, err)
	}
	return nil
}

// compose invokes a docker compose verb against the workspace with the
// project name pinned, bounded by the given timeout.
func (c *Controller) compose(ctx context.Context, workspace string, timeout time.Duration, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := append([]string{"compose", "-p", ProjectName(workspace)}, args...)
	c.log.Debug().Str("workspace", workspace).Strs("args", full).Msg("invoking container engine")

	out, err := c.runner.Run(runCtx, workspace, "docker", full...)
	if err != nil && runCtx.Err() != nil {
		// The process was killed by the deadline; exec reports the
		// kill signal, so fold the context error in for classification.
		err = errors.Join(runCtx.Err(), err)
	}
	return out, err
}

// engineError folds a failed engine invocation into a domain error. A
// deadline hit is reported as a timeout regardless of the verb; the
// output tail rides along in the message so callers can log the cause.
func engineError(kind model.Kind, message, output string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return model.WrapE(model.KindTimeout, message+" (engine invocation timed out)", err)
	}
	if tail := outputTail(output); tail != "" {
		message = fmt.Sprintf("%s: %s", message, tail)
	}
	return model.WrapE(kind, message, err)
}

// outputTail returns the trailing slice of engine output that fits the
// capture bound.
func outputTail(output string) string {
	output = strings.TrimSpace(output)
	if len(output) > maxCapturedOutput {
		output = output[len(output)-maxCapturedOutput:]
	}
	return output
}
