package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hovel-sh/hovel/internal/metrics"
	"github.com/hovel-sh/hovel/internal/model"
	"github.com/hovel-sh/hovel/internal/template"
)

// Start brings up the branch's container group, or the named subset of
// its services. Starting a running branch is a success with no state
// change. Returns the base names of the services started.
func (e *Engine) Start(ctx context.Context, name string, services []string) (started []string, err error) {
	defer func() { metrics.Observe("start", err) }()

	mu := e.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	branch, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}

	if len(services) == 0 {
		services = branch.Services
	} else {
		for _, svc := range services {
			if !containsFold(branch.Services, svc) {
				return nil, model.Ef(model.KindInvalidRequest, "unknown service: %s", svc)
			}
		}
	}

	refs, err := e.serviceRefs(branch, services)
	if err != nil {
		return nil, err
	}
	if err = e.runtime.Up(ctx, branch.WorkspacePath, refs...); err != nil {
		return nil, err
	}

	branch.Status = model.StatusRunning
	if err = e.registry.Save(branch); err != nil {
		return nil, err
	}
	return services, nil
}

// Stop brings the branch's container group down. Stopping a stopped
// branch succeeds. Any terminal session dies with its container, so the
// session record is dropped here.
func (e *Engine) Stop(ctx context.Context, name string) (err error) {
	defer func() { metrics.Observe("stop", err) }()

	mu := e.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	branch, err := e.registry.Get(name)
	if err != nil {
		return err
	}

	if err = e.runtime.Down(ctx, branch.WorkspacePath); err != nil {
		return err
	}

	branch.Status = model.StatusStopped
	branch.TerminalSession = nil
	branch.TTYDPort = 0
	return e.registry.Save(branch)
}

// Restart cycles the branch's full container group. Containers are
// recreated, so any terminal session record is dropped.
func (e *Engine) Restart(ctx context.Context, name string) (err error) {
	defer func() { metrics.Observe("restart", err) }()

	mu := e.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	branch, err := e.registry.Get(name)
	if err != nil {
		return err
	}

	if err = e.runtime.Restart(ctx, branch.WorkspacePath); err != nil {
		return err
	}

	branch.Status = model.StatusRunning
	branch.TerminalSession = nil
	branch.TTYDPort = 0
	return e.registry.Save(branch)
}

// Status reports the branch's per-service container states. Read-only:
// the persisted status field is reconciled at startup, not on query.
func (e *Engine) Status(ctx context.Context, name string) ([]model.ServiceStatus, error) {
	branch, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return e.runtime.Status(ctx, branch.WorkspacePath)
}

// Logs returns the tail of the branch's combined container output.
func (e *Engine) Logs(ctx context.Context, name string, lines int) (string, error) {
	branch, err := e.registry.Get(name)
	if err != nil {
		return "", err
	}
	return e.runtime.Logs(ctx, branch.WorkspacePath, lines)
}

// Delete tears a branch down: containers, VCS branch, workspace tree,
// and port, in that order. Container and VCS failures are logged, not
// fatal — the registry removal is the step that matters, and the port
// is only released once the workspace (and thus the record) is gone.
func (e *Engine) Delete(ctx context.Context, name string) (err error) {
	defer func() { metrics.Observe("delete", err) }()

	mu := e.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	branch, err := e.registry.Get(name)
	if err != nil {
		return err
	}

	branch.Status = model.StatusDeleting
	if err = e.registry.Save(branch); err != nil {
		return err
	}

	if downErr := e.runtime.Down(ctx, branch.WorkspacePath); downErr != nil {
		e.log.Warn().Str("branch", name).Err(downErr).Msg("failed to stop containers during delete")
	}
	if vcsErr := e.vcs.DeleteBranch(name); vcsErr != nil {
		e.log.Warn().Str("branch", name).Err(vcsErr).Msg("failed to delete vcs branch during delete")
	}

	if err = e.registry.Delete(name); err != nil {
		return err
	}

	e.ports.Release(branch.Port)
	metrics.BranchesRegistered.Dec()
	e.log.Info().Str("branch", name).Msg("branch deleted")
	return nil
}

// StartTerminalSession launches a web terminal in the branch's primary
// service and persists the session record.
func (e *Engine) StartTerminalSession(ctx context.Context, name string) (session *model.TerminalSession, err error) {
	defer func() { metrics.Observe("terminal_session", err) }()

	mu := e.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	branch, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}

	refs, err := e.serviceRefs(branch, []string{branch.PrimaryService()})
	if err != nil {
		return nil, err
	}

	session, err = e.terminals.Start(ctx, branch, refs[0])
	if err != nil {
		return nil, err
	}

	branch.TerminalSession = session
	branch.TTYDPort = session.Port
	if err = e.registry.Save(branch); err != nil {
		return nil, err
	}
	return session, nil
}

// serviceRefs resolves base service names to the keys of the branch's
// rendered container-group spec.
func (e *Engine) serviceRefs(branch *model.Branch, bases []string) ([]string, error) {
	specPath := filepath.Join(branch.WorkspacePath, template.ComposeOutputName)
	data, err := os.ReadFile(specPath)
	if err != nil {
		return nil, model.WrapE(model.KindInternal, "workspace has no rendered container-group spec", err)
	}
	return template.ServiceRefs(data, branch.Name, bases)
}
