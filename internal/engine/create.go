package engine

import (
	"context"
	"os"
	"time"

	"github.com/hovel-sh/hovel/internal/metrics"
	"github.com/hovel-sh/hovel/internal/model"
	"github.com/hovel-sh/hovel/internal/template"
)

// CreateRequest carries the parameters of a branch creation.
type CreateRequest struct {
	// Name is the branch name.
	Name string

	// Services selects the template services included in the branch's
	// container group. Empty means the default service set.
	Services []string

	// APIKey is the AI provider key injected into the workspace and
	// validated before any resource is touched.
	APIKey string

	// AutoStart schedules a background build-and-start job after the
	// record is persisted.
	AutoStart bool
}

// Create provisions a new branch end to end: credential validation,
// port allocation, VCS branch, workspace render, registry record, and
// optionally a background build. Each step compensates the previous
// ones on failure, so a failed create leaves no residue — no held port,
// no VCS branch, no partial workspace.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (branch *model.Branch, err error) {
	defer func() { metrics.Observe("create", err) }()

	if err = model.ValidateName(req.Name); err != nil {
		return nil, err
	}
	if req.APIKey == "" {
		return nil, model.E(model.KindInvalidRequest, "gemini_api_key is required")
	}

	mu := e.lockFor(req.Name)
	mu.Lock()
	defer mu.Unlock()

	if e.registry.Exists(req.Name) {
		return nil, model.E(model.KindConflict, "branch exists")
	}

	// Resolve and validate the service set before touching any
	// resource: an unknown service must leave no workspace behind and
	// no port consumed.
	services, err := e.resolveServices(req.Services)
	if err != nil {
		return nil, err
	}

	// Step 1: validate the credential. Nothing to undo on failure.
	if err = e.validator.Validate(ctx, req.APIKey); err != nil {
		return nil, err
	}

	// Step 2: allocate the branch port.
	allocated, err := e.ports.Allocate()
	if err != nil {
		return nil, err
	}

	// Step 3: create the VCS branch. From here on, failures roll back.
	if err = e.vcs.CreateBranch(req.Name); err != nil {
		e.ports.Release(allocated)
		return nil, err
	}

	// Step 4: render the workspace.
	workspace := e.registry.WorkspacePath(req.Name)
	subs := template.RequiredSubstitutions(req.Name, allocated, req.APIKey)
	if err = e.renderer.Render(e.cfg.TemplatePath, workspace, subs, services); err != nil {
		e.compensateCreate(req.Name, allocated, workspace)
		return nil, err
	}

	// Step 5: persist the record. The sidecar write is what registers
	// the branch; removal of the workspace tree covers a partial
	// sidecar too.
	branch = &model.Branch{
		Name:                req.Name,
		Port:                allocated,
		WorkspacePath:       workspace,
		Services:            services,
		Status:              model.StatusCreated,
		CreatedAt:           time.Now().UTC(),
		CredentialValidated: true,
	}
	if err = e.registry.Save(branch); err != nil {
		e.compensateCreate(req.Name, allocated, workspace)
		return nil, err
	}

	e.log.Info().Str("branch", req.Name).Int("port", allocated).Strs("services", services).Msg("branch created")
	metrics.BranchesRegistered.Inc()

	// Step 6: optionally hand off to the background build pool. The
	// transition to building is persisted before the job is scheduled
	// so a crash in between recovers as a failed build, not a silent
	// created.
	if req.AutoStart {
		branch.Status = model.StatusBuilding
		if err = e.registry.Save(branch); err != nil {
			e.compensateCreate(req.Name, allocated, workspace)
			metrics.BranchesRegistered.Dec()
			return nil, err
		}
		e.scheduleBuild(req.Name)
	}

	return branch, nil
}

// resolveServices applies the default service set and verifies every
// requested service against the template's declared services.
func (e *Engine) resolveServices(requested []string) ([]string, error) {
	declared, err := e.templateServices()
	if err != nil {
		return nil, err
	}

	if len(requested) == 0 {
		requested = []string{model.DefaultService}
	}
	for _, svc := range requested {
		if svc == "" {
			return nil, model.E(model.KindInvalidRequest, "service names must not be empty")
		}
		if !containsFold(declared, svc) {
			return nil, model.Ef(model.KindInvalidRequest, "unknown service: %s", svc)
		}
	}
	return requested, nil
}

// compensateCreate unwinds a partially completed create: the port goes
// back to the pool, the VCS branch is deleted best-effort, and the
// partial workspace tree is removed.
func (e *Engine) compensateCreate(name string, allocated int, workspace string) {
	e.ports.Release(allocated)
	if err := e.vcs.DeleteBranch(name); err != nil {
		e.log.Warn().Str("branch", name).Err(err).Msg("failed to roll back vcs branch")
	}
	if err := os.RemoveAll(workspace); err != nil {
		e.log.Warn().Str("branch", name).Err(err).Msg("failed to remove partial workspace")
	}
}

// scheduleBuild hands a branch to the background build pool. The job
// serializes with every other operation on the branch via the
// per-branch lock, so a delete issued mid-build simply waits.
func (e *Engine) scheduleBuild(name string) {
	e.builds.Add(1)
	go func() {
		defer e.builds.Done()

		e.buildSem <- struct{}{}
		defer func() { <-e.buildSem }()

		metrics.BuildsInFlight.Inc()
		defer metrics.BuildsInFlight.Dec()

		mu := e.lockFor(name)
		mu.Lock()
		defer mu.Unlock()

		e.runBuild(name)
	}()
}

// runBuild executes the build-and-start job for a branch and persists
// the resulting state transition. Caller holds the branch lock.
func (e *Engine) runBuild(name string) {
	branch, err := e.registry.Get(name)
	if err != nil {
		// Deleted while queued; nothing to do.
		e.log.Debug().Str("branch", name).Msg("skipping build for unregistered branch")
		return
	}

	start := time.Now()

	// Verb-level timeouts live in the container controller; the job
	// context carries no cancellation, which is deliberate — graceful
	// shutdown waits for the job, and a kill -9 mid-build recovers as
	// failed on restart.
	ctx := context.Background()

	buildErr := e.runtime.Build(ctx, branch.WorkspacePath)
	if buildErr == nil {
		buildErr = e.runtime.Up(ctx, branch.WorkspacePath)
	}

	metrics.BuildDuration.Observe(time.Since(start).Seconds())
	metrics.Observe("build", buildErr)

	if buildErr != nil {
		branch.Status = model.StatusFailed
		e.log.Error().Str("branch", name).Err(buildErr).Msg("background build failed")
	} else {
		branch.Status = model.StatusRunning
		e.log.Info().Str("branch", name).Dur("took", time.Since(start)).Msg("background build completed")
	}

	if err := e.registry.Save(branch); err != nil {
		e.log.Error().Str("branch", name).Err(err).Msg("failed to persist build outcome")
	}
}
