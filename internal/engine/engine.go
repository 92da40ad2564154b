package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hovel-sh/hovel/internal/config"
	"github.com/hovel-sh/hovel/internal/model"
	"github.com/hovel-sh/hovel/internal/port"
	"github.com/hovel-sh/hovel/internal/registry"
	"github.com/hovel-sh/hovel/internal/template"
	"github.com/hovel-sh/hovel/internal/terminal"
)

// CredentialValidator verifies an AI API key against the provider.
type CredentialValidator interface {
	Validate(ctx context.Context, key string) error
}

// VCS manages version-control branches in the controller's working tree.
type VCS interface {
	CreateBranch(name string) error
	DeleteBranch(name string) error
}

// ContainerRuntime drives a workspace's container group.
type ContainerRuntime interface {
	Build(ctx context.Context, workspace string) error
	Up(ctx context.Context, workspace string, services ...string) error
	Down(ctx context.Context, workspace string) error
	Restart(ctx context.Context, workspace string) error
	Status(ctx context.Context, workspace string) ([]model.ServiceStatus, error)
	Logs(ctx context.Context, workspace string, lines int) (string, error)
	ExecDetached(ctx context.Context, workspace, service, command string) error
}

// Engine is the branch lifecycle orchestrator.
type Engine struct {
	cfg       *config.Config
	registry  *registry.Registry
	ports     *port.Allocator
	renderer  *template.Renderer
	validator CredentialValidator
	vcs       VCS
	runtime   ContainerRuntime
	terminals *terminal.Manager
	log       zerolog.Logger

	// locks holds one mutex per branch name, lazily allocated and never
	// removed. Entries are cheap; branch names are bounded by the port
	// range anyway.
	locks sync.Map

	// buildSem bounds concurrent background builds.
	buildSem chan struct{}

	// builds tracks in-flight background jobs for shutdown draining.
	builds sync.WaitGroup
}

// New creates an Engine.
func New(cfg *config.Config, reg *registry.Registry, ports *port.Allocator, renderer *template.Renderer, validator CredentialValidator, vcs VCS, runtime ContainerRuntime, terminals *terminal.Manager, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		registry:  reg,
		ports:     ports,
		renderer:  renderer,
		validator: validator,
		vcs:       vcs,
		runtime:   runtime,
		terminals: terminals,
		log:       log,
		buildSem:  make(chan struct{}, cfg.BuildConcurrency),
	}
}

// lockFor returns the branch's mutex, allocating it on first use.
func (e *Engine) lockFor(name string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(name, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Get returns the registered branch of the given name.
func (e *Engine) Get(name string) (*model.Branch, error) {
	return e.registry.Get(name)
}

// List returns all registered branches sorted by name.
func (e *Engine) List() ([]*model.Branch, error) {
	branches, err := e.registry.List()
	if err != nil {
		return nil, err
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

// Wait blocks until every in-flight background build has finished. Used
// during graceful shutdown so a terminating controller does not abandon
// a build mid-transition.
func (e *Engine) Wait() {
	e.builds.Wait()
}

// templateServices reads the template's container-group spec and
// returns its declared base service names.
func (e *Engine) templateServices() ([]string, error) {
	specPath := filepath.Join(e.cfg.TemplatePath, template.ComposeTemplateName)
	data, err := os.ReadFile(specPath)
	if err != nil {
		return nil, model.WrapE(model.KindTemplateError, "template has no container-group spec", err)
	}
	return template.TemplateServices(data)
}

// containsFold reports whether list contains s, case-insensitively.
// Service matching is case-insensitive throughout, mirroring the
// template filter.
func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
