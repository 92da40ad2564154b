// Package vcs creates and deletes version-control branches in the
// controller's working tree by shelling out to the git CLI.
//
// The working tree is global state: creating a branch checks it out,
// which affects every concurrent caller. All operations therefore hold
// a single adapter-wide mutex. Operations are advisory — the engine
// rolls back branch creation when a later create step fails, and treats
// deletion as best-effort.
package vcs

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hovel-sh/hovel/internal/model"
)

// Git is the version-control adapter over the controller's working tree.
type Git struct {
	repoPath string
	mu       sync.Mutex
	log      zerolog.Logger
}

// NewGit creates an adapter operating on the given working tree.
func NewGit(repoPath string, log zerolog.Logger) *Git {
	return &Git{repoPath: repoPath, log: log}
}

// CreateBranch creates a branch at the current head and checks it out.
// Fails when the branch already exists, when the path is not a
// repository, or when git itself is unavailable.
func (g *Git) CreateBranch(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.ensureRepo(); err != nil {
		return err
	}
	if g.branchExists(name) {
		return model.Ef(model.KindVCSFailed, "vcs branch %q already exists", name)
	}
	if _, err := g.run("checkout", "-b", name); err != nil {
		return err
	}
	return nil
}

// DeleteBranch removes the branch, best-effort. When the branch is
// currently checked out, the previous checkout is restored first so the
// delete can proceed; any failure is logged and swallowed.
func (g *Git) DeleteBranch(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.ensureRepo(); err != nil {
		g.log.Warn().Err(err).Str("vcs_branch", name).Msg("skipping vcs branch delete")
		return nil
	}
	if !g.branchExists(name) {
		return nil
	}

	// git refuses to delete the checked-out branch, so step off it
	// first. "-" returns to the previously checked-out ref.
	if current, err := g.run("rev-parse", "--abbrev-ref", "HEAD"); err == nil && strings.TrimSpace(current) == name {
		if _, err := g.run("checkout", "-"); err != nil {
			g.log.Warn().Err(err).Str("vcs_branch", name).Msg("failed to leave branch before delete")
			return nil
		}
	}

	if _, err := g.run("branch", "-D", name); err != nil {
		g.log.Warn().Err(err).Str("vcs_branch", name).Msg("failed to delete vcs branch")
	}
	return nil
}

// ensureRepo verifies the configured path is a git working tree.
func (g *Git) ensureRepo() error {
	if _, err := g.run("rev-parse", "--git-dir"); err != nil {
		return model.WrapE(model.KindVCSFailed, fmt.Sprintf("%s is not a git repository", g.repoPath), err)
	}
	return nil
}

// branchExists reports whether a local branch of the given name exists.
func (g *Git) branchExists(name string) bool {
	_, err := g.run("rev-parse", "--verify", "refs/heads/"+name)
	return err == nil
}

// run executes a git command against the working tree via `git -C`,
// which keeps the controller's own working directory untouched. On
// failure the stderr output is folded into the returned error.
func (g *Git) run(args ...string) (string, error) {
	fullArgs := append([]string{"-C", g.repoPath}, args...)

	// #nosec G204 — arguments are validated branch names and fixed verbs
	cmd := exec.Command("git", fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if s := strings.TrimSpace(stderr.String()); s != "" {
			message = fmt.Sprintf("%s: %s", message, s)
		}
		return "", model.WrapE(model.KindVCSFailed, message, err)
	}
	return stdout.String(), nil
}
