package vcs

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hovel-sh/hovel/internal/model"
)

// setupTestRepo creates a temporary git repository with one commit.
// A repo-level identity is configured so commits work in CI
// environments without a global git config.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	runTestGit(t, dir, "init")
	runTestGit(t, dir, "config", "user.email", "test@example.com")
	runTestGit(t, dir, "config", "user.name", "Test User")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Test Repo\n"), 0o644))
	runTestGit(t, dir, "add", ".")
	runTestGit(t, dir, "commit", "-m", "initial commit")

	return dir
}

// runTestGit runs a git command in dir and fails the test on error.
func runTestGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(output))
	return string(output)
}

// TestCreateBranch verifies the branch is created and checked out.
func TestCreateBranch(t *testing.T) {
	repo := setupTestRepo(t)
	g := NewGit(repo, zerolog.Nop())

	require.NoError(t, g.CreateBranch("feature-auth"))

	current := strings.TrimSpace(runTestGit(t, repo, "rev-parse", "--abbrev-ref", "HEAD"))
	assert.Equal(t, "feature-auth", current, "new branch should be checked out")
}

// TestCreateBranchExists rejects a duplicate branch name.
func TestCreateBranchExists(t *testing.T) {
	repo := setupTestRepo(t)
	g := NewGit(repo, zerolog.Nop())

	require.NoError(t, g.CreateBranch("feature-auth"))

	err := g.CreateBranch("feature-auth")
	require.Error(t, err)
	assert.Equal(t, model.KindVCSFailed, model.KindOf(err))
	assert.Contains(t, err.Error(), "already exists")
}

// TestCreateBranchNotARepo rejects a working tree that is not a git
// repository.
func TestCreateBranchNotARepo(t *testing.T) {
	g := NewGit(t.TempDir(), zerolog.Nop())

	err := g.CreateBranch("feature-auth")
	require.Error(t, err)
	assert.Equal(t, model.KindVCSFailed, model.KindOf(err))
}

// TestDeleteBranch removes a branch that is not checked out.
func TestDeleteBranch(t *testing.T) {
	repo := setupTestRepo(t)
	g := NewGit(repo, zerolog.Nop())

	require.NoError(t, g.CreateBranch("feature-auth"))
	// Step back so the branch is deletable without intervention.
	runTestGit(t, repo, "checkout", "-")

	require.NoError(t, g.DeleteBranch("feature-auth"))
	out := runTestGit(t, repo, "branch", "--list", "feature-auth")
	assert.Empty(t, strings.TrimSpace(out))
}

// TestDeleteCheckedOutBranch verifies the adapter steps off the branch
// before deleting it.
func TestDeleteCheckedOutBranch(t *testing.T) {
	repo := setupTestRepo(t)
	g := NewGit(repo, zerolog.Nop())

	require.NoError(t, g.CreateBranch("feature-auth"))

	require.NoError(t, g.DeleteBranch("feature-auth"))
	out := runTestGit(t, repo, "branch", "--list", "feature-auth")
	assert.Empty(t, strings.TrimSpace(out))

	current := strings.TrimSpace(runTestGit(t, repo, "rev-parse", "--abbrev-ref", "HEAD"))
	assert.NotEqual(t, "feature-auth", current)
}

// TestDeleteAbsentBranch is a no-op, not an error.
func TestDeleteAbsentBranch(t *testing.T) {
	repo := setupTestRepo(t)
	g := NewGit(repo, zerolog.Nop())

	assert.NoError(t, g.DeleteBranch("never-existed"))
}
