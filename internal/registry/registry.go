// Package registry implements the filesystem-backed branch store.
//
// Each registered branch owns a subdirectory of the workspaces root, and
// the subdirectory carries a .branch sidecar file holding the Branch
// record as JSON. The sidecar is the source of truth: there is no
// in-memory mirror, and a process restart recovers full state by
// scanning the root. Writes go through a temp-file-plus-rename sequence
// so a crash mid-save never leaves a corrupt record.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/hovel-sh/hovel/internal/model"
)

// SidecarName is the metadata file each branch workspace carries.
const SidecarName = ".branch"

// Registry persists branch records as sidecar files under a single
// workspaces root directory.
type Registry struct {
	root string
	log  zerolog.Logger
}

// New creates a Registry rooted at the given workspaces directory. The
// directory is created if it does not exist.
func New(root string, log zerolog.Logger) (*Registry, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspaces root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspaces root %s: %w", abs, err)
	}
	return &Registry{root: abs, log: log}, nil
}

// Root returns the absolute workspaces root directory.
func (r *Registry) Root() string {
	return r.root
}

// WorkspacePath returns the workspace directory a branch of the given
// name owns (whether or not it is registered).
func (r *Registry) WorkspacePath(name string) string {
	return filepath.Join(r.root, name)
}

// sidecarPath returns the path of the branch's metadata file.
func (r *Registry) sidecarPath(name string) string {
	return filepath.Join(r.root, name, SidecarName)
}

// Save writes the branch record atomically: the JSON is written to a
// sibling temp file and renamed over the sidecar. The rename is atomic
// on POSIX filesystems, so readers observe either the previous record
// or the new one, never a partial write.
func (r *Registry) Save(branch *model.Branch) error {
	dir := r.WorkspacePath(branch.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.WrapE(model.KindInternal, fmt.Sprintf("failed to create workspace directory %s", dir), err)
	}

	data, err := json.MarshalIndent(branch, "", "  ")
	if err != nil {
		return model.WrapE(model.KindInternal, fmt.Sprintf("failed to encode branch record %q", branch.Name), err)
	}
	data = append(data, '\n')

	tmp := r.sidecarPath(branch.Name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return model.WrapE(model.KindInternal, fmt.Sprintf("failed to write branch record for %q", branch.Name), err)
	}
	if err := os.Rename(tmp, r.sidecarPath(branch.Name)); err != nil {
		// Best effort: don't leave the temp file behind on a failed rename.
		_ = os.Remove(tmp)
		return model.WrapE(model.KindInternal, fmt.Sprintf("failed to commit branch record for %q", branch.Name), err)
	}
	return nil
}

// Get reads the branch record for the given name. Returns a not-found
// error when the workspace or its sidecar is absent.
func (r *Registry) Get(name string) (*model.Branch, error) {
	data, err := os.ReadFile(r.sidecarPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.Ef(model.KindNotFound, "branch %q not found", name)
		}
		return nil, model.WrapE(model.KindInternal, fmt.Sprintf("failed to read branch record for %q", name), err)
	}

	var branch model.Branch
	if err := json.Unmarshal(data, &branch); err != nil {
		return nil, model.WrapE(model.KindInternal, fmt.Sprintf("corrupt branch record for %q", name), err)
	}
	return &branch, nil
}

// List enumerates all registered branches by scanning the workspaces
// root. Subdirectories without a readable sidecar are skipped with a
// warning: they may be foreign directories or the debris of a crashed
// create, and neither should take the whole listing down.
func (r *Registry) List() ([]*model.Branch, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, model.WrapE(model.KindInternal, fmt.Sprintf("failed to scan workspaces root %s", r.root), err)
	}

	branches := make([]*model.Branch, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		branch, err := r.Get(entry.Name())
		if err != nil {
			r.log.Warn().Str("dir", entry.Name()).Err(err).Msg("skipping workspace directory without readable branch record")
			continue
		}
		branches = append(branches, branch)
	}
	return branches, nil
}

// Delete removes the branch's workspace tree, unregistering it. A
// missing workspace is not an error: delete is idempotent.
func (r *Registry) Delete(name string) error {
	if err := os.RemoveAll(r.WorkspacePath(name)); err != nil {
		return model.WrapE(model.KindInternal, fmt.Sprintf("failed to remove workspace for %q", name), err)
	}
	return nil
}

// Exists reports whether a branch of the given name is registered.
func (r *Registry) Exists(name string) bool {
	_, err := r.Get(name)
	return err == nil
}
