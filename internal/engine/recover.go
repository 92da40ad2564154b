package engine

import (
	"context"

	"github.com/hovel-sh/hovel/internal/metrics"
	"github.com/hovel-sh/hovel/internal/model"
)

// Recover rebuilds runtime state from the filesystem registry after a
// process start. It reseeds the port allocator from persisted records
// and reconciles each branch's persisted status against what the
// container engine actually reports:
//
//   - building: the job died with the previous process → failed.
//   - running with no live container → stopped.
//   - stopped/created with a live container → running (the engine kept
//     the group up across the controller restart).
//   - deleting: teardown was interrupted; the record survives so the
//     operator can re-issue the delete.
func (e *Engine) Recover(ctx context.Context) error {
	branches, err := e.registry.List()
	if err != nil {
		return err
	}

	metrics.BranchesRegistered.Set(float64(len(branches)))

	for _, branch := range branches {
		e.ports.MarkUsed(branch.Port)

		reconciled := e.reconcileStatus(ctx, branch)
		if reconciled == branch.Status {
			continue
		}

		e.log.Info().Str("branch", branch.Name).
			Str("persisted", branch.Status.String()).
			Str("reconciled", reconciled.String()).
			Msg("reconciling branch status after restart")

		branch.Status = reconciled
		if err := e.registry.Save(branch); err != nil {
			e.log.Error().Str("branch", branch.Name).Err(err).Msg("failed to persist reconciled status")
		}
	}

	e.log.Info().Int("branches", len(branches)).Msg("registry recovered")
	return nil
}

// reconcileStatus computes the post-restart status for one branch.
func (e *Engine) reconcileStatus(ctx context.Context, branch *model.Branch) model.Status {
	switch branch.Status {
	case model.StatusBuilding:
		return model.StatusFailed
	case model.StatusDeleting:
		return model.StatusDeleting
	}

	statuses, err := e.runtime.Status(ctx, branch.WorkspacePath)
	if err != nil {
		// Engine unreachable; keep the persisted status rather than
		// inventing one.
		e.log.Warn().Str("branch", branch.Name).Err(err).Msg("container status unavailable during recovery")
		return branch.Status
	}

	if model.AnyRunning(statuses) {
		return model.StatusRunning
	}
	if branch.Status == model.StatusRunning {
		return model.StatusStopped
	}
	return branch.Status
}
