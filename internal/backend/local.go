package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"

	gitutil "github.com/steveyegge/plait/internal/git"
	"github.com/steveyegge/plait/internal/types"
)

// localBackend treats work as complete when its branch history is fully
// contained in the base branch of the local repository. No remotes, no
// review step enforced.
type localBackend struct {
	repoDir string
}

func (b *localBackend) Name() string { return "local" }

func (b *localBackend) IsCompleted(ctx context.Context, h types.ExecHandle) (bool, error) {
	if h.Branch == "" {
		return false, nil
	}
	dir := h.Workdir
	if dir == "" {
		dir = b.repoDir
	}
	repo, err := gitutil.Open(dir)
	if err != nil {
		return false, &types.BackendUnavailableError{Backend: b.Name(), Err: err}
	}
	merged, err := gitutil.IsMerged(repo, h.Branch, h.Base)
	if err != nil {
		// A branch deleted after merging resolves to nothing; that is
		// not completion evidence, just absence of evidence.
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, &types.BackendUnavailableError{Backend: b.Name(), Err: err}
	}
	return merged, nil
}

func (b *localBackend) BuildInstructions(it *types.WorkItem, proj types.Project) string {
	return fmt.Sprintf(
		"Work on branch %s in %s.\nWhen done, merge it into %s:\n  git checkout %s && git merge %s\nThen run: plait sync",
		it.Branch, workdirOr(it, b.repoDir), proj.BaseBranch, proj.BaseBranch, it.Branch)
}

func workdirOr(it *types.WorkItem, fallback string) string {
	if it.Workdir != "" {
		return it.Workdir
	}
	return fallback
}
