package backend

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	gitutil "github.com/steveyegge/plait/internal/git"
	"github.com/steveyegge/plait/internal/types"
)

// vanillaBackend checks completion against the origin remote: fetch,
// then test whether origin/<branch> is an ancestor of origin/<base>.
// Works with any plain git host, no forge API required.
type vanillaBackend struct {
	repoDir string
}

func (b *vanillaBackend) Name() string { return "vanilla" }

func (b *vanillaBackend) IsCompleted(ctx context.Context, h types.ExecHandle) (bool, error) {
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
	err = repo.FetchContext(ctx, &gogit.FetchOptions{RemoteName: "origin"})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return false, &types.BackendUnavailableError{Backend: b.Name(), Err: err}
	}
	merged, err := gitutil.IsMerged(repo, "origin/"+h.Branch, "origin/"+h.Base)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, &types.BackendUnavailableError{Backend: b.Name(), Err: err}
	}
	return merged, nil
}

func (b *vanillaBackend) BuildInstructions(it *types.WorkItem, proj types.Project) string {
	return fmt.Sprintf(
		"Work on branch %s in %s.\nPush it and get it merged into %s on origin:\n  git push -u origin %s\nThen run: plait sync",
		it.Branch, workdirOr(it, b.repoDir), proj.BaseBranch, it.Branch)
}
