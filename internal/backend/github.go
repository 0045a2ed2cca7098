package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/steveyegge/plait/internal/types"
)

// githubBackend asks the gh CLI about the pull request for the item's
// branch. Completion means the PR is merged, not just the commits being
// reachable, so squash and rebase merges are detected too.
type githubBackend struct {
	repoDir string
}

func (b *githubBackend) Name() string { return "github" }

type prView struct {
	State    string `json:"state"`
	MergedAt string `json:"mergedAt"`
}

func (b *githubBackend) IsCompleted(ctx context.Context, h types.ExecHandle) (bool, error) {
	if h.Branch == "" {
		return false, nil
	}
	dir := h.Workdir
	if dir == "" {
		dir = b.repoDir
	}
	cmd := exec.CommandContext(ctx, "gh", "pr", "view", h.Branch, "--json", "state,mergedAt")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			stderr := string(ee.Stderr)
			// No PR yet is a normal pre-review state, not a failure.
			if strings.Contains(stderr, "no pull requests found") ||
				strings.Contains(stderr, "Could not resolve") {
				return false, nil
			}
			return false, &types.BackendUnavailableError{Backend: b.Name(), Err: fmt.Errorf("gh pr view: %s", strings.TrimSpace(stderr))}
		}
		return false, &types.BackendUnavailableError{Backend: b.Name(), Err: err}
	}
	var pr prView
	if err := json.Unmarshal(out, &pr); err != nil {
		return false, &types.BackendUnavailableError{Backend: b.Name(), Err: fmt.Errorf("parsing gh output: %w", err)}
	}
	return pr.State == "MERGED", nil
}

func (b *githubBackend) BuildInstructions(it *types.WorkItem, proj types.Project) string {
	return fmt.Sprintf(
		"Work on branch %s in %s.\nOpen a pull request against %s:\n  gh pr create --base %s --head %s\nOnce it merges, run: plait sync",
		it.Branch, workdirOr(it, b.repoDir), proj.BaseBranch, proj.BaseBranch, it.Branch)
}
