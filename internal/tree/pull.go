package tree

import (
	"context"
	"fmt"
	"time"

	"github.com/steveyegge/plait/internal/graph"
	"github.com/steveyegge/plait/internal/types"
)

// ChildStatus evaluates the match criterion against a child document:
// the status a reference to this child (optionally scoped to one plan)
// should carry. Done means every node in scope is satisfied; a scope
// with no nodes is vacuously done. In-progress means any node has left
// its initial status.
func ChildStatus(child *types.Document, plan string) (types.Status, error) {
	if plan != "" && child.PlanByID(plan) == nil {
		return "", fmt.Errorf("child has no plan %q", plan)
	}
	allSatisfied := true
	anyTouched := false
	for _, n := range child.Nodes() {
		if plan != "" && !inPlan(child, n.ID, plan) {
			continue
		}
		if !graph.Satisfied(n.Kind, n.Status) {
			allSatisfied = false
		}
		if n.Status != types.StatusPending {
			anyTouched = true
		}
	}
	switch {
	case allSatisfied:
		return types.StatusDone, nil
	case anyTouched:
		return types.StatusInProgress, nil
	default:
		return types.StatusPending, nil
	}
}

func inPlan(child *types.Document, id, plan string) bool {
	it := child.Item(id)
	return it != nil && it.Plan == plan
}

// Pull refreshes one reference in place from its child store. On
// success it records the evaluated status, clears staleness, fills the
// reference's RepoID on first contact, and verifies it on every later
// one: a location now pointing at a different repository is corruption,
// not an update. On an unreachable child the reference is marked stale
// with its previous status and timestamp preserved, and a RefStaleError
// is returned so the caller can report it without failing siblings.
func (r *Resolver) Pull(ctx context.Context, ref *types.Reference, now time.Time) error {
	child, err := r.Resolve(ctx, ref)
	if err != nil {
		ref.Stale = true
		return &types.RefStaleError{RefID: ref.ID, Location: ref.Location, Err: err}
	}
	childDoc, err := child.Store.Load()
	if err != nil {
		ref.Stale = true
		return &types.RefStaleError{RefID: ref.ID, Location: ref.Location, Err: err}
	}

	repoID, err := ChildRepoID(child)
	if err == nil && repoID != "" {
		switch {
		case ref.RepoID == "":
			ref.RepoID = repoID
		case ref.RepoID != repoID:
			return &types.CorruptStateError{
				Node: ref.ID,
				Reason: fmt.Sprintf("location %s now resolves to repo %s, expected %s",
					ref.Location, repoID, ref.RepoID),
			}
		}
	}

	status, err := ChildStatus(childDoc, ref.Plan)
	if err != nil {
		ref.Stale = true
		return &types.RefStaleError{RefID: ref.ID, Location: ref.Location, Err: err}
	}
	ref.Status = status
	ref.Stale = false
	t := now
	ref.LastSynced = &t
	return nil
}
