// Package work implements the work item lifecycle: claiming ready
// items, moving them through review, closing them, and the backend
// sync sweep that detects external completion.
package work

import (
	"fmt"
	"time"

	"github.com/steveyegge/plait/internal/graph"
	"github.com/steveyegge/plait/internal/store"
	"github.com/steveyegge/plait/internal/types"
)

// StartResult reports what a start did.
type StartResult struct {
	Item *types.WorkItem

	// PreviousAssignee is set when the item was already in progress
	// under someone else and --force re-claimed it.
	PreviousAssignee string
}

// AlreadyStartedError reports a start on an item someone is working on.
// Assignment is advisory; the caller may force past this.
type AlreadyStartedError struct {
	ID       string
	Assignee string
}

func (e *AlreadyStartedError) Error() string {
	return fmt.Sprintf("%s is already in progress (assignee %s); use --force to take it over", e.ID, e.Assignee)
}

// Start claims a ready item: status to in_progress, assignee recorded,
// branch name derived from the id and title. Only members of the ready
// set can start; anything else fails with NotReadyError naming the
// unsatisfied dependencies. An item already in progress is refused
// unless force is set, and force never rewinds review or terminal
// states.
func Start(doc *types.Document, id, actor string, now time.Time, force bool) (*StartResult, error) {
	it := doc.Item(id)
	if it == nil {
		return nil, &types.UnknownNodeError{ID: id}
	}
	res := &StartResult{Item: it}
	switch it.Status {
	case types.StatusPending:
		// claim below
	case types.StatusInProgress:
		if !force {
			return nil, &AlreadyStartedError{ID: id, Assignee: it.Assignee}
		}
		res.PreviousAssignee = it.Assignee
		it.Assignee = actor
		it.Touch(now)
		return res, nil
	default:
		return nil, fmt.Errorf("%s is %s and cannot be started", id, it.Status)
	}

	if unsat := graph.UnsatisfiedDeps(doc, id); len(unsat) > 0 {
		return nil, &types.NotReadyError{ID: id, Unsatisfied: unsat}
	}

	it.Status = types.StatusInProgress
	it.Assignee = actor
	if it.Branch == "" {
		it.Branch = BranchName(it)
	}
	started := now
	it.StartedAt = &started
	it.Touch(now)
	graph.RecomputeMilestones(doc)
	return res, nil
}

// BranchName derives the working branch for an item.
func BranchName(it *types.WorkItem) string {
	slug := store.Slug(it.Title)
	if slug == "" {
		return "plait/" + it.ID
	}
	return "plait/" + it.ID + "-" + slug
}

// MarkInReview hands an in-progress item over for review. The merged
// verdict itself only ever comes from the backend via Sync.
func MarkInReview(doc *types.Document, id string, now time.Time) (*types.WorkItem, error) {
	it := doc.Item(id)
	if it == nil {
		return nil, &types.UnknownNodeError{ID: id}
	}
	if it.Status != types.StatusInProgress {
		return nil, fmt.Errorf("%s is %s; only in_progress items can move to review", id, it.Status)
	}
	it.Status = types.StatusInReview
	it.Touch(now)
	return it, nil
}

// Close abandons an item. Merged is monotonic and cannot be closed;
// closing is allowed from any other state, including pending. Dependents
// of a closed item stay blocked until their edges are removed, which is
// a deliberate prompt to re-plan rather than silently dropping work.
func Close(doc *types.Document, id string, now time.Time) (*types.WorkItem, error) {
	it := doc.Item(id)
	if it == nil {
		return nil, &types.UnknownNodeError{ID: id}
	}
	switch it.Status {
	case types.StatusMerged:
		return nil, fmt.Errorf("%s is merged; merged items cannot be closed", id)
	case types.StatusClosed:
		return it, nil
	}
	it.Status = types.StatusClosed
	closed := now
	it.ClosedAt = &closed
	it.Touch(now)
	graph.RecomputeMilestones(doc)
	return it, nil
}
