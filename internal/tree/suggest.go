package tree

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	gitutil "github.com/steveyegge/plait/internal/git"
	"github.com/steveyegge/plait/internal/store"
	"github.com/steveyegge/plait/internal/types"
)

// NotTrustedError reports a suggestion push to a child that has not
// registered the pushing graph as a trusted upstream. Trust is the
// child's explicit opt-in; there is no override on the parent side.
type NotTrustedError struct {
	ChildRoot    string
	ParentRepoID string
}

func (e *NotTrustedError) Error() string {
	return fmt.Sprintf("child store at %s does not trust upstream %s; it must run plait tree trust first",
		e.ChildRoot, e.ParentRepoID)
}

// RegisterTrust records a parent graph the local store will accept
// suggestions from. Idempotent by repo id.
func RegisterTrust(doc *types.Document, repoID, name string) {
	for i, u := range doc.Project.TrustedUpstreams {
		if u.RepoID == repoID {
			doc.Project.TrustedUpstreams[i].Name = name
			return
		}
	}
	doc.Project.TrustedUpstreams = append(doc.Project.TrustedUpstreams, types.Upstream{RepoID: repoID, Name: name})
}

func trusts(child *types.Document, repoID string) bool {
	for _, u := range child.Project.TrustedUpstreams {
		if u.RepoID == repoID {
			return true
		}
	}
	return false
}

// PushSuggestion delivers a proposal from the parent graph into the
// child's suggestion inbox. The reference must be prescriptive and the
// child must trust the parent; both are checked before anything is
// written. Local children are mutated through their own store lock;
// remote children get the appended suggestion committed and pushed to
// their repository.
func (r *Resolver) PushSuggestion(ctx context.Context, parent *types.Document, ref *types.Reference, rationale string, nodes []types.SuggestionNode, actor string, now time.Time) (string, error) {
	if ref.Mode != types.ModePrescriptive {
		return "", fmt.Errorf("reference %s is %s; only prescriptive references can push suggestions", ref.ID, ref.Mode)
	}
	if parent.Project.RepoID == "" {
		return "", fmt.Errorf("local project has no repo_id yet; run plait sync first")
	}

	child, err := r.Resolve(ctx, ref)
	if err != nil {
		return "", &types.RefStaleError{RefID: ref.ID, Location: ref.Location, Err: err}
	}
	childDoc, err := child.Store.Load()
	if err != nil {
		return "", err
	}
	if !trusts(childDoc, parent.Project.RepoID) {
		return "", &NotTrustedError{ChildRoot: child.Store.Root, ParentRepoID: parent.Project.RepoID}
	}

	sug := &types.Suggestion{
		ID: "sug-" + uuid.NewString()[:8],
		Origin: types.Origin{
			RepoID:   parent.Project.RepoID,
			Name:     parent.Project.Name,
			Location: parent.Project.Repo,
		},
		Rationale:   rationale,
		Disposition: types.DispositionPending,
		Nodes:       nodes,
		CreatedAt:   now,
	}
	if err := sug.Validate(); err != nil {
		return "", err
	}

	_, err = child.Store.LockedUpdate(ctx, func(d *types.Document) error {
		if !trusts(d, parent.Project.RepoID) {
			return &NotTrustedError{ChildRoot: child.Store.Root, ParentRepoID: parent.Project.RepoID}
		}
		d.Suggestions = append(d.Suggestions, sug)
		return nil
	})
	if err != nil {
		return "", err
	}

	if !child.Writable {
		repo, err := gitutil.Open(child.CloneDir)
		if err != nil {
			return "", err
		}
		rel := filepath.Join(store.DirName, store.FileName)
		msg := fmt.Sprintf("plait: suggestion from %s", parent.Project.Name)
		if err := gitutil.CommitFile(repo, rel, msg, actor, now); err != nil {
			return "", err
		}
		if err := gitutil.Push(ctx, repo); err != nil {
			return "", fmt.Errorf("pushing suggestion to %s: %w", ref.Location, err)
		}
	}
	return sug.ID, nil
}

// AcceptResult names what accepting a suggestion materialized.
type AcceptResult struct {
	PlanID  string
	ItemIDs []string // in proposal order
}

// Accept materializes a pending suggestion as one new plan plus one
// work item per proposed node, with proposal-local dependency keys
// rewritten to the freshly minted ids. This is an ordinary local
// mutation of the owning store; the origin graph is never consulted.
func Accept(doc *types.Document, suggestionID string, now time.Time) (*AcceptResult, error) {
	sug := doc.SuggestionByID(suggestionID)
	if sug == nil {
		return nil, &types.UnknownNodeError{ID: suggestionID}
	}
	if sug.Disposition != types.DispositionPending {
		return nil, fmt.Errorf("suggestion %s is already %s", suggestionID, sug.Disposition)
	}

	ids := make(map[string]bool)
	for _, n := range doc.Nodes() {
		ids[n.ID] = true
	}
	for _, p := range doc.Plans {
		ids[p.ID] = true
	}
	taken := store.TakenIn(ids)

	planTitle := sug.Rationale
	if planTitle == "" {
		planTitle = fmt.Sprintf("Suggested by %s", sug.Origin.Name)
	}
	planID := store.ContentID(store.PlanPrefix, taken, planTitle, sug.ID)
	ids[planID] = true
	doc.Plans = append(doc.Plans, &types.Plan{
		ID:          planID,
		Title:       planTitle,
		Description: fmt.Sprintf("Accepted from upstream %s (%s)", sug.Origin.Name, sug.Origin.RepoID),
	})

	res := &AcceptResult{PlanID: planID}
	keyToID := make(map[string]string, len(sug.Nodes))
	for _, n := range sug.Nodes {
		id := store.ContentID(store.ItemPrefix, taken, n.Title, n.Description, sug.ID, n.Key)
		ids[id] = true
		keyToID[n.Key] = id
	}
	for _, n := range sug.Nodes {
		deps := make([]string, 0, len(n.DependsOn))
		for _, key := range n.DependsOn {
			deps = append(deps, keyToID[key])
		}
		doc.Items = append(doc.Items, &types.WorkItem{
			ID:          keyToID[n.Key],
			Title:       n.Title,
			Description: n.Description,
			Plan:        planID,
			Status:      types.StatusPending,
			DependsOn:   deps,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		res.ItemIDs = append(res.ItemIDs, keyToID[n.Key])
	}

	sug.Disposition = types.DispositionAccepted
	t := now
	sug.ResolvedAt = &t
	return res, nil
}

// Decline marks a pending suggestion rejected. Nothing is materialized
// and the record stays in the inbox for audit.
func Decline(doc *types.Document, suggestionID string, now time.Time) error {
	sug := doc.SuggestionByID(suggestionID)
	if sug == nil {
		return &types.UnknownNodeError{ID: suggestionID}
	}
	if sug.Disposition != types.DispositionPending {
		return fmt.Errorf("suggestion %s is already %s", suggestionID, sug.Disposition)
	}
	sug.Disposition = types.DispositionDeclined
	t := now
	sug.ResolvedAt = &t
	return nil
}
