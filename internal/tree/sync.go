package tree

import (
	"context"
	"errors"
	"time"

	"github.com/steveyegge/plait/internal/backend"
	gitutil "github.com/steveyegge/plait/internal/git"
	"github.com/steveyegge/plait/internal/graph"
	"github.com/steveyegge/plait/internal/store"
	"github.com/steveyegge/plait/internal/types"
	"github.com/steveyegge/plait/internal/work"
)

// RefOutcome is the result of pulling one reference during a tree sync.
type RefOutcome struct {
	StoreRoot string
	RefID     string
	Status    types.Status
	Stale     bool
	Err       error
}

// ItemResult is the result of one store's item-level backend sweep
// during a tree sync.
type ItemResult struct {
	StoreRoot  string
	Merged     []string
	NewlyReady []string
	Err        error
}

// SyncReport collects everything a tree walk did: one ItemResult per
// visited store and one RefOutcome per pulled reference.
type SyncReport struct {
	Items    []ItemResult
	Outcomes []RefOutcome
}

// TreeSync syncs the whole tree, depth first: for each store it runs the
// item-level backend sweep against that store's own configured backend,
// then pulls its references. Writable (local-path) children are synced
// before their status is evaluated, so the parent sees the freshest
// bottom-up picture; remote children are evaluated from their committed
// state only. Each repository is visited once per walk, keyed by its
// stable identity, which makes diamonds cheap and cycles terminate.
//
// Failures are per-outcome, never whole-walk: a corrupt or unreachable
// child is recorded in the report and the rest of the tree proceeds.
func (r *Resolver) TreeSync(ctx context.Context, st *store.Store, now time.Time) (*SyncReport, error) {
	report := &SyncReport{}
	visited := map[string]bool{}
	if err := r.syncStore(ctx, st, now, visited, report); err != nil {
		return nil, err
	}
	return report, nil
}

// syncItems runs one store's backend sweep and records the result.
// Every failure mode is an ItemResult, never a walk abort.
func (r *Resolver) syncItems(ctx context.Context, st *store.Store, now time.Time, report *SyncReport) {
	doc, err := st.Load()
	if err != nil {
		report.Items = append(report.Items, ItemResult{StoreRoot: st.Root, Err: err})
		return
	}
	b, err := backend.New(doc.Project.Backend, st.Root)
	if err != nil {
		report.Items = append(report.Items, ItemResult{StoreRoot: st.Root, Err: err})
		return
	}
	res, err := work.Sync(ctx, st, b, now, r.SyncMinInterval, false)
	if err != nil {
		report.Items = append(report.Items, ItemResult{StoreRoot: st.Root, Err: err})
		return
	}
	if res.Throttled {
		return
	}
	report.Items = append(report.Items, ItemResult{
		StoreRoot:  st.Root,
		Merged:     res.Merged,
		NewlyReady: res.NewlyReady,
	})
}

// syncStore handles one store of the walk. The only error it returns is
// for the root itself being unusable; anything wrong with a child lands
// in the report as that child's outcome.
func (r *Resolver) syncStore(ctx context.Context, st *store.Store, now time.Time, visited map[string]bool, report *SyncReport) error {
	key := storeKey(st)
	if visited[key] {
		return nil
	}
	visited[key] = true

	r.syncItems(ctx, st, now, report)

	doc, err := st.Load()
	if err != nil {
		return err
	}

	// Recurse into writable children first. A broken child is its own
	// outcome; the parent still pulls every ref below.
	for _, ref := range doc.Refs {
		child, err := r.Resolve(ctx, ref)
		if err != nil || !child.Writable {
			continue
		}
		if err := r.syncStore(ctx, child.Store, now, visited, report); err != nil {
			report.Outcomes = append(report.Outcomes, RefOutcome{
				StoreRoot: st.Root,
				RefID:     ref.ID,
				Err:       err,
			})
		}
	}

	// Pull all refs outside the lock, then apply in one update.
	type pulled struct {
		ref types.Reference
		err error
	}
	results := make([]pulled, 0, len(doc.Refs))
	for _, ref := range doc.Refs {
		cp := *ref
		err := r.Pull(ctx, &cp, now)
		results = append(results, pulled{ref: cp, err: err})
		report.Outcomes = append(report.Outcomes, RefOutcome{
			StoreRoot: st.Root,
			RefID:     cp.ID,
			Status:    cp.Status,
			Stale:     cp.Stale,
			Err:       err,
		})
	}

	if len(results) == 0 {
		return nil
	}
	_, err = st.LockedUpdate(ctx, func(d *types.Document) error {
		for _, p := range results {
			cur := d.Ref(p.ref.ID)
			if cur == nil {
				continue
			}
			if p.err != nil {
				// An unusable child is staleness, even when what broke
				// it is its own corruption. Only an identity mismatch
				// of this reference (a bare CorruptStateError) leaves
				// the reference exactly as it was.
				var serr *types.RefStaleError
				var cerr *types.CorruptStateError
				if !errors.As(p.err, &serr) && errors.As(p.err, &cerr) {
					continue
				}
				cur.Stale = true
				continue
			}
			cur.Status = p.ref.Status
			cur.RepoID = p.ref.RepoID
			cur.Stale = false
			cur.LastSynced = p.ref.LastSynced
		}
		graph.RecomputeMilestones(d)
		return nil
	})
	return err
}

// storeKey identifies a store for cycle detection: its repository's
// root commit when available, its path otherwise.
func storeKey(st *store.Store) string {
	if repo, err := gitutil.Open(st.Root); err == nil {
		if id, err := gitutil.RootCommitID(repo); err == nil {
			return id
		}
	}
	return st.Root
}
