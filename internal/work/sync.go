package work

import (
	"context"
	"sort"
	"time"

	"github.com/steveyegge/plait/internal/backend"
	"github.com/steveyegge/plait/internal/graph"
	"github.com/steveyegge/plait/internal/store"
	"github.com/steveyegge/plait/internal/types"
)

// Outcome is the per-item result of one sync sweep.
type Outcome struct {
	ID     string
	Merged bool
	Err    error // BackendUnavailableError when the check could not run
}

// SyncResult summarizes a sweep. NewlyReady is the set difference of
// ready items after versus before, so callers can surface unblocked
// work the moment its last dependency merges.
type SyncResult struct {
	Throttled  bool
	Checked    []Outcome
	Merged     []string
	NewlyReady []string
}

// Sync asks the backend about every active item and records merges.
// The flow is deliberately lock-free around the network: snapshot under
// no lock, query the backend, then apply verdicts in one LockedUpdate.
// Items that changed state concurrently are left alone; a backend
// failure skips just that item and the next sweep retries it. Running
// sync twice in a row is a no-op, and the whole sweep is skipped when
// the last one was under minInterval ago unless force is set.
func Sync(ctx context.Context, st *store.Store, b backend.Backend, now time.Time, minInterval time.Duration, force bool) (*SyncResult, error) {
	doc, err := st.Load()
	if err != nil {
		return nil, err
	}

	res := &SyncResult{}
	last := doc.Project.LastItemSync
	if !force && last != nil && now.Sub(*last) < minInterval {
		res.Throttled = true
		return res, nil
	}

	readyBefore := graph.ReadySet(doc)

	var mergedIDs []string
	for _, it := range doc.Items {
		if it.Status != types.StatusInProgress && it.Status != types.StatusInReview {
			continue
		}
		merged, err := b.IsCompleted(ctx, doc.Handle(it))
		res.Checked = append(res.Checked, Outcome{ID: it.ID, Merged: merged, Err: err})
		if err == nil && merged {
			mergedIDs = append(mergedIDs, it.ID)
		}
	}

	updated, err := st.LockedUpdate(ctx, func(d *types.Document) error {
		for _, id := range mergedIDs {
			it := d.Item(id)
			if it == nil || it.Status.IsTerminal() {
				continue
			}
			it.Status = types.StatusMerged
			merged := now
			it.MergedAt = &merged
			it.Touch(now)
			res.Merged = append(res.Merged, it.ID)
		}
		t := now
		d.Project.LastItemSync = &t
		graph.RecomputeMilestones(d)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.NewlyReady = diffSorted(graph.ReadySet(updated), readyBefore)
	sort.Strings(res.Merged)
	return res, nil
}

// diffSorted returns the members of after not present in before. Both
// inputs are sorted; so is the result.
func diffSorted(after, before []string) []string {
	seen := make(map[string]bool, len(before))
	for _, id := range before {
		seen[id] = true
	}
	var out []string
	for _, id := range after {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}
