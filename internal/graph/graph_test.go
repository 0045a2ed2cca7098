package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/steveyegge/plait/internal/types"
)

func item(id string, status types.Status, deps ...string) *types.WorkItem {
	return &types.WorkItem{ID: id, Title: id, Status: status, DependsOn: deps}
}

func TestTopologicalOrderDeterministic(t *testing.T) {
	// a <- b, a <- c, {b,c} <- d. Ties break by id.
	doc := &types.Document{Items: []*types.WorkItem{
		item("wi-d", types.StatusPending, "wi-b", "wi-c"),
		item("wi-c", types.StatusPending, "wi-a"),
		item("wi-b", types.StatusPending, "wi-a"),
		item("wi-a", types.StatusPending),
	}}
	want := []string{"wi-a", "wi-b", "wi-c", "wi-d"}
	for i := 0; i < 5; i++ {
		got, err := TopologicalOrder(doc.Nodes())
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d: order = %v, want %v", i, got, want)
		}
	}
}

func TestTopologicalOrderCycle(t *testing.T) {
	doc := &types.Document{Items: []*types.WorkItem{
		item("wi-a", types.StatusPending, "wi-b"),
		item("wi-b", types.StatusPending, "wi-a"),
	}}
	_, err := TopologicalOrder(doc.Nodes())
	var cerr *types.CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("want CycleError, got %v", err)
	}
	if len(cerr.Path) < 3 || cerr.Path[0] != cerr.Path[len(cerr.Path)-1] {
		t.Errorf("cycle path should close on itself, got %v", cerr.Path)
	}
}

func TestSatisfied(t *testing.T) {
	tests := []struct {
		kind   types.NodeKind
		status types.Status
		want   bool
	}{
		{types.KindItem, types.StatusMerged, true},
		{types.KindItem, types.StatusClosed, false},
		{types.KindItem, types.StatusInReview, false},
		{types.KindMilestone, types.StatusDone, true},
		{types.KindMilestone, types.StatusInProgress, false},
		{types.KindReference, types.StatusDone, true},
		{types.KindReference, types.StatusPending, false},
	}
	for _, tt := range tests {
		if got := Satisfied(tt.kind, tt.status); got != tt.want {
			t.Errorf("Satisfied(%s, %s) = %v, want %v", tt.kind, tt.status, got, tt.want)
		}
	}
}

func TestReadyAndBlockedSets(t *testing.T) {
	mergedAt := testTime()
	doc := &types.Document{Items: []*types.WorkItem{
		item("wi-a", types.StatusMerged),
		item("wi-b", types.StatusPending, "wi-a"), // ready: dep merged
		item("wi-c", types.StatusPending, "wi-b"), // blocked: dep pending
		item("wi-d", types.StatusPending),         // ready: no deps
		item("wi-e", types.StatusInProgress),      // neither: already started
		item("wi-f", types.StatusPending, "wi-g"), // blocked: dep closed
		item("wi-g", types.StatusClosed),
	}}
	doc.Items[0].MergedAt = &mergedAt
	doc.Items[6].ClosedAt = &mergedAt

	if got, want := ReadySet(doc), []string{"wi-b", "wi-d"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ReadySet = %v, want %v", got, want)
	}
	if got, want := BlockedSet(doc), []string{"wi-c", "wi-f"}; !reflect.DeepEqual(got, want) {
		t.Errorf("BlockedSet = %v, want %v", got, want)
	}
	if got := UnsatisfiedDeps(doc, "wi-f"); !reflect.DeepEqual(got, []string{"wi-g"}) {
		t.Errorf("closed dependency should stay unsatisfied, got %v", got)
	}
}

func TestMilestoneStatus(t *testing.T) {
	ts := testTime()
	tests := []struct {
		name  string
		items []*types.WorkItem
		deps  []string
		want  types.Status
	}{
		{"no deps is vacuously done", nil, nil, types.StatusDone},
		{"all merged", []*types.WorkItem{item("wi-a", types.StatusMerged)}, []string{"wi-a"}, types.StatusDone},
		{"one in progress", []*types.WorkItem{item("wi-a", types.StatusInProgress)}, []string{"wi-a"}, types.StatusInProgress},
		{"all pending", []*types.WorkItem{item("wi-a", types.StatusPending)}, []string{"wi-a"}, types.StatusPending},
		{"closed dep never completes it", []*types.WorkItem{item("wi-a", types.StatusClosed)}, []string{"wi-a"}, types.StatusInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, it := range tt.items {
				if it.Status == types.StatusMerged {
					it.MergedAt = &ts
				}
				if it.Status == types.StatusClosed {
					it.ClosedAt = &ts
				}
			}
			doc := &types.Document{
				Items:      tt.items,
				Milestones: []*types.Milestone{{ID: "ms-1", Title: "m", Status: types.StatusPending, DependsOn: tt.deps}},
			}
			if got := MilestoneStatus(doc, doc.Milestones[0]); got != tt.want {
				t.Errorf("MilestoneStatus = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAddDependency(t *testing.T) {
	doc := &types.Document{Items: []*types.WorkItem{
		item("wi-a", types.StatusPending),
		item("wi-b", types.StatusPending, "wi-a"),
		item("wi-c", types.StatusPending, "wi-b"),
	}}

	// Closing the chain back to its head must be rejected atomically.
	err := AddDependency(doc, "wi-a", "wi-c")
	var cerr *types.CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("want CycleError, got %v", err)
	}
	if len(doc.Item("wi-a").DependsOn) != 0 {
		t.Error("rejected edge must not be recorded")
	}

	if err := AddDependency(doc, "wi-a", "wi-a"); err == nil {
		t.Error("self-edge should be a cycle")
	}

	if err := AddDependency(doc, "wi-c", "wi-a"); err != nil {
		t.Fatalf("legal edge rejected: %v", err)
	}
	// Duplicate insert is a no-op, not a second edge.
	if err := AddDependency(doc, "wi-c", "wi-a"); err != nil {
		t.Fatalf("duplicate edge errored: %v", err)
	}
	count := 0
	for _, d := range doc.Item("wi-c").DependsOn {
		if d == "wi-a" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("edge recorded %d times, want 1", count)
	}

	var uerr *types.UnknownNodeError
	if err := AddDependency(doc, "wi-x", "wi-a"); !errors.As(err, &uerr) {
		t.Errorf("unknown node should fail with UnknownNodeError, got %v", err)
	}
	if err := AddDependency(doc, "wi-a", "wi-x"); !errors.As(err, &uerr) {
		t.Errorf("unknown dependency should fail with UnknownNodeError, got %v", err)
	}
}

func TestAddDependencyOnReference(t *testing.T) {
	doc := &types.Document{
		Items: []*types.WorkItem{item("wi-a", types.StatusPending)},
		Refs: []*types.Reference{{
			ID: "ref-1", Title: "child", Location: "../child",
			Mode: types.ModeDescriptive, Status: types.StatusPending,
		}},
	}
	// Items may depend on references.
	if err := AddDependency(doc, "wi-a", "ref-1"); err != nil {
		t.Fatalf("item -> reference edge rejected: %v", err)
	}
	// The reverse direction is a real node but an illegal edge owner;
	// the error must not claim the node is unknown.
	err := AddDependency(doc, "ref-1", "wi-a")
	if err == nil {
		t.Fatal("references must not carry local dependencies")
	}
	var uerr *types.UnknownNodeError
	if errors.As(err, &uerr) {
		t.Errorf("ref-1 exists; got UnknownNodeError: %v", err)
	}
}

func TestRemoveDependencyUnblocks(t *testing.T) {
	ts := testTime()
	doc := &types.Document{Items: []*types.WorkItem{
		item("wi-a", types.StatusClosed),
		item("wi-b", types.StatusPending, "wi-a"),
	}}
	doc.Items[0].ClosedAt = &ts

	if got := ReadySet(doc); len(got) != 0 {
		t.Fatalf("dependent of closed item should be blocked, ready = %v", got)
	}
	if err := RemoveDependency(doc, "wi-b", "wi-a"); err != nil {
		t.Fatal(err)
	}
	if got := ReadySet(doc); !reflect.DeepEqual(got, []string{"wi-b"}) {
		t.Errorf("edge removal should unblock, ready = %v", got)
	}
}
