package graph

import (
	"reflect"
	"testing"
	"time"

	"github.com/steveyegge/plait/internal/types"
)

func testTime() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

func TestLayersLongestChain(t *testing.T) {
	// a <- b <- d, a <- c, with d also depending on c. d's longest
	// chain is a-b-d, so it sits in layer 2 even though c is layer 1.
	doc := &types.Document{Items: []*types.WorkItem{
		item("a", types.StatusPending),
		item("b", types.StatusPending, "a"),
		item("c", types.StatusPending, "a"),
		item("d", types.StatusPending, "b", "c"),
	}}
	got := Layers(doc.Nodes())
	want := [][]string{{"a"}, {"b", "c"}, {"d"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Layers = %v, want %v", got, want)
	}
}

func TestComputeSingleDepSharesParentRow(t *testing.T) {
	doc := &types.Document{Items: []*types.WorkItem{
		item("a", types.StatusPending),
		item("b", types.StatusPending, "a"),
		item("c", types.StatusPending, "b"),
	}}
	layout := Compute(doc.Nodes())
	// A pure chain stays on one row across three columns.
	for i, id := range []string{"a", "b", "c"} {
		p := layout.Positions[id]
		if p.Column != i || p.Row != 0 {
			t.Errorf("%s at (%d,%d), want (%d,0)", id, p.Column, p.Row, i)
		}
	}
}

func TestComputeSiblingsStackBelowFirst(t *testing.T) {
	doc := &types.Document{Items: []*types.WorkItem{
		item("a", types.StatusPending),
		item("b", types.StatusPending, "a"),
		item("c", types.StatusPending, "a"),
	}}
	layout := Compute(doc.Nodes())
	if layout.Positions["b"].Row != 0 {
		t.Errorf("first child should share the parent row, got %d", layout.Positions["b"].Row)
	}
	if layout.Positions["c"].Row != 1 {
		t.Errorf("second child should sit directly below, got %d", layout.Positions["c"].Row)
	}
}

func TestComputeMultiDepTargetsMeanRow(t *testing.T) {
	doc := &types.Document{Items: []*types.WorkItem{
		item("a", types.StatusPending),
		item("b", types.StatusPending),
		item("c", types.StatusPending),
		item("j", types.StatusPending, "a", "c"),
	}}
	layout := Compute(doc.Nodes())
	// Roots a,b,c fill rows 0,1,2; the join of rows 0 and 2 lands on
	// the mean, row 1.
	if got := layout.Positions["j"].Row; got != 1 {
		t.Errorf("join row = %d, want 1", got)
	}
	if got := layout.Positions["j"].Column; got != 1 {
		t.Errorf("join column = %d, want 1", got)
	}
}

func TestComputeDeterministic(t *testing.T) {
	doc := &types.Document{Items: []*types.WorkItem{
		item("a", types.StatusPending),
		item("b", types.StatusPending),
		item("c", types.StatusPending, "a"),
		item("d", types.StatusPending, "a", "b"),
		item("e", types.StatusPending, "d"),
	}}
	first := Compute(doc.Nodes())
	for i := 0; i < 10; i++ {
		again := Compute(doc.Nodes())
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("layout changed between runs:\n%+v\n%+v", first, again)
		}
	}
	if len(first.Order) != 5 {
		t.Errorf("Order has %d entries, want 5", len(first.Order))
	}
	seen := map[string]bool{}
	for _, id := range first.Order {
		if seen[id] {
			t.Errorf("id %s appears twice in Order", id)
		}
		seen[id] = true
	}
}

func TestComputeEmpty(t *testing.T) {
	layout := Compute(nil)
	if len(layout.Order) != 0 || len(layout.Positions) != 0 {
		t.Errorf("empty graph should yield empty layout, got %+v", layout)
	}
}
