package types

import (
	"testing"
	"time"
)

func TestStatusIsValidForKind(t *testing.T) {
	tests := []struct {
		status Status
		kind   NodeKind
		want   bool
	}{
		{StatusPending, KindItem, true},
		{StatusInProgress, KindItem, true},
		{StatusInReview, KindItem, true},
		{StatusMerged, KindItem, true},
		{StatusClosed, KindItem, true},
		{StatusDone, KindItem, false},
		{StatusPending, KindMilestone, true},
		{StatusInProgress, KindMilestone, true},
		{StatusDone, KindMilestone, true},
		{StatusMerged, KindMilestone, false},
		{StatusInReview, KindReference, false},
		{StatusDone, KindReference, true},
		{Status("bogus"), KindItem, false},
	}
	for _, tt := range tests {
		if got := tt.status.IsValidForKind(tt.kind); got != tt.want {
			t.Errorf("IsValidForKind(%q, %q) = %v, want %v", tt.status, tt.kind, got, tt.want)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusMerged, StatusClosed} {
		if !s.IsTerminal() {
			t.Errorf("%q should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusInProgress, StatusInReview, StatusDone} {
		if s.IsTerminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
}

func TestWorkItemValidate(t *testing.T) {
	ts := time.Now()
	tests := []struct {
		name    string
		item    WorkItem
		wantErr bool
	}{
		{"valid pending", WorkItem{ID: "wi-1", Title: "t", Status: StatusPending}, false},
		{"missing id", WorkItem{Title: "t", Status: StatusPending}, true},
		{"missing title", WorkItem{ID: "wi-1", Status: StatusPending}, true},
		{"invalid status", WorkItem{ID: "wi-1", Title: "t", Status: "nope"}, true},
		{"merged without timestamp", WorkItem{ID: "wi-1", Title: "t", Status: StatusMerged}, true},
		{"merged with timestamp", WorkItem{ID: "wi-1", Title: "t", Status: StatusMerged, MergedAt: &ts}, false},
		{"closed without timestamp", WorkItem{ID: "wi-1", Title: "t", Status: StatusClosed}, true},
		{"closed with timestamp", WorkItem{ID: "wi-1", Title: "t", Status: StatusClosed, ClosedAt: &ts}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReferenceValidate(t *testing.T) {
	tests := []struct {
		name    string
		ref     Reference
		wantErr bool
	}{
		{"valid", Reference{ID: "ref-1", Location: "../child", Mode: ModeDescriptive, Status: StatusPending}, false},
		{"repo id only", Reference{ID: "ref-1", RepoID: "abc", Mode: ModePrescriptive, Status: StatusDone}, false},
		{"no location or repo id", Reference{ID: "ref-1", Mode: ModeDescriptive, Status: StatusPending}, true},
		{"bad mode", Reference{ID: "ref-1", Location: "x", Mode: "push-pull", Status: StatusPending}, true},
		{"item status on a reference", Reference{ID: "ref-1", Location: "x", Mode: ModeDescriptive, Status: StatusMerged}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ref.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSuggestionValidate(t *testing.T) {
	base := Suggestion{
		ID:          "sug-1",
		Origin:      Origin{RepoID: "abc"},
		Disposition: DispositionPending,
		Nodes: []SuggestionNode{
			{Key: "a", Title: "first"},
			{Key: "b", Title: "second", DependsOn: []string{"a"}},
		},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid suggestion rejected: %v", err)
	}

	dup := base
	dup.Nodes = []SuggestionNode{{Key: "a", Title: "x"}, {Key: "a", Title: "y"}}
	if err := dup.Validate(); err == nil {
		t.Error("duplicate keys should be rejected")
	}

	dangling := base
	dangling.Nodes = []SuggestionNode{{Key: "a", Title: "x", DependsOn: []string{"ghost"}}}
	if err := dangling.Validate(); err == nil {
		t.Error("dependency on unknown key should be rejected")
	}

	empty := base
	empty.Nodes = nil
	if err := empty.Validate(); err == nil {
		t.Error("suggestion with no nodes should be rejected")
	}
}

func TestDocumentNodeLookup(t *testing.T) {
	doc := &Document{
		Items:      []*WorkItem{{ID: "wi-1", Title: "a", Status: StatusPending, DependsOn: []string{"ms-1"}}},
		Milestones: []*Milestone{{ID: "ms-1", Title: "m", Status: StatusPending}},
		Refs:       []*Reference{{ID: "ref-1", Title: "r", Location: "x", Mode: ModeDescriptive, Status: StatusPending}},
	}
	if got := len(doc.Nodes()); got != 3 {
		t.Fatalf("Nodes() returned %d nodes, want 3", got)
	}
	n, ok := doc.Node("wi-1")
	if !ok || n.Kind != KindItem || len(n.DependsOn) != 1 {
		t.Errorf("Node(wi-1) = %+v, %v", n, ok)
	}
	if n, _ := doc.Node("ref-1"); n.Kind != KindReference || n.DependsOn != nil {
		t.Errorf("references must carry no local dependencies, got %+v", n)
	}
	if _, ok := doc.Node("missing"); ok {
		t.Error("unknown id should not resolve")
	}
}
