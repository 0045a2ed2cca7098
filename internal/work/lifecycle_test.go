package work

import (
	"errors"
	"testing"
	"time"

	"github.com/steveyegge/plait/internal/types"
)

func testNow() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

func twoItemDoc() *types.Document {
	now := testNow()
	return &types.Document{
		Project: types.Project{Name: "demo", BaseBranch: "main", Backend: "local"},
		Items: []*types.WorkItem{
			{ID: "wi-a", Title: "Add parser", Status: types.StatusPending, CreatedAt: now, UpdatedAt: now},
			{ID: "wi-b", Title: "Wire parser in", Status: types.StatusPending, DependsOn: []string{"wi-a"}, CreatedAt: now, UpdatedAt: now},
		},
	}
}

func TestStartClaimsReadyItem(t *testing.T) {
	doc := twoItemDoc()
	res, err := Start(doc, "wi-a", "ana", testNow(), false)
	if err != nil {
		t.Fatal(err)
	}
	it := res.Item
	if it.Status != types.StatusInProgress {
		t.Errorf("status = %s, want in_progress", it.Status)
	}
	if it.Assignee != "ana" {
		t.Errorf("assignee = %q, want ana", it.Assignee)
	}
	if it.Branch != "plait/wi-a-add-parser" {
		t.Errorf("branch = %q", it.Branch)
	}
	if it.StartedAt == nil {
		t.Error("started_at not recorded")
	}
}

func TestStartRefusesBlockedItem(t *testing.T) {
	doc := twoItemDoc()
	_, err := Start(doc, "wi-b", "ana", testNow(), false)
	var nerr *types.NotReadyError
	if !errors.As(err, &nerr) {
		t.Fatalf("want NotReadyError, got %v", err)
	}
	if len(nerr.Unsatisfied) != 1 || nerr.Unsatisfied[0] != "wi-a" {
		t.Errorf("unsatisfied = %v, want [wi-a]", nerr.Unsatisfied)
	}
	if doc.Item("wi-b").Status != types.StatusPending {
		t.Error("failed start must not change status")
	}
}

func TestStartUnknownItem(t *testing.T) {
	var uerr *types.UnknownNodeError
	if _, err := Start(twoItemDoc(), "wi-x", "ana", testNow(), false); !errors.As(err, &uerr) {
		t.Fatalf("want UnknownNodeError, got %v", err)
	}
}

func TestStartContested(t *testing.T) {
	doc := twoItemDoc()
	if _, err := Start(doc, "wi-a", "ana", testNow(), false); err != nil {
		t.Fatal(err)
	}

	_, err := Start(doc, "wi-a", "ben", testNow(), false)
	var serr *AlreadyStartedError
	if !errors.As(err, &serr) {
		t.Fatalf("want AlreadyStartedError, got %v", err)
	}
	if doc.Item("wi-a").Assignee != "ana" {
		t.Error("contested start must not steal the assignment")
	}

	res, err := Start(doc, "wi-a", "ben", testNow(), true)
	if err != nil {
		t.Fatal(err)
	}
	if res.PreviousAssignee != "ana" {
		t.Errorf("previous assignee = %q, want ana", res.PreviousAssignee)
	}
	if doc.Item("wi-a").Assignee != "ben" {
		t.Error("forced start should take over")
	}
}

func TestStartNeverRewindsTerminal(t *testing.T) {
	doc := twoItemDoc()
	ts := testNow()
	doc.Items[0].Status = types.StatusMerged
	doc.Items[0].MergedAt = &ts
	if _, err := Start(doc, "wi-a", "ana", testNow(), true); err == nil {
		t.Error("merged item must not be startable, even with force")
	}
}

func TestMarkInReview(t *testing.T) {
	doc := twoItemDoc()
	if _, err := MarkInReview(doc, "wi-a", testNow()); err == nil {
		t.Error("pending item cannot go straight to review")
	}
	if _, err := Start(doc, "wi-a", "ana", testNow(), false); err != nil {
		t.Fatal(err)
	}
	it, err := MarkInReview(doc, "wi-a", testNow())
	if err != nil {
		t.Fatal(err)
	}
	if it.Status != types.StatusInReview {
		t.Errorf("status = %s, want in_review", it.Status)
	}
}

func TestCloseRules(t *testing.T) {
	doc := twoItemDoc()
	it, err := Close(doc, "wi-a", testNow())
	if err != nil {
		t.Fatal(err)
	}
	if it.Status != types.StatusClosed || it.ClosedAt == nil {
		t.Errorf("close incomplete: %+v", it)
	}
	// Idempotent.
	if _, err := Close(doc, "wi-a", testNow()); err != nil {
		t.Errorf("closing a closed item should be a no-op, got %v", err)
	}

	ts := testNow()
	doc.Items[1].Status = types.StatusMerged
	doc.Items[1].MergedAt = &ts
	doc.Items[1].DependsOn = nil
	if _, err := Close(doc, "wi-b", testNow()); err == nil {
		t.Error("merged is monotonic; close must fail")
	}
}

func TestBranchName(t *testing.T) {
	it := &types.WorkItem{ID: "wi-abc1234", Title: "Fix the frobnicator!"}
	if got, want := BranchName(it), "plait/wi-abc1234-fix-the-frobnicator"; got != want {
		t.Errorf("BranchName = %q, want %q", got, want)
	}
	bare := &types.WorkItem{ID: "wi-abc1234", Title: "!!!"}
	if got, want := BranchName(bare), "plait/wi-abc1234"; got != want {
		t.Errorf("BranchName = %q, want %q", got, want)
	}
}
