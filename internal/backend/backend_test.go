package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/steveyegge/plait/internal/types"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"", "local"},
		{"git@github.com:acme/widgets.git", "github"},
		{"https://github.com/acme/widgets", "github"},
		{"https://gitlab.example.com/acme/widgets.git", "vanilla"},
		{"ssh://git@git.example.com/widgets", "vanilla"},
	}
	for _, tt := range tests {
		if got := Detect(tt.remote); got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"local", "vanilla", "github"} {
		b, err := New(name, t.TempDir())
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		if b.Name() != name {
			t.Errorf("Name() = %q, want %q", b.Name(), name)
		}
	}
	if _, err := New("subversion", "."); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestBuildInstructionsMentionEssentials(t *testing.T) {
	it := &types.WorkItem{ID: "wi-1", Title: "t", Branch: "plait/wi-1-t", Workdir: "/work"}
	proj := types.Project{BaseBranch: "main", Backend: "local"}
	for _, name := range []string{"local", "vanilla", "github"} {
		b, err := New(name, "/repo")
		if err != nil {
			t.Fatal(err)
		}
		got := b.BuildInstructions(it, proj)
		if !strings.Contains(got, it.Branch) {
			t.Errorf("%s instructions omit the branch:\n%s", name, got)
		}
		if !strings.Contains(got, "main") {
			t.Errorf("%s instructions omit the base branch:\n%s", name, got)
		}
		if !strings.Contains(got, "plait sync") {
			t.Errorf("%s instructions omit the sync step:\n%s", name, got)
		}
	}
}

func testCommit(t *testing.T, repo *gogit.Repository, dir, name string) plumbing.Hash {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatal(err)
	}
	hash, err := wt.Commit("add "+name, &gogit.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}
	return hash
}

func TestLocalBackendIsCompleted(t *testing.T) {
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	c1 := testCommit(t, repo, dir, "a.txt")
	done := plumbing.NewHashReference(plumbing.NewBranchReferenceName("plait/wi-1-done"), c1)
	if err := repo.Storer.SetReference(done); err != nil {
		t.Fatal(err)
	}
	testCommit(t, repo, dir, "b.txt")

	head, err := repo.Head()
	if err != nil {
		t.Fatal(err)
	}
	base := head.Name().Short()

	b, err := New("local", dir)
	if err != nil {
		t.Fatal(err)
	}

	merged, err := b.IsCompleted(context.Background(), types.ExecHandle{Branch: "plait/wi-1-done", Base: base})
	if err != nil {
		t.Fatal(err)
	}
	if !merged {
		t.Error("branch contained in base should be completed")
	}

	merged, err = b.IsCompleted(context.Background(), types.ExecHandle{Branch: base, Base: "plait/wi-1-done"})
	if err != nil {
		t.Fatal(err)
	}
	if merged {
		t.Error("unmerged work must not read completed")
	}

	// A vanished branch is absence of evidence, not completion and not
	// an outage.
	merged, err = b.IsCompleted(context.Background(), types.ExecHandle{Branch: "plait/wi-9-gone", Base: base})
	if err != nil {
		t.Fatalf("missing branch should not error: %v", err)
	}
	if merged {
		t.Error("missing branch must not read completed")
	}

	// No branch assigned yet means nothing to check.
	merged, err = b.IsCompleted(context.Background(), types.ExecHandle{Base: base})
	if err != nil || merged {
		t.Errorf("empty handle = (%v, %v), want (false, nil)", merged, err)
	}
}
