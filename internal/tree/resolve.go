// Package tree implements cross-repository composition: resolving
// references to child stores, pulling their status, recursive tree
// sync, and the trust-gated suggestion protocol.
package tree

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gogit "github.com/go-git/go-git/v5"

	gitutil "github.com/steveyegge/plait/internal/git"
	"github.com/steveyegge/plait/internal/store"
	"github.com/steveyegge/plait/internal/types"
)

// Child is a resolved reference target.
type Child struct {
	Store *store.Store

	// Writable is true for local-path children, whose working copy we
	// may mutate directly. Remote children live in the clone cache and
	// are only ever read from committed state; writes to them go
	// through commit-and-push.
	Writable bool

	// CloneDir is set for remote children.
	CloneDir string
}

// Resolver turns reference locations into child stores.
type Resolver struct {
	// CacheDir is where remote children are cloned, one directory per
	// location hash.
	CacheDir string

	// SyncMinInterval throttles the per-store item sweeps a tree sync
	// performs; zero disables throttling.
	SyncMinInterval time.Duration
}

// cachePath is stable per location so repeated pulls reuse the clone.
func (r *Resolver) cachePath(location string) string {
	sum := sha256.Sum256([]byte(location))
	return filepath.Join(r.CacheDir, "refs", hex.EncodeToString(sum[:])[:12])
}

// Resolve locates the child store behind a reference. A location that
// exists as a local directory is used in place; anything else is
// treated as a git URL and cloned or refreshed in the cache.
func (r *Resolver) Resolve(ctx context.Context, ref *types.Reference) (*Child, error) {
	if fi, err := os.Stat(ref.Location); err == nil && fi.IsDir() {
		root, err := store.FindRoot(ref.Location)
		if err != nil {
			return nil, fmt.Errorf("reference %s: %w", ref.ID, err)
		}
		return &Child{Store: store.At(root), Writable: true}, nil
	}

	dir := r.cachePath(ref.Location)
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, err
	}
	if _, err := gitutil.CloneOrFetch(ctx, ref.Location, dir); err != nil {
		return nil, err
	}
	// Fetch updates remote refs only; reset the worktree to the remote
	// default branch so the committed store state is what we read.
	if err := resetToRemoteHead(dir); err != nil {
		return nil, err
	}
	return &Child{Store: store.At(dir), Writable: false, CloneDir: dir}, nil
}

func resetToRemoteHead(dir string) error {
	repo, err := gitutil.Open(dir)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	err = wt.Pull(&gogit.PullOptions{Force: true})
	if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// ChildRepoID determines the stable identity of a child store's
// repository.
func ChildRepoID(c *Child) (string, error) {
	if doc, err := c.Store.Load(); err == nil && doc.Project.RepoID != "" {
		return doc.Project.RepoID, nil
	}
	repo, err := gitutil.Open(c.Store.Root)
	if err != nil {
		return "", err
	}
	return gitutil.RootCommitID(repo)
}
