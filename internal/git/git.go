// Package git wraps the go-git operations plait needs: repository
// identity, merge detection against a base branch, and clone-or-fetch
// maintenance of the reference cache.
package git

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Open opens the repository containing dir, searching upward for the
// .git directory the way the git CLI does.
func Open(dir string) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", dir, err)
	}
	return repo, nil
}

// RootCommitID returns the repository's stable identity: the hash of its
// root (parentless) commit. Histories with multiple roots pick the
// lexically smallest hash so the answer never depends on traversal
// order. This is the value reference edges match on, so it must survive
// renames, remotes moving, and branch churn.
func RootCommitID(repo *gogit.Repository) (string, error) {
	iter, err := repo.Log(&gogit.LogOptions{All: true})
	if err != nil {
		return "", fmt.Errorf("walking history: %w", err)
	}
	defer iter.Close()

	var roots []string
	err = iter.ForEach(func(c *object.Commit) error {
		if c.NumParents() == 0 {
			roots = append(roots, c.Hash.String())
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(roots) == 0 {
		return "", fmt.Errorf("repository has no commits")
	}
	sort.Strings(roots)
	return roots[0], nil
}

// BranchExists reports whether a local branch of that name exists.
func BranchExists(repo *gogit.Repository, name string) bool {
	_, err := repo.Reference(plumbing.NewBranchReferenceName(name), true)
	return err == nil
}

// IsMerged reports whether every commit on branch is reachable from
// base, i.e. the branch tip is an ancestor of the base tip. A deleted
// branch is not an error to the caller; it returns (false, error) and
// the backend decides how to treat it.
func IsMerged(repo *gogit.Repository, branch, base string) (bool, error) {
	branchTip, err := tipCommit(repo, branch)
	if err != nil {
		return false, fmt.Errorf("resolving branch %s: %w", branch, err)
	}
	baseTip, err := tipCommit(repo, base)
	if err != nil {
		return false, fmt.Errorf("resolving base %s: %w", base, err)
	}
	return branchTip.IsAncestor(baseTip)
}

func tipCommit(repo *gogit.Repository, rev string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, err
	}
	return repo.CommitObject(*hash)
}

// CloneOrFetch materializes url at dir: clone on first use, fetch after.
// Fetch errors on an existing clone are returned so the caller can mark
// the reference stale and keep going with the last good state.
func CloneOrFetch(ctx context.Context, url, dir string) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpen(dir)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		repo, err = gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{URL: url})
		if err != nil {
			return nil, fmt.Errorf("cloning %s: %w", url, err)
		}
		return repo, nil
	}
	if err != nil {
		return nil, err
	}
	err = repo.FetchContext(ctx, &gogit.FetchOptions{Force: true})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	return repo, nil
}

// CommitFile stages one path and commits it with the given author name.
// Used when pushing a suggestion into a remote child's store clone.
func CommitFile(repo *gogit.Repository, path, message, author string, when time.Time) error {
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	if _, err := wt.Add(path); err != nil {
		return fmt.Errorf("staging %s: %w", path, err)
	}
	sig := &object.Signature{Name: author, Email: author + "@plait.local", When: when}
	_, err = wt.Commit(message, &gogit.CommitOptions{Author: sig})
	return err
}

// Push pushes the current branch to origin.
func Push(ctx context.Context, repo *gogit.Repository) error {
	err := repo.PushContext(ctx, &gogit.PushOptions{})
	if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// CheckoutBranch switches the worktree to an existing branch, or creates
// it at HEAD when create is set.
func CheckoutBranch(repo *gogit.Repository, name string, create bool) error {
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: create,
	})
}
