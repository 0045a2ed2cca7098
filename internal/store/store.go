// Package store persists the work-graph document. One YAML file under
// .plait/ is the single source of truth; every mutation is a locked
// load-modify-validate-save round trip and every save is an atomic
// rename. Nothing derived is ever cached on disk.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/plait/internal/types"
)

const (
	// DirName is the marker directory holding the store, discovered by
	// walking up from the working directory like a .git dir.
	DirName = ".plait"

	// FileName is the document inside DirName.
	FileName = "plan.yaml"

	// EnvDir overrides discovery entirely when set.
	EnvDir = "PLAIT_DIR"

	lockTimeout   = 2 * time.Second
	lockRetryWait = 50 * time.Millisecond
)

// Store is a handle to one on-disk document.
type Store struct {
	// Root is the directory containing DirName.
	Root string
}

// Path returns the document path.
func (s *Store) Path() string {
	return filepath.Join(s.Root, DirName, FileName)
}

func (s *Store) lockPath() string {
	return filepath.Join(s.Root, DirName, FileName+".lock")
}

// FindRoot locates the store root for the given directory by walking
// toward the filesystem root, nearest match wins. EnvDir short-circuits
// the walk.
func FindRoot(start string) (string, error) {
	if dir := os.Getenv(EnvDir); dir != "" {
		if _, err := os.Stat(filepath.Join(dir, DirName)); err != nil {
			return "", fmt.Errorf("%s=%s: no %s directory: %w", EnvDir, dir, DirName, err)
		}
		return dir, nil
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, DirName)); err == nil && fi.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s directory found above %s (run plait init)", DirName, start)
		}
		dir = parent
	}
}

// Open discovers and opens the store governing the given directory.
func Open(start string) (*Store, error) {
	root, err := FindRoot(start)
	if err != nil {
		return nil, err
	}
	return &Store{Root: root}, nil
}

// At opens the store rooted at an exact directory without discovery.
// The caller asserts root contains DirName; Load reports if it doesn't.
func At(root string) *Store {
	return &Store{Root: root}
}

// Init creates a new store at root with the given project descriptor.
// Fails if a store already exists there.
func Init(root string, project types.Project) (*Store, error) {
	dir := filepath.Join(root, DirName)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("store already exists at %s", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{Root: root}
	doc := &types.Document{Project: project}
	if err := s.Save(doc); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads and validates the document. Any structural fault (YAML
// parse failure, invalid node, duplicate id, dangling or wrong-kind
// edge) is a CorruptStateError and nothing is returned: a store that
// fails validation is unusable until fixed by hand.
func (s *Store) Load() (*types.Document, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no plan document at %s (run plait init): %w", s.Path(), err)
		}
		return nil, fmt.Errorf("reading store: %w", err)
	}
	var doc types.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &types.CorruptStateError{Path: s.Path(), Reason: fmt.Sprintf("unparseable YAML: %v", err)}
	}
	if err := Validate(&doc, s.Path()); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Save writes the document atomically: marshal to a temp file in the
// store directory, fsync, rename over the real path. Readers never see
// a partial document.
func (s *Store) Save(doc *types.Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling store: %w", err)
	}
	dir := filepath.Join(s.Root, DirName)
	tmp, err := os.CreateTemp(dir, FileName+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path())
}

// LockedUpdate runs fn under an exclusive file lock with a fresh load of
// the document, then validates and saves fn's result. Returning an error
// from fn abandons the update with the file untouched. The lock bounds
// only local disk work; callers must never reach the network inside fn.
func (s *Store) LockedUpdate(ctx context.Context, fn func(doc *types.Document) error) (*types.Document, error) {
	lk := flock.New(s.lockPath())
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	ok, err := lk.TryLockContext(lockCtx, lockRetryWait)
	if err != nil {
		return nil, fmt.Errorf("acquiring store lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("store is locked by another process")
	}
	defer lk.Unlock()

	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	if err := Validate(doc, s.Path()); err != nil {
		return nil, err
	}
	if err := s.Save(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks whole-document integrity: per-node field validity,
// id uniqueness across all namespaces, edge targets that exist and are
// of a kind that may be depended on.
func Validate(doc *types.Document, path string) error {
	seen := make(map[string]string) // id -> kind, for duplicate reporting
	record := func(id, kind string) error {
		if prev, dup := seen[id]; dup {
			return &types.CorruptStateError{
				Path: path, Node: id,
				Reason: fmt.Sprintf("duplicate id (%s and %s)", prev, kind),
			}
		}
		seen[id] = kind
		return nil
	}

	for _, p := range doc.Plans {
		if p.ID == "" || p.Title == "" {
			return &types.CorruptStateError{Path: path, Node: p.ID, Reason: "plan needs id and title"}
		}
		if err := record(p.ID, "plan"); err != nil {
			return err
		}
	}
	for _, it := range doc.Items {
		if err := it.Validate(); err != nil {
			return &types.CorruptStateError{Path: path, Node: it.ID, Reason: err.Error()}
		}
		if err := record(it.ID, "item"); err != nil {
			return err
		}
	}
	for _, m := range doc.Milestones {
		if err := m.Validate(); err != nil {
			return &types.CorruptStateError{Path: path, Node: m.ID, Reason: err.Error()}
		}
		if err := record(m.ID, "milestone"); err != nil {
			return err
		}
	}
	for _, r := range doc.Refs {
		if err := r.Validate(); err != nil {
			return &types.CorruptStateError{Path: path, Node: r.ID, Reason: err.Error()}
		}
		if err := record(r.ID, "reference"); err != nil {
			return err
		}
	}
	for _, sg := range doc.Suggestions {
		if err := sg.Validate(); err != nil {
			return &types.CorruptStateError{Path: path, Node: sg.ID, Reason: err.Error()}
		}
	}

	// Edges may target items, milestones or references, never plans or
	// suggestions.
	dependable := func(id string) bool {
		k := seen[id]
		return k == "item" || k == "milestone" || k == "reference"
	}
	checkEdges := func(id string, deps []string) error {
		for _, dep := range deps {
			if _, ok := seen[dep]; !ok {
				return &types.CorruptStateError{
					Path: path, Edge: id + " -> " + dep,
					Reason: "dependency on unknown node",
				}
			}
			if !dependable(dep) {
				return &types.CorruptStateError{
					Path: path, Edge: id + " -> " + dep,
					Reason: fmt.Sprintf("dependency on %s, which is not a graph node", seen[dep]),
				}
			}
			if dep == id {
				return &types.CorruptStateError{Path: path, Edge: id + " -> " + dep, Reason: "self-dependency"}
			}
		}
		return nil
	}
	for _, it := range doc.Items {
		if it.Plan != "" && seen[it.Plan] != "plan" {
			return &types.CorruptStateError{Path: path, Node: it.ID, Reason: fmt.Sprintf("unknown plan %q", it.Plan)}
		}
		if err := checkEdges(it.ID, it.DependsOn); err != nil {
			return err
		}
	}
	for _, m := range doc.Milestones {
		if err := checkEdges(m.ID, m.DependsOn); err != nil {
			return err
		}
	}
	return nil
}
