// Package backend answers one question per work item: has the work,
// identified by its execution handle, externally completed? The core
// never interprets repository state itself; it asks the configured
// backend and records the verdict.
package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/plait/internal/types"
)

// Backend detects external completion and explains the completion
// protocol to a human.
type Backend interface {
	// Name is the registry tag persisted in the project descriptor.
	Name() string

	// IsCompleted reports whether the item behind the handle has
	// finished end to end (e.g. its branch merged into base). Transient
	// failures return a BackendUnavailableError so sync can skip the
	// item and retry later.
	IsCompleted(ctx context.Context, h types.ExecHandle) (bool, error)

	// BuildInstructions renders the human-facing steps for driving the
	// item to completion under this backend.
	BuildInstructions(it *types.WorkItem, proj types.Project) string
}

// Factory builds a backend rooted at the project repository directory.
type Factory func(repoDir string) Backend

var registry = map[string]Factory{}

// Register adds a backend constructor under its tag. Later registrations
// of the same tag win, which lets tests install fakes.
func Register(name string, f Factory) {
	registry[name] = f
}

// New builds the named backend. Unknown names list what is available.
func New(name, repoDir string) (Backend, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (have: %s)", name, strings.Join(Names(), ", "))
	}
	return f(repoDir), nil
}

// Names returns the registered backend tags, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Detect guesses the right backend tag for a repository from its origin
// remote URL. No remote means purely local work; a GitHub remote gets
// the PR-aware backend; anything else falls back to plain branch
// ancestry checks against the remote.
func Detect(remoteURL string) string {
	switch {
	case remoteURL == "":
		return "local"
	case strings.Contains(remoteURL, "github.com"):
		return "github"
	default:
		return "vanilla"
	}
}

func init() {
	Register("local", func(repoDir string) Backend { return &localBackend{repoDir: repoDir} })
	Register("vanilla", func(repoDir string) Backend { return &vanillaBackend{repoDir: repoDir} })
	Register("github", func(repoDir string) Backend { return &githubBackend{repoDir: repoDir} })
}
