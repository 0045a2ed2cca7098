// Package types defines core data structures for the plait work-graph scheduler.
package types

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a node.
type Status string

// Status constants. Work items move pending → in_progress → in_review →
// merged (or closed). Milestones and references use pending → in_progress →
// done; their status is derived, never set directly by a user.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusMerged     Status = "merged"
	StatusClosed     Status = "closed"
	StatusDone       Status = "done"
)

// NodeKind discriminates the three node variants sharing the graph's
// id namespace.
type NodeKind string

// Node kind constants
const (
	KindItem      NodeKind = "item"
	KindMilestone NodeKind = "milestone"
	KindReference NodeKind = "reference"
)

// validItemStatuses is the set of allowed work item status values
var validItemStatuses = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusInReview:   true,
	StatusMerged:     true,
	StatusClosed:     true,
}

// validDerivedStatuses is the set of allowed milestone/reference status values
var validDerivedStatuses = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusDone:       true,
}

// IsValidForKind checks whether the status value is allowed for the kind.
func (s Status) IsValidForKind(kind NodeKind) bool {
	if kind == KindItem {
		return validItemStatuses[s]
	}
	return validDerivedStatuses[s]
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether a work item status admits no further
// transitions. Merged is monotonic: no core operation ever reverts it.
func (s Status) IsTerminal() bool {
	return s == StatusMerged || s == StatusClosed
}

// LinkMode governs whether a reference permits writes in addition to reads.
type LinkMode string

// Link mode constants
const (
	// ModeDescriptive is pull-only; no opt-in required on the child's side.
	ModeDescriptive LinkMode = "descriptive"

	// ModePrescriptive additionally allows the parent to push suggestions,
	// provided the child has registered the parent as a trusted upstream.
	ModePrescriptive LinkMode = "prescriptive"
)

// IsValid checks if the link mode value is valid.
func (m LinkMode) IsValid() bool {
	return m == ModeDescriptive || m == ModePrescriptive
}

// Disposition is the child-side decision on a pushed suggestion.
type Disposition string

// Disposition constants
const (
	DispositionPending  Disposition = "pending"
	DispositionAccepted Disposition = "accepted"
	DispositionDeclined Disposition = "declined"
)

// IsValid checks if the disposition value is valid.
func (d Disposition) IsValid() bool {
	return d == DispositionPending || d == DispositionAccepted || d == DispositionDeclined
}

// Plan is a named scope grouping work items. Purely organizational; it
// carries no scheduling semantics of its own.
type Plan struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
}

// WorkItem is a concrete, locally executable task.
type WorkItem struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Plan        string `yaml:"plan,omitempty"`
	Status      Status `yaml:"status"`

	// Assignee is an advisory reservation, not a lock. Last writer wins
	// at the persistence layer; a competing start warns instead of
	// silently overwriting it.
	Assignee string `yaml:"assignee,omitempty"`

	// Branch and Workdir form the execution handle the backend checks
	// for external completion.
	Branch  string `yaml:"branch,omitempty"`
	Workdir string `yaml:"workdir,omitempty"`

	DependsOn []string `yaml:"depends_on,omitempty"`

	CreatedAt time.Time  `yaml:"created_at"`
	UpdatedAt time.Time  `yaml:"updated_at"`
	StartedAt *time.Time `yaml:"started_at,omitempty"`
	MergedAt  *time.Time `yaml:"merged_at,omitempty"`
	ClosedAt  *time.Time `yaml:"closed_at,omitempty"`
}

// Milestone is a pure dependency gate with no backing execution. Its
// status is derived solely from dependency satisfaction.
type Milestone struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	Status    Status   `yaml:"status"`
	DependsOn []string `yaml:"depends_on,omitempty"`
}

// Reference points at a child graph in another repository. Its status is
// only ever set by pulling the child store.
type Reference struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`

	// Location is where the child store lives (path or git URL). It is
	// a hint for resolution only; identity is RepoID.
	Location string `yaml:"location"`

	// RepoID is the child repository's stable identity (root commit
	// hash), filled on the first successful pull. Reference edges
	// survive renames and relocations because matching is by RepoID,
	// never by Location.
	RepoID string `yaml:"repo_id,omitempty"`

	// Plan narrows the match criterion to a single child plan. Empty
	// means the whole child graph must complete.
	Plan string `yaml:"plan,omitempty"`

	Mode   LinkMode `yaml:"mode"`
	Status Status   `yaml:"status"`

	// Stale is set when the child was unreachable on the last pull. The
	// previous Status and LastSynced are preserved.
	Stale      bool       `yaml:"stale,omitempty"`
	LastSynced *time.Time `yaml:"last_synced,omitempty"`
}

// Upstream records a parent graph the local store accepts suggestions
// from. Registration is the child's own, explicit act.
type Upstream struct {
	RepoID string `yaml:"repo_id"`
	Name   string `yaml:"name,omitempty"`
}

// Origin identifies the graph a suggestion came from.
type Origin struct {
	RepoID   string `yaml:"repo_id"`
	Name     string `yaml:"name,omitempty"`
	Location string `yaml:"location,omitempty"`
}

// SuggestionNode is one proposed work item inside a suggestion. Keys are
// proposal-local; DependsOn refers to sibling keys, not store ids.
type SuggestionNode struct {
	Key         string   `yaml:"key"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty"`
}

// Suggestion is a proposal pushed from a trusted parent graph into this
// store's inbox. Only the owning (child) store ever mutates it, and only
// its disposition; accepting materializes local nodes as an ordinary
// local mutation.
type Suggestion struct {
	ID          string           `yaml:"id"`
	Origin      Origin           `yaml:"origin"`
	Rationale   string           `yaml:"rationale,omitempty"`
	Disposition Disposition      `yaml:"disposition"`
	Nodes       []SuggestionNode `yaml:"nodes"`
	CreatedAt   time.Time        `yaml:"created_at"`
	ResolvedAt  *time.Time       `yaml:"resolved_at,omitempty"`
}

// Project is the store's descriptor: which repository the work targets,
// which backend detects completion, and who this graph trusts.
type Project struct {
	Name       string `yaml:"name"`
	Repo       string `yaml:"repo,omitempty"`
	BaseBranch string `yaml:"base_branch"`
	Backend    string `yaml:"backend"`

	// RepoID is the root commit hash of the target repository, cached
	// on first resolution. It is the value other graphs reference this
	// one by.
	RepoID string `yaml:"repo_id,omitempty"`

	LastItemSync     *time.Time `yaml:"last_item_sync,omitempty"`
	TrustedUpstreams []Upstream `yaml:"trusted_upstreams,omitempty"`
}

// Document is the whole persisted store: the single source of truth for
// one graph. Consumers must not cache derived state (ready/blocked sets)
// across mutations.
type Document struct {
	Project     Project       `yaml:"project"`
	Plans       []*Plan       `yaml:"plans"`
	Items       []*WorkItem   `yaml:"items"`
	Milestones  []*Milestone  `yaml:"milestones,omitempty"`
	Refs        []*Reference  `yaml:"refs,omitempty"`
	Suggestions []*Suggestion `yaml:"suggestions,omitempty"`
}

// ExecHandle is what a backend needs to decide whether a work item has
// externally completed.
type ExecHandle struct {
	Branch  string
	Workdir string
	Base    string
}

// Node is the uniform view the graph engine operates on. All three
// variants share one id namespace and one edge set.
type Node struct {
	ID        string
	Kind      NodeKind
	Status    Status
	DependsOn []string
}

// Item returns the work item with the given id, or nil.
func (d *Document) Item(id string) *WorkItem {
	for _, it := range d.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// PlanByID returns the plan with the given id, or nil.
func (d *Document) PlanByID(id string) *Plan {
	for _, p := range d.Plans {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// MilestoneByID returns the milestone with the given id, or nil.
func (d *Document) MilestoneByID(id string) *Milestone {
	for _, m := range d.Milestones {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Ref returns the reference with the given id, or nil.
func (d *Document) Ref(id string) *Reference {
	for _, r := range d.Refs {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// SuggestionByID returns the suggestion with the given id, or nil.
func (d *Document) SuggestionByID(id string) *Suggestion {
	for _, s := range d.Suggestions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Nodes flattens items, milestones and references into the uniform graph
// view, preserving document order.
func (d *Document) Nodes() []Node {
	nodes := make([]Node, 0, len(d.Items)+len(d.Milestones)+len(d.Refs))
	for _, it := range d.Items {
		nodes = append(nodes, Node{ID: it.ID, Kind: KindItem, Status: it.Status, DependsOn: it.DependsOn})
	}
	for _, m := range d.Milestones {
		nodes = append(nodes, Node{ID: m.ID, Kind: KindMilestone, Status: m.Status, DependsOn: m.DependsOn})
	}
	for _, r := range d.Refs {
		nodes = append(nodes, Node{ID: r.ID, Kind: KindReference, Status: r.Status, DependsOn: nil})
	}
	return nodes
}

// Node returns the uniform view of a single node, or false if the id is
// unknown.
func (d *Document) Node(id string) (Node, bool) {
	if it := d.Item(id); it != nil {
		return Node{ID: it.ID, Kind: KindItem, Status: it.Status, DependsOn: it.DependsOn}, true
	}
	if m := d.MilestoneByID(id); m != nil {
		return Node{ID: m.ID, Kind: KindMilestone, Status: m.Status, DependsOn: m.DependsOn}, true
	}
	if r := d.Ref(id); r != nil {
		return Node{ID: r.ID, Kind: KindReference, Status: r.Status}, true
	}
	return Node{}, false
}

// Handle builds the execution handle for an item against the project's
// base branch.
func (d *Document) Handle(it *WorkItem) ExecHandle {
	return ExecHandle{Branch: it.Branch, Workdir: it.Workdir, Base: d.Project.BaseBranch}
}

// Touch updates the item's modification timestamp.
func (it *WorkItem) Touch(now time.Time) {
	it.UpdatedAt = now
}

// Validate checks a single work item's field values.
func (it *WorkItem) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("item id is required")
	}
	if it.Title == "" {
		return fmt.Errorf("item %s: title is required", it.ID)
	}
	if !it.Status.IsValidForKind(KindItem) {
		return fmt.Errorf("item %s: invalid status %q", it.ID, it.Status)
	}
	if it.Status == StatusMerged && it.MergedAt == nil {
		return fmt.Errorf("item %s: merged items must have merged_at", it.ID)
	}
	if it.Status == StatusClosed && it.ClosedAt == nil {
		return fmt.Errorf("item %s: closed items must have closed_at", it.ID)
	}
	return nil
}

// Validate checks a milestone's field values.
func (m *Milestone) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("milestone id is required")
	}
	if m.Title == "" {
		return fmt.Errorf("milestone %s: title is required", m.ID)
	}
	if !m.Status.IsValidForKind(KindMilestone) {
		return fmt.Errorf("milestone %s: invalid status %q", m.ID, m.Status)
	}
	return nil
}

// Validate checks a reference's field values.
func (r *Reference) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("reference id is required")
	}
	if r.Location == "" && r.RepoID == "" {
		return fmt.Errorf("reference %s: location or repo_id is required", r.ID)
	}
	if !r.Mode.IsValid() {
		return fmt.Errorf("reference %s: invalid mode %q", r.ID, r.Mode)
	}
	if !r.Status.IsValidForKind(KindReference) {
		return fmt.Errorf("reference %s: invalid status %q", r.ID, r.Status)
	}
	return nil
}

// Validate checks a suggestion's field values.
func (s *Suggestion) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("suggestion id is required")
	}
	if s.Origin.RepoID == "" {
		return fmt.Errorf("suggestion %s: origin repo_id is required", s.ID)
	}
	if !s.Disposition.IsValid() {
		return fmt.Errorf("suggestion %s: invalid disposition %q", s.ID, s.Disposition)
	}
	if len(s.Nodes) == 0 {
		return fmt.Errorf("suggestion %s: at least one proposed node is required", s.ID)
	}
	keys := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.Key == "" || n.Title == "" {
			return fmt.Errorf("suggestion %s: proposed nodes need key and title", s.ID)
		}
		if keys[n.Key] {
			return fmt.Errorf("suggestion %s: duplicate node key %q", s.ID, n.Key)
		}
		keys[n.Key] = true
	}
	for _, n := range s.Nodes {
		for _, dep := range n.DependsOn {
			if !keys[dep] {
				return fmt.Errorf("suggestion %s: node %s depends on unknown key %q", s.ID, n.Key, dep)
			}
		}
	}
	return nil
}
