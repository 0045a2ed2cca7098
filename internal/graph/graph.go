// Package graph implements the pure dependency-graph engine: adjacency,
// deterministic topological order, ready/blocked sets, cycle rejection
// and milestone derivation. Every function here is a side-effect-free
// computation over a Document snapshot except the explicit mutation
// helpers, which mutate only the in-memory Document handed to them.
package graph

import (
	"fmt"
	"sort"

	"github.com/steveyegge/plait/internal/types"
)

// Adjacency holds forward and reverse edge maps. Dependents maps a node
// to the nodes that depend on it; Dependencies maps a node to what it
// depends on. Both are O(V+E) to build.
type Adjacency struct {
	Dependents   map[string][]string
	Dependencies map[string][]string
}

// BuildAdjacency builds both edge maps over the given nodes. Edges whose
// target is not present in the node set are ignored; validation catches
// dangling edges before they get here.
func BuildAdjacency(nodes []types.Node) Adjacency {
	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.ID] = true
	}
	adj := Adjacency{
		Dependents:   make(map[string][]string),
		Dependencies: make(map[string][]string),
	}
	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if !present[dep] {
				continue
			}
			adj.Dependents[dep] = append(adj.Dependents[dep], n.ID)
			adj.Dependencies[n.ID] = append(adj.Dependencies[n.ID], dep)
		}
	}
	return adj
}

// Satisfied reports whether a dependency on a node of the given kind and
// status is satisfied. Work items satisfy dependents only once merged:
// a closed (abandoned) item leaves its dependents permanently blocked
// until the edge is removed. Milestones and references satisfy at done.
func Satisfied(kind types.NodeKind, status types.Status) bool {
	if kind == types.KindItem {
		return status == types.StatusMerged
	}
	return status == types.StatusDone
}

// TopologicalOrder returns all node ids in dependency order, dependencies
// first. Ties are broken by node id, not insertion order, so output is
// stable across structurally identical graphs. Returns a CycleError if
// the graph is not a DAG; insertion-time rejection normally makes that
// unreachable, but a hand-edited document can violate it.
func TopologicalOrder(nodes []types.Node) ([]string, error) {
	adj := BuildAdjacency(nodes)
	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		inDegree[n.ID] = len(adj.Dependencies[n.ID])
	}

	var frontier []string
	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			frontier = append(frontier, n.ID)
		}
	}
	sort.Strings(frontier)

	order := make([]string, 0, len(nodes))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)

		var released []string
		for _, child := range adj.Dependents[id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				released = append(released, child)
			}
		}
		if len(released) > 0 {
			frontier = append(frontier, released...)
			sort.Strings(frontier)
		}
	}

	if len(order) != len(nodes) {
		return nil, &types.CycleError{Path: findCycle(nodes, adj)}
	}
	return order, nil
}

// findCycle locates one cycle among the nodes that survived Kahn's
// elimination. Starts from the smallest remaining id for determinism.
func findCycle(nodes []types.Node, adj Adjacency) []string {
	remaining := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		remaining[n.ID] = true
	}
	// A node on a cycle always has an in-cycle dependency; walk
	// Dependencies until a node repeats.
	var start string
	for _, n := range nodes {
		if len(adj.Dependencies[n.ID]) > 0 && (start == "" || n.ID < start) {
			start = n.ID
		}
	}
	seen := make(map[string]int)
	var path []string
	cur := start
	for {
		if at, ok := seen[cur]; ok {
			cycle := append([]string{}, path[at:]...)
			return append(cycle, cur)
		}
		seen[cur] = len(path)
		path = append(path, cur)
		deps := append([]string{}, adj.Dependencies[cur]...)
		sort.Strings(deps)
		if len(deps) == 0 {
			return path // should not happen on a true cycle
		}
		cur = deps[0]
	}
}

// UnsatisfiedDeps returns the dependency ids of the node that are not
// yet satisfied, sorted. Dependencies on unknown ids count as
// unsatisfied so corruption never widens the ready set.
func UnsatisfiedDeps(doc *types.Document, id string) []string {
	node, ok := doc.Node(id)
	if !ok {
		return nil
	}
	var unsatisfied []string
	for _, dep := range node.DependsOn {
		d, ok := doc.Node(dep)
		if !ok || !Satisfied(d.Kind, d.Status) {
			unsatisfied = append(unsatisfied, dep)
		}
	}
	sort.Strings(unsatisfied)
	return unsatisfied
}

// ReadySet returns the ids of nodes that are ready: still at their
// initial status with every dependency satisfied. A node with zero
// dependencies is trivially ready. Output is sorted.
func ReadySet(doc *types.Document) []string {
	var ready []string
	for _, n := range doc.Nodes() {
		if n.Status != types.StatusPending {
			continue
		}
		if len(UnsatisfiedDeps(doc, n.ID)) == 0 {
			ready = append(ready, n.ID)
		}
	}
	sort.Strings(ready)
	return ready
}

// BlockedSet returns the ids of nodes that are neither ready nor past
// their initial status: pending nodes with at least one unsatisfied
// dependency. Output is sorted.
func BlockedSet(doc *types.Document) []string {
	var blocked []string
	for _, n := range doc.Nodes() {
		if n.Status != types.StatusPending {
			continue
		}
		if len(UnsatisfiedDeps(doc, n.ID)) > 0 {
			blocked = append(blocked, n.ID)
		}
	}
	sort.Strings(blocked)
	return blocked
}

// MilestoneStatus derives a milestone's status from its dependencies:
// done when all are satisfied (vacuously done with none), in_progress
// once any dependency has left its initial status, otherwise pending.
func MilestoneStatus(doc *types.Document, m *types.Milestone) types.Status {
	allSatisfied := true
	anyTouched := false
	for _, dep := range m.DependsOn {
		d, ok := doc.Node(dep)
		if !ok {
			allSatisfied = false
			continue
		}
		if !Satisfied(d.Kind, d.Status) {
			allSatisfied = false
		}
		if d.Status != types.StatusPending {
			anyTouched = true
		}
	}
	switch {
	case allSatisfied:
		return types.StatusDone
	case anyTouched:
		return types.StatusInProgress
	default:
		return types.StatusPending
	}
}

// RecomputeMilestones rewrites every milestone's derived status in place.
// Reference statuses are untouched: those are only ever set by a pull.
func RecomputeMilestones(doc *types.Document) {
	for _, m := range doc.Milestones {
		m.Status = MilestoneStatus(doc, m)
	}
}

// dependencyPath returns a path from -> ... -> to following depends_on
// edges, or nil if to is unreachable from from. Deterministic DFS.
func dependencyPath(doc *types.Document, from, to string) []string {
	if from == to {
		return []string{from}
	}
	node, ok := doc.Node(from)
	if !ok {
		return nil
	}
	deps := append([]string{}, node.DependsOn...)
	sort.Strings(deps)
	for _, dep := range deps {
		if sub := dependencyPath(doc, dep, to); sub != nil {
			return append([]string{from}, sub...)
		}
	}
	return nil
}

// AddDependency inserts the edge "node depends_on dep". Unknown
// endpoints fail with UnknownNodeError, duplicates are idempotent, and
// an edge that would create a cycle is rejected with CycleError before
// any mutation, so the document is unchanged on every error path.
func AddDependency(doc *types.Document, nodeID, depID string) error {
	node, ok := doc.Node(nodeID)
	if !ok {
		return &types.UnknownNodeError{ID: nodeID}
	}
	if _, ok := doc.Node(depID); !ok {
		return &types.UnknownNodeError{ID: depID}
	}
	if node.Kind == types.KindReference {
		return fmt.Errorf("%s is a reference; references carry no local dependencies", nodeID)
	}
	for _, existing := range node.DependsOn {
		if existing == depID {
			return nil
		}
	}
	// The new edge nodeID -> depID closes a cycle iff depID already
	// reaches nodeID through depends_on edges.
	if path := dependencyPath(doc, depID, nodeID); path != nil {
		return &types.CycleError{Path: append([]string{nodeID}, path...)}
	}
	appendDep(doc, nodeID, depID)
	return nil
}

// RemoveDependency deletes the edge "node depends_on dep" if present.
// Removing the edge is the only way to unblock dependents of a closed
// item.
func RemoveDependency(doc *types.Document, nodeID, depID string) error {
	if it := doc.Item(nodeID); it != nil {
		it.DependsOn = removeString(it.DependsOn, depID)
		return nil
	}
	if m := doc.MilestoneByID(nodeID); m != nil {
		m.DependsOn = removeString(m.DependsOn, depID)
		return nil
	}
	return &types.UnknownNodeError{ID: nodeID}
}

func appendDep(doc *types.Document, nodeID, depID string) {
	if it := doc.Item(nodeID); it != nil {
		it.DependsOn = append(it.DependsOn, depID)
		return
	}
	if m := doc.MilestoneByID(nodeID); m != nil {
		m.DependsOn = append(m.DependsOn, depID)
	}
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
