package types

import (
	"fmt"
	"strings"
)

// CorruptStateError reports a persisted document that fails validation.
// It is fatal: nothing is partially loaded. The message names the
// offending node or edge so the operator can fix the document by hand.
type CorruptStateError struct {
	Path   string // document path, if known
	Node   string // offending node id, if the fault is node-scoped
	Edge   string // offending edge ("a -> b"), if the fault is edge-scoped
	Reason string
}

func (e *CorruptStateError) Error() string {
	var b strings.Builder
	b.WriteString("corrupt state")
	if e.Path != "" {
		fmt.Fprintf(&b, " in %s", e.Path)
	}
	if e.Node != "" {
		fmt.Fprintf(&b, " (node %s)", e.Node)
	}
	if e.Edge != "" {
		fmt.Fprintf(&b, " (edge %s)", e.Edge)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	return b.String()
}

// UnknownNodeError reports a mutation naming a node id that does not
// exist in the store. The state is unchanged.
type UnknownNodeError struct {
	ID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node: %s", e.ID)
}

// CycleError reports an edge insertion that would make the graph cyclic,
// or (defensively) a cycle found during topological ordering. Path holds
// one offending cycle, first node repeated last.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Path, " -> "))
}

// NotReadyError reports a start on an item outside the ready set.
type NotReadyError struct {
	ID          string
	Unsatisfied []string // dependency ids not yet satisfied
}

func (e *NotReadyError) Error() string {
	if len(e.Unsatisfied) == 0 {
		return fmt.Sprintf("%s is not ready", e.ID)
	}
	return fmt.Sprintf("%s is not ready: waiting on %s", e.ID, strings.Join(e.Unsatisfied, ", "))
}

// BackendUnavailableError reports a transient failure talking to the
// completion backend. It is per-item: a sync batch records the item as
// unsynced and continues, and re-running sync retries it.
type BackendUnavailableError struct {
	Backend string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend %s unavailable: %v", e.Backend, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}

// RefStaleError reports that a reference's child store was unreachable
// during a pull. The reference keeps its previous synced status and
// timestamp; sibling nodes are unaffected.
type RefStaleError struct {
	RefID    string
	Location string
	Err      error
}

func (e *RefStaleError) Error() string {
	return fmt.Sprintf("reference %s stale: %s unreachable: %v", e.RefID, e.Location, e.Err)
}

func (e *RefStaleError) Unwrap() error {
	return e.Err
}
