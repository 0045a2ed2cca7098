package graph

import (
	"sort"

	"github.com/steveyegge/plait/internal/types"
)

// Position is a node's column and row in the layered layout. Column is
// the length of the node's longest dependency chain.
type Position struct {
	Column int
	Row    int
}

// Layout is the result of a layered layout computation. Identical graphs
// (same ids, edges, statuses) always produce identical layouts, so
// consumers can rely on reproducible rendering and navigation order.
type Layout struct {
	// Order lists node ids column-major, rows ascending within a column.
	Order []string

	Positions map[string]Position

	// Layers groups node ids by column; layer 0 has no dependencies.
	Layers [][]string
}

// Layers assigns each node the length of its longest dependency chain.
// Dependencies on ids outside the node set are ignored.
func Layers(nodes []types.Node) [][]string {
	byID := make(map[string]types.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	memo := make(map[string]int, len(nodes))

	var layerOf func(id string) int
	layerOf = func(id string) int {
		if l, ok := memo[id]; ok {
			return l
		}
		// Mark before recursing so a cycle terminates at layer 0
		// instead of recursing forever.
		memo[id] = 0
		max := -1
		for _, dep := range byID[id].DependsOn {
			if _, ok := byID[dep]; !ok {
				continue
			}
			if l := layerOf(dep); l > max {
				max = l
			}
		}
		memo[id] = max + 1
		return max + 1
	}

	maxLayer := 0
	for _, n := range nodes {
		if l := layerOf(n.ID); l > maxLayer {
			maxLayer = l
		}
	}
	layers := make([][]string, maxLayer+1)
	for _, n := range nodes {
		l := memo[n.ID]
		layers[l] = append(layers[l], n.ID)
	}
	for _, layer := range layers {
		sort.Strings(layer)
	}
	return layers
}

// Compute produces the full layered layout: longest-path columns plus
// row assignment that keeps single-dependency edges horizontal where
// possible. The algorithm is deterministic end to end.
func Compute(nodes []types.Node) Layout {
	layout := Layout{Positions: make(map[string]Position)}
	if len(nodes) == 0 {
		return layout
	}

	byID := make(map[string]types.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	layers := Layers(nodes)
	layout.Layers = layers

	rows := assignRows(byID, layers)

	// Normalize so the minimum row is 0.
	minRow := 0
	first := true
	for _, r := range rows {
		if first || r < minRow {
			minRow = r
			first = false
		}
	}
	if minRow != 0 {
		for id := range rows {
			rows[id] -= minRow
		}
	}

	for col, layer := range layers {
		ordered := append([]string{}, layer...)
		sort.Slice(ordered, func(i, j int) bool {
			ri, rj := rows[ordered[i]], rows[ordered[j]]
			if ri != rj {
				return ri < rj
			}
			return ordered[i] < ordered[j]
		})
		for _, id := range ordered {
			layout.Positions[id] = Position{Column: col, Row: rows[id]}
			layout.Order = append(layout.Order, id)
		}
	}
	return layout
}

// singleDepChildren maps a parent to the nodes whose only dependency is
// that parent. Those edges are the ones worth keeping horizontal.
func singleDepChildren(byID map[string]types.Node) map[string][]string {
	children := make(map[string][]string)
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := byID[id]
		if len(n.DependsOn) == 1 {
			parent := n.DependsOn[0]
			children[parent] = append(children[parent], id)
		}
	}
	return children
}

func assignRows(byID map[string]types.Node, layers [][]string) map[string]int {
	children := singleDepChildren(byID)
	rows := make(map[string]int, len(byID))

	// First column: stack in id order, leaving gaps below parents with
	// multiple single-dep children so those children land adjacent.
	if len(layers) > 0 {
		row := 0
		for _, id := range layers[0] {
			rows[id] = row
			if c := children[id]; len(c) > 1 {
				row += len(c)
			} else {
				row++
			}
		}
	}

	for col := 1; col < len(layers); col++ {
		assignLayerRows(layers[col], byID, rows, children)
	}
	return rows
}

// assignLayerRows places one layer's nodes given the rows of everything
// to their left. Single-dep nodes take (or neighbor) their parent's row;
// multi-dep nodes aim for the mean of their dependency rows, probing
// downward on collision; the rest fill the lowest free rows.
func assignLayerRows(layer []string, byID map[string]types.Node, rows map[string]int, children map[string][]string) {
	type singleDep struct {
		id        string
		parentID  string
		parentRow int
	}
	type multiDep struct {
		id  string
		avg float64
	}
	var singles []singleDep
	var multis []multiDep
	var roots []string

	for _, id := range layer {
		var depRows []int
		var lastParent string
		for _, dep := range byID[id].DependsOn {
			if r, ok := rows[dep]; ok {
				depRows = append(depRows, r)
				lastParent = dep
			}
		}
		switch len(depRows) {
		case 0:
			roots = append(roots, id)
		case 1:
			singles = append(singles, singleDep{id: id, parentID: lastParent, parentRow: depRows[0]})
		default:
			sum := 0
			for _, r := range depRows {
				sum += r
			}
			multis = append(multis, multiDep{id: id, avg: float64(sum) / float64(len(depRows))})
		}
	}

	used := make(map[int]bool)

	// Group single-dep nodes by parent; first child gets the parent's
	// row, the rest stack beneath it.
	byParent := make(map[string][]singleDep)
	var parents []string
	for _, s := range singles {
		if _, ok := byParent[s.parentID]; !ok {
			parents = append(parents, s.parentID)
		}
		byParent[s.parentID] = append(byParent[s.parentID], s)
	}
	sort.Strings(parents)
	for _, parent := range parents {
		group := byParent[parent]
		sort.Slice(group, func(i, j int) bool { return group[i].id < group[j].id })
		base := group[0].parentRow
		for i, s := range group {
			rows[s.id] = base + i
			used[base+i] = true
		}
	}

	sort.Slice(multis, func(i, j int) bool {
		if multis[i].avg != multis[j].avg {
			return multis[i].avg < multis[j].avg
		}
		return multis[i].id < multis[j].id
	})
	for _, m := range multis {
		target := int(m.avg + 0.5)
		for used[target] {
			target++
		}
		rows[m.id] = target
		used[target] = true
	}

	sort.Strings(roots)
	for _, id := range roots {
		target := 0
		for used[target] {
			target++
		}
		rows[id] = target
		used[target] = true
	}
}
