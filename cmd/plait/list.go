package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/plait/internal/backend"
	"github.com/steveyegge/plait/internal/graph"
	"github.com/steveyegge/plait/internal/types"
)

var listPlan string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all nodes and their status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		doc, err := st.Load()
		if err != nil {
			return err
		}

		type row struct {
			ID     string         `json:"id"`
			Kind   types.NodeKind `json:"kind"`
			Status types.Status   `json:"status"`
			Title  string         `json:"title"`
			Stale  bool           `json:"stale,omitempty"`
		}
		var rows []row
		for _, it := range doc.Items {
			if listPlan != "" && it.Plan != listPlan {
				continue
			}
			rows = append(rows, row{ID: it.ID, Kind: types.KindItem, Status: it.Status, Title: it.Title})
		}
		if listPlan == "" {
			for _, m := range doc.Milestones {
				rows = append(rows, row{ID: m.ID, Kind: types.KindMilestone, Status: m.Status, Title: m.Title})
			}
			for _, r := range doc.Refs {
				rows = append(rows, row{ID: r.ID, Kind: types.KindReference, Status: r.Status, Title: r.Title, Stale: r.Stale})
			}
		}
		return emit(rows, func() {
			for _, r := range rows {
				stale := ""
				if r.Stale {
					stale = " (stale)"
				}
				fmt.Printf("%-14s %-10s %-12s %s%s\n", r.ID, r.Kind, r.Status, r.Title, stale)
			}
		})
	},
}

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List items whose dependencies are all satisfied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		doc, err := st.Load()
		if err != nil {
			return err
		}
		ids := graph.ReadySet(doc)
		return emit(ids, func() {
			for _, id := range ids {
				title := ""
				if n, ok := doc.Node(id); ok && n.Kind == types.KindItem {
					title = doc.Item(id).Title
				} else if m := doc.MilestoneByID(id); m != nil {
					title = m.Title
				}
				fmt.Printf("%-14s %s\n", id, title)
			}
		})
	},
}

var blockedCmd = &cobra.Command{
	Use:   "blocked",
	Short: "List pending items with unsatisfied dependencies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		doc, err := st.Load()
		if err != nil {
			return err
		}
		type row struct {
			ID      string   `json:"id"`
			Waiting []string `json:"waiting_on"`
		}
		var rows []row
		for _, id := range graph.BlockedSet(doc) {
			rows = append(rows, row{ID: id, Waiting: graph.UnsatisfiedDeps(doc, id)})
		}
		return emit(rows, func() {
			for _, r := range rows {
				fmt.Printf("%-14s waiting on %s\n", r.ID, strings.Join(r.Waiting, ", "))
			}
		})
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Render the dependency graph as layered columns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		doc, err := st.Load()
		if err != nil {
			return err
		}
		nodes := doc.Nodes()
		if _, err := graph.TopologicalOrder(nodes); err != nil {
			return err
		}
		layout := graph.Compute(nodes)
		if jsonOutput() {
			return emit(layout, nil)
		}
		renderLayout(doc, layout)
		return nil
	},
}

// renderLayout prints the layout as a grid, one column per dependency
// layer, left to right.
func renderLayout(doc *types.Document, layout graph.Layout) {
	maxRow := 0
	for _, p := range layout.Positions {
		if p.Row > maxRow {
			maxRow = p.Row
		}
	}
	cols := len(layout.Layers)
	cells := make([][]string, maxRow+1)
	for r := range cells {
		cells[r] = make([]string, cols)
	}
	width := 0
	for id, p := range layout.Positions {
		label := id
		if n, ok := doc.Node(id); ok {
			label = fmt.Sprintf("%s[%s]", id, statusGlyph(n.Status))
		}
		cells[p.Row][p.Column] = label
		if len(label) > width {
			width = len(label)
		}
	}
	for _, row := range cells {
		var b strings.Builder
		for c, cell := range row {
			if c > 0 {
				b.WriteString("  ")
			}
			b.WriteString(fmt.Sprintf("%-*s", width, cell))
		}
		fmt.Println(strings.TrimRight(b.String(), " "))
	}
}

func statusGlyph(s types.Status) string {
	switch s {
	case types.StatusPending:
		return " "
	case types.StatusInProgress:
		return ">"
	case types.StatusInReview:
		return "?"
	case types.StatusMerged, types.StatusDone:
		return "x"
	case types.StatusClosed:
		return "-"
	}
	return "!"
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a node in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		doc, err := st.Load()
		if err != nil {
			return err
		}
		id := args[0]
		if it := doc.Item(id); it != nil {
			if jsonOutput() {
				return emit(it, nil)
			}
			fmt.Printf("%s  %s\n", it.ID, it.Title)
			fmt.Printf("  kind:     item\n")
			fmt.Printf("  status:   %s\n", it.Status)
			if it.Plan != "" {
				fmt.Printf("  plan:     %s\n", it.Plan)
			}
			if it.Assignee != "" {
				fmt.Printf("  assignee: %s\n", it.Assignee)
			}
			if it.Branch != "" {
				fmt.Printf("  branch:   %s\n", it.Branch)
			}
			if len(it.DependsOn) > 0 {
				fmt.Printf("  deps:     %s\n", strings.Join(it.DependsOn, ", "))
			}
			if unsat := graph.UnsatisfiedDeps(doc, id); len(unsat) > 0 {
				fmt.Printf("  waiting:  %s\n", strings.Join(unsat, ", "))
			}
			if it.Description != "" {
				fmt.Printf("\n%s\n", it.Description)
			}
			if it.Status == types.StatusInProgress || it.Status == types.StatusInReview {
				if b, err := backend.New(doc.Project.Backend, st.Root); err == nil {
					fmt.Printf("\n%s\n", b.BuildInstructions(it, doc.Project))
				}
			}
			return nil
		}
		if m := doc.MilestoneByID(id); m != nil {
			if jsonOutput() {
				return emit(m, nil)
			}
			fmt.Printf("%s  %s\n", m.ID, m.Title)
			fmt.Printf("  kind:   milestone\n")
			fmt.Printf("  status: %s\n", m.Status)
			if len(m.DependsOn) > 0 {
				fmt.Printf("  deps:   %s\n", strings.Join(m.DependsOn, ", "))
			}
			return nil
		}
		if r := doc.Ref(id); r != nil {
			if jsonOutput() {
				return emit(r, nil)
			}
			fmt.Printf("%s  %s\n", r.ID, r.Title)
			fmt.Printf("  kind:     reference\n")
			fmt.Printf("  status:   %s\n", r.Status)
			fmt.Printf("  location: %s\n", r.Location)
			fmt.Printf("  mode:     %s\n", r.Mode)
			if r.RepoID != "" {
				fmt.Printf("  repo_id:  %s\n", r.RepoID)
			}
			if r.Plan != "" {
				fmt.Printf("  plan:     %s\n", r.Plan)
			}
			if r.Stale {
				fmt.Printf("  stale:    true (last synced %v)\n", r.LastSynced)
			}
			return nil
		}
		return &types.UnknownNodeError{ID: id}
	},
}

func init() {
	listCmd.Flags().StringVarP(&listPlan, "plan", "p", "", "only items in this plan")
	rootCmd.AddCommand(listCmd, readyCmd, blockedCmd, graphCmd, showCmd)
}
