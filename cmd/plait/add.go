package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/plait/internal/graph"
	"github.com/steveyegge/plait/internal/store"
	"github.com/steveyegge/plait/internal/types"
)

func takenIDs(doc *types.Document) func(string) bool {
	ids := make(map[string]bool)
	for _, n := range doc.Nodes() {
		ids[n.ID] = true
	}
	for _, p := range doc.Plans {
		ids[p.ID] = true
	}
	return store.TakenIn(ids)
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage plans",
}

var planAddDesc string

var planAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		ts := now()
		var id string
		_, err = st.LockedUpdate(context.Background(), func(doc *types.Document) error {
			id = store.ContentID(store.PlanPrefix, takenIDs(doc), args[0], planAddDesc, ts.String())
			doc.Plans = append(doc.Plans, &types.Plan{ID: id, Title: args[0], Description: planAddDesc})
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage work items",
}

var (
	itemAddDesc string
	itemAddPlan string
	itemAddDeps []string
)

var itemAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a work item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		ts := now()
		var id string
		_, err = st.LockedUpdate(context.Background(), func(doc *types.Document) error {
			if itemAddPlan != "" && doc.PlanByID(itemAddPlan) == nil {
				return &types.UnknownNodeError{ID: itemAddPlan}
			}
			id = store.ContentID(store.ItemPrefix, takenIDs(doc), args[0], itemAddDesc, ts.String())
			doc.Items = append(doc.Items, &types.WorkItem{
				ID:          id,
				Title:       args[0],
				Description: itemAddDesc,
				Plan:        itemAddPlan,
				Status:      types.StatusPending,
				CreatedAt:   ts,
				UpdatedAt:   ts,
			})
			for _, dep := range itemAddDeps {
				if err := graph.AddDependency(doc, id, dep); err != nil {
					return err
				}
			}
			graph.RecomputeMilestones(doc)
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var milestoneCmd = &cobra.Command{
	Use:   "milestone",
	Short: "Manage milestones",
}

var milestoneAddDeps []string

var milestoneAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a milestone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		ts := now()
		var id string
		_, err = st.LockedUpdate(context.Background(), func(doc *types.Document) error {
			id = store.ContentID(store.MilestonePrefix, takenIDs(doc), args[0], ts.String())
			doc.Milestones = append(doc.Milestones, &types.Milestone{
				ID:     id,
				Title:  args[0],
				Status: types.StatusPending,
			})
			for _, dep := range milestoneAddDeps {
				if err := graph.AddDependency(doc, id, dep); err != nil {
					return err
				}
			}
			graph.RecomputeMilestones(doc)
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage dependency edges",
}

var depAddCmd = &cobra.Command{
	Use:   "add <node> <depends-on>",
	Short: "Add an edge: the first node depends on the second",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		_, err = st.LockedUpdate(context.Background(), func(doc *types.Document) error {
			if err := graph.AddDependency(doc, args[0], args[1]); err != nil {
				return err
			}
			graph.RecomputeMilestones(doc)
			return nil
		})
		return err
	},
}

var depRmCmd = &cobra.Command{
	Use:   "rm <node> <depends-on>",
	Short: "Remove an edge",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		_, err = st.LockedUpdate(context.Background(), func(doc *types.Document) error {
			if err := graph.RemoveDependency(doc, args[0], args[1]); err != nil {
				return err
			}
			graph.RecomputeMilestones(doc)
			return nil
		})
		return err
	},
}

func init() {
	planAddCmd.Flags().StringVarP(&planAddDesc, "description", "d", "", "plan description")
	planCmd.AddCommand(planAddCmd)

	itemAddCmd.Flags().StringVarP(&itemAddDesc, "description", "d", "", "item description")
	itemAddCmd.Flags().StringVarP(&itemAddPlan, "plan", "p", "", "plan id the item belongs to")
	itemAddCmd.Flags().StringSliceVar(&itemAddDeps, "deps", nil, "dependency ids (comma separated)")
	itemCmd.AddCommand(itemAddCmd)

	milestoneAddCmd.Flags().StringSliceVar(&milestoneAddDeps, "deps", nil, "dependency ids (comma separated)")
	milestoneCmd.AddCommand(milestoneAddCmd)

	depCmd.AddCommand(depAddCmd, depRmCmd)
	rootCmd.AddCommand(planCmd, itemCmd, milestoneCmd, depCmd)
}
