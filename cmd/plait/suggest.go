package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/plait/internal/config"
	"github.com/steveyegge/plait/internal/tree"
	"github.com/steveyegge/plait/internal/types"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Push, review and resolve cross-repository suggestions",
}

var (
	suggestPushFile      string
	suggestPushRationale string
)

var suggestPushCmd = &cobra.Command{
	Use:   "push <ref-id>",
	Short: "Push a proposal into a child graph's inbox",
	Long: `Reads proposed nodes from a YAML file: a list of {key, title,
description, depends_on} entries where depends_on names sibling keys.
The reference must be prescriptive and the child must trust this graph.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(suggestPushFile)
		if err != nil {
			return err
		}
		var nodes []types.SuggestionNode
		if err := yaml.Unmarshal(data, &nodes); err != nil {
			return fmt.Errorf("parsing %s: %w", suggestPushFile, err)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		doc, err := st.Load()
		if err != nil {
			return err
		}
		ref := doc.Ref(args[0])
		if ref == nil {
			return &types.UnknownNodeError{ID: args[0]}
		}
		id, err := resolver().PushSuggestion(cmd.Context(), doc, ref, suggestPushRationale, nodes, config.Actor(), now())
		if err != nil {
			return err
		}
		fmt.Printf("Pushed suggestion %s to %s\n", id, ref.Location)
		return nil
	},
}

var suggestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the local suggestion inbox",
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
		return emit(doc.Suggestions, func() {
			for _, s := range doc.Suggestions {
				from := s.Origin.Name
				if from == "" {
					from = s.Origin.RepoID
				}
				fmt.Printf("%-12s %-9s from %s: %d node(s)", s.ID, s.Disposition, from, len(s.Nodes))
				if s.Rationale != "" {
					fmt.Printf(": %s", s.Rationale)
				}
				fmt.Println()
				for _, n := range s.Nodes {
					deps := ""
					if len(n.DependsOn) > 0 {
						deps = " <- " + strings.Join(n.DependsOn, ", ")
					}
					fmt.Printf("    %-10s %s%s\n", n.Key, n.Title, deps)
				}
			}
			if len(doc.Suggestions) == 0 {
				fmt.Println("inbox empty")
			}
		})
	},
}

var suggestAcceptCmd = &cobra.Command{
	Use:   "accept <suggestion-id>",
	Short: "Materialize a suggestion as a new plan and items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		var res *tree.AcceptResult
		_, err = st.LockedUpdate(context.Background(), func(doc *types.Document) error {
			res, err = tree.Accept(doc, args[0], now())
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("Accepted %s: plan %s with %d item(s)\n", args[0], res.PlanID, len(res.ItemIDs))
		for _, id := range res.ItemIDs {
			fmt.Printf("  %s\n", id)
		}
		return nil
	},
}

var suggestStatusCmd = &cobra.Command{
	Use:   "status <ref-id>",
	Short: "Show what the child did with this graph's suggestions",
	Long: `Pulls the child behind the reference and lists the suggestions this
graph pushed there, with their current dispositions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		doc, err := st.Load()
		if err != nil {
			return err
		}
		ref := doc.Ref(args[0])
		if ref == nil {
			return &types.UnknownNodeError{ID: args[0]}
		}
		child, err := resolver().Resolve(cmd.Context(), ref)
		if err != nil {
			return &types.RefStaleError{RefID: ref.ID, Location: ref.Location, Err: err}
		}
		childDoc, err := child.Store.Load()
		if err != nil {
			return err
		}
		var mine []*types.Suggestion
		for _, s := range childDoc.Suggestions {
			if s.Origin.RepoID == doc.Project.RepoID {
				mine = append(mine, s)
			}
		}
		return emit(mine, func() {
			for _, s := range mine {
				fmt.Printf("%-12s %-9s %d node(s)", s.ID, s.Disposition, len(s.Nodes))
				if s.Rationale != "" {
					fmt.Printf(": %s", s.Rationale)
				}
				fmt.Println()
			}
			if len(mine) == 0 {
				fmt.Println("no suggestions from this graph")
			}
		})
	},
}

var suggestDeclineCmd = &cobra.Command{
	Use:   "decline <suggestion-id>",
	Short: "Reject a suggestion without materializing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		_, err = st.LockedUpdate(context.Background(), func(doc *types.Document) error {
			return tree.Decline(doc, args[0], now())
		})
		if err != nil {
			return err
		}
		fmt.Printf("Declined %s\n", args[0])
		return nil
	},
}

func init() {
	suggestPushCmd.Flags().StringVarP(&suggestPushFile, "file", "f", "", "YAML file with proposed nodes (required)")
	suggestPushCmd.Flags().StringVar(&suggestPushRationale, "rationale", "", "why the child should take this work")
	_ = suggestPushCmd.MarkFlagRequired("file")
	suggestCmd.AddCommand(suggestPushCmd, suggestListCmd, suggestStatusCmd, suggestAcceptCmd, suggestDeclineCmd)
	rootCmd.AddCommand(suggestCmd)
}
