package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/plait/internal/config"
	"github.com/steveyegge/plait/internal/graph"
	"github.com/steveyegge/plait/internal/store"
	"github.com/steveyegge/plait/internal/tree"
	"github.com/steveyegge/plait/internal/types"
)

func resolver() *tree.Resolver {
	return &tree.Resolver{
		CacheDir:        config.TreeCacheDir(),
		SyncMinInterval: config.SyncMinInterval(),
	}
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Compose this graph with graphs in other repositories",
}

var (
	treeAddMode string
	treeAddPlan string
)

var treeAddCmd = &cobra.Command{
	Use:   "add <title> <location>",
	Short: "Add a reference to a child graph",
	Long: `Location is a local path or a git URL. The child's stable identity is
recorded on the first successful pull, so the reference survives the
child moving or being renamed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := types.LinkMode(treeAddMode)
		if !mode.IsValid() {
			return fmt.Errorf("invalid mode %q (want %s or %s)", treeAddMode, types.ModeDescriptive, types.ModePrescriptive)
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		ts := now()
		var id string
		_, err = st.LockedUpdate(context.Background(), func(doc *types.Document) error {
			id = store.ContentID(store.RefPrefix, takenIDs(doc), args[0], args[1], ts.String())
			doc.Refs = append(doc.Refs, &types.Reference{
				ID:       id,
				Title:    args[0],
				Location: args[1],
				Plan:     treeAddPlan,
				Mode:     mode,
				Status:   types.StatusPending,
			})
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var treeTrustName string

var treeTrustCmd = &cobra.Command{
	Use:   "trust <repo-id>",
	Short: "Accept suggestions from an upstream graph",
	Long: `Registers the upstream repository (by its root commit id) as trusted.
Only trusted upstreams can push suggestions into this store's inbox.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		_, err = st.LockedUpdate(context.Background(), func(doc *types.Document) error {
			tree.RegisterTrust(doc, args[0], treeTrustName)
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("Trusting upstream %s\n", args[0])
		return nil
	},
}

var treeSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull every reference across the whole tree, depth first",
	Long: `Runs the local item sync first, then walks the reference tree bottom
up so each parent evaluates its children at their freshest state.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		report, err := resolver().TreeSync(cmd.Context(), st, now())
		if err != nil {
			return err
		}

		return emit(report, func() {
			for _, ir := range report.Items {
				if ir.Err != nil {
					warnf("%s: item sync: %v", ir.StoreRoot, ir.Err)
					continue
				}
				for _, id := range ir.Merged {
					fmt.Printf("%s: %s merged\n", ir.StoreRoot, id)
				}
				for _, id := range ir.NewlyReady {
					fmt.Printf("%s: %s is now ready\n", ir.StoreRoot, id)
				}
			}
			for _, o := range report.Outcomes {
				switch {
				case o.Err != nil:
					warnf("%s: %v", o.RefID, o.Err)
				case o.Stale:
					fmt.Printf("%-14s stale\n", o.RefID)
				default:
					fmt.Printf("%-14s %s\n", o.RefID, o.Status)
				}
			}
			if len(report.Outcomes) == 0 {
				fmt.Println("no references")
			}
		})
	},
}

var treePullCmd = &cobra.Command{
	Use:   "pull <ref-id>",
	Short: "Pull one reference from its child store",
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
		ref := doc.Ref(args[0])
		if ref == nil {
			return &types.UnknownNodeError{ID: args[0]}
		}
		cp := *ref
		pullErr := resolver().Pull(cmd.Context(), &cp, now())
		// An identity mismatch is corruption, not staleness; report it
		// without touching the reference. A stale result stays stale even
		// when the child broke on its own corruption.
		var serr *types.RefStaleError
		var cerr *types.CorruptStateError
		if !errors.As(pullErr, &serr) && errors.As(pullErr, &cerr) {
			return pullErr
		}
		_, err = st.LockedUpdate(context.Background(), func(d *types.Document) error {
			cur := d.Ref(args[0])
			if cur == nil {
				return &types.UnknownNodeError{ID: args[0]}
			}
			if pullErr != nil {
				cur.Stale = true
				return nil
			}
			cur.Status = cp.Status
			cur.RepoID = cp.RepoID
			cur.Stale = false
			cur.LastSynced = cp.LastSynced
			graph.RecomputeMilestones(d)
			return nil
		})
		if err != nil {
			return err
		}
		if pullErr != nil {
			return pullErr
		}
		fmt.Printf("%s %s\n", cp.ID, cp.Status)
		return nil
	},
}

func init() {
	treeAddCmd.Flags().StringVar(&treeAddMode, "mode", string(types.ModeDescriptive), "descriptive (pull-only) or prescriptive (may push suggestions)")
	treeAddCmd.Flags().StringVar(&treeAddPlan, "plan", "", "narrow the reference to one child plan")
	treeTrustCmd.Flags().StringVar(&treeTrustName, "name", "", "human-readable upstream name")
	treeCmd.AddCommand(treeAddCmd, treeTrustCmd, treeSyncCmd, treePullCmd)
	rootCmd.AddCommand(treeCmd)
}
