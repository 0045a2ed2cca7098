package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/plait/internal/backend"
	"github.com/steveyegge/plait/internal/config"
	"github.com/steveyegge/plait/internal/store"
	"github.com/steveyegge/plait/internal/types"
	"github.com/steveyegge/plait/internal/work"
)

var (
	startForce   bool
	startWorkdir string
)

var startCmd = &cobra.Command{
	Use:   "start <item-id>",
	Short: "Claim a ready item and begin work",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		var res *work.StartResult
		doc, err := st.LockedUpdate(context.Background(), func(d *types.Document) error {
			res, err = work.Start(d, args[0], config.Actor(), now(), startForce)
			if err != nil {
				return err
			}
			if startWorkdir != "" {
				res.Item.Workdir = startWorkdir
			}
			return nil
		})
		if err != nil {
			return err
		}
		it := doc.Item(args[0])
		if res.PreviousAssignee != "" && res.PreviousAssignee != it.Assignee {
			warnf("took over %s from %s", it.ID, res.PreviousAssignee)
		}
		fmt.Printf("Started %s on branch %s\n", it.ID, it.Branch)
		if b, err := backend.New(doc.Project.Backend, st.Root); err == nil {
			fmt.Printf("\n%s\n", b.BuildInstructions(it, doc.Project))
		}
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:   "done <item-id>",
	Short: "Hand an in-progress item over for review",
	Long: `Marks the item in_review. The merged verdict itself comes from the
backend: run plait sync once the work has actually merged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		_, err = st.LockedUpdate(context.Background(), func(d *types.Document) error {
			_, err := work.MarkInReview(d, args[0], now())
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s is in review\n", args[0])
		return nil
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <item-id>",
	Short: "Abandon an item",
	Long: `Closes the item without completing it. Dependents stay blocked until
their edges on the closed item are removed with plait dep rm.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		var dependents []string
		_, err = st.LockedUpdate(context.Background(), func(d *types.Document) error {
			if _, err := work.Close(d, args[0], now()); err != nil {
				return err
			}
			for _, n := range d.Nodes() {
				for _, dep := range n.DependsOn {
					if dep == args[0] {
						dependents = append(dependents, n.ID)
					}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("Closed %s\n", args[0])
		if len(dependents) > 0 {
			warnf("%s still blocks %s; remove those edges to unblock them",
				args[0], strings.Join(dependents, ", "))
		}
		return nil
	},
}

var (
	syncForce bool
	syncWatch bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ask the backend about active items and record merges",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if err := runSync(cmd.Context(), st); err != nil {
			return err
		}
		if !syncWatch {
			return nil
		}
		// Watch mode re-syncs on every store change; the throttle keeps
		// backend traffic bounded.
		return st.Watch(cmd.Context(), func() {
			if err := runSync(cmd.Context(), st); err != nil {
				warnf("sync: %v", err)
			}
		})
	},
}

func runSync(ctx context.Context, st *store.Store) error {
	doc, err := st.Load()
	if err != nil {
		return err
	}
	b, err := backend.New(doc.Project.Backend, st.Root)
	if err != nil {
		return err
	}
	res, err := work.Sync(ctx, st, b, now(), config.SyncMinInterval(), syncForce)
	if err != nil {
		return err
	}
	return emit(res, func() {
		if res.Throttled {
			fmt.Println("sync skipped (ran recently; use --force)")
			return
		}
		for _, o := range res.Checked {
			switch {
			case o.Err != nil:
				warnf("%s: %v", o.ID, o.Err)
			case o.Merged:
				fmt.Printf("%s merged\n", o.ID)
			}
		}
		if len(res.Checked) == 0 {
			fmt.Println("nothing to check")
		}
		for _, id := range res.NewlyReady {
			fmt.Printf("%s is now ready\n", id)
		}
	})
}

func init() {
	startCmd.Flags().BoolVar(&startForce, "force", false, "take over an item someone else started")
	startCmd.Flags().StringVar(&startWorkdir, "workdir", "", "working directory the item is executed in")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "ignore the sync throttle")
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "keep running and re-sync on store changes")
	rootCmd.AddCommand(startCmd, doneCmd, closeCmd, syncCmd)
}
