// plait is a dependency-aware work scheduler: a graph of work items,
// milestones and cross-repository references stored next to the code it
// plans, with completion detected from the repository itself.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/plait/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "plait",
	Short: "Dependency-aware work scheduling on top of git",
	Long: `plait keeps a graph of work items in .plait/plan.yaml beside your code.
Items become ready when their dependencies merge; completion is detected
from the repository, not self-reported. Graphs compose across
repositories through references.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "machine-readable JSON output")
	_ = config.Get().BindPFlag(config.KeyJSON, rootCmd.PersistentFlags().Lookup("json"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "plait:", err)
		os.Exit(exitCode(err))
	}
}
