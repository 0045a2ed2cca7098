package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steveyegge/plait/internal/backend"
	gitutil "github.com/steveyegge/plait/internal/git"
	"github.com/steveyegge/plait/internal/store"
	"github.com/steveyegge/plait/internal/types"
)

var (
	initName    string
	initBackend string
	initBase    string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a plait store in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}

		proj := types.Project{
			Name:       initName,
			BaseBranch: initBase,
			Backend:    initBackend,
		}
		if proj.Name == "" {
			proj.Name = filepath.Base(wd)
		}

		// Fill repo identity and backend from the surrounding git repo
		// when there is one; a plait store works without git too, it
		// just can't be referenced by other graphs until it has one.
		if repo, err := gitutil.Open(wd); err == nil {
			if id, err := gitutil.RootCommitID(repo); err == nil {
				proj.RepoID = id
			}
			if proj.Backend == "" {
				remoteURL := ""
				if remote, err := repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
					remoteURL = remote.Config().URLs[0]
				}
				proj.Backend = backend.Detect(remoteURL)
			}
		}
		if proj.Backend == "" {
			proj.Backend = "local"
		}
		if _, err := backend.New(proj.Backend, wd); err != nil {
			return err
		}

		st, err := store.Init(wd, proj)
		if err != nil {
			return err
		}
		fmt.Printf("Initialized plait store at %s (project %s, backend %s, base %s)\n",
			st.Path(), proj.Name, proj.Backend, proj.BaseBranch)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "project name (default: directory name)")
	initCmd.Flags().StringVar(&initBackend, "backend", "", "completion backend (default: detected from origin remote)")
	initCmd.Flags().StringVar(&initBase, "base", "main", "base branch work merges into")
	rootCmd.AddCommand(initCmd)
}
