package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/tangle/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status [file...]",
	Short: "Show which files are indexed",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		store, err := storage.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		entries, err := store.ListFiles()
		if err != nil {
			return err
		}
		wanted := make(map[string]bool, len(args))
		for _, arg := range args {
			wanted[arg] = true
		}
		shown := 0
		for _, entry := range entries {
			if len(wanted) > 0 && !wanted[entry.File] {
				continue
			}
			fmt.Printf("%s\tindexed\t%s\n", entry.File, shortTag(entry.Tag))
			delete(wanted, entry.File)
			shown++
		}
		for file := range wanted {
			fmt.Printf("%s\tmissing\n", file)
			shown++
		}
		if shown == 0 {
			fmt.Println("store is empty")
		}
		return nil
	},
}

func shortTag(tag string) string {
	if len(tag) > 12 {
		return tag[:12]
	}
	return tag
}
