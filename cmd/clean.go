package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/agentic-research/tangle/internal/storage"
)

var cleanAll bool

var cleanCmd = &cobra.Command{
	Use:   "clean [file...]",
	Short: "Remove stored artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cleanAll && len(args) == 0 {
			return fmt.Errorf("name the files to clean, or pass --all")
		}

		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		store, err := storage.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if cleanAll {
			if err := store.DeleteAll(); err != nil {
				return err
			}
			log.Printf("clean: removed all artifacts")
			return nil
		}
		for _, file := range args {
			if err := store.DeleteFile(file); err != nil {
				return fmt.Errorf("clean %s: %w", file, err)
			}
			log.Printf("clean: removed %s", file)
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "Remove every stored artifact")
}
