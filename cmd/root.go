// Package cmd implements the tangle command line: indexing serialized stack
// graphs into the artifact store and querying name bindings out of it.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:     "tangle",
	Short:   "Tangle: stack-graph name binding resolution",
	Long:    "Tangle resolves references to definitions by stitching partial paths\ncomputed independently per source file.",
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the artifact store (default ~/.tangle/tangle.db)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanCmd)
}

// resolveDBPath picks the store location: the --db flag if given, otherwise
// ~/.tangle/tangle.db, creating the directory if needed.
func resolveDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	dir := filepath.Join(home, ".tangle")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(dir, "tangle.db"), nil
}

// Execute runs the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
