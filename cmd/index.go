package cmd

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/tangle/api"
	"github.com/agentic-research/tangle/internal/cancel"
	"github.com/agentic-research/tangle/internal/graph"
	"github.com/agentic-research/tangle/internal/partial"
	"github.com/agentic-research/tangle/internal/storage"
)

var indexForce bool

var indexCmd = &cobra.Command{
	Use:   "index [graph.json...]",
	Short: "Load serialized stack graphs and store their partial paths",
	Long: "Index loads serialized stack graphs (as produced by a graph\n" +
		"construction front end), computes each file's partial paths, and\n" +
		"stores graph and paths keyed by file name with a content tag.",
	Args: cobra.MinimumNArgs(1),
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

		// One shared graph per invocation: files indexed together can see
		// the root edges their partial paths travel through.
		g := graph.New()
		pp := partial.NewPartialPaths()

		type pending struct {
			file graph.FileHandle
			tag  string
		}
		var work []pending
		for _, arg := range args {
			blob, err := os.ReadFile(arg)
			if err != nil {
				return fmt.Errorf("read %s: %w", arg, err)
			}
			sum := sha1.Sum(blob)
			tag := hex.EncodeToString(sum[:])

			var serialized api.StackGraph
			if err := json.Unmarshal(blob, &serialized); err != nil {
				return fmt.Errorf("parse %s: %w", arg, err)
			}
			if err := serialized.LoadInto(g); err != nil {
				return fmt.Errorf("load %s: %w", arg, err)
			}
			for _, name := range serialized.Files {
				file, ok := g.GetFile(name)
				if !ok {
					continue
				}
				work = append(work, pending{file: file, tag: tag})
			}
		}

		for _, w := range work {
			name := g.File(w.file).Name()
			if !indexForce {
				status, err := store.StatusForFile(name, w.tag)
				if err != nil {
					return err
				}
				if status == storage.StatusIndexed {
					log.Printf("index: %s up to date, skipping", name)
					continue
				}
			}

			var found []partial.PartialPath
			err := pp.FindPartialPathsInFile(g, w.file, cancel.None{},
				func(_ *graph.StackGraph, _ *partial.PartialPaths, p *partial.PartialPath) {
					found = append(found, *p)
				})
			if err != nil {
				return err
			}
			if err := store.StoreFile(g, pp, w.file, w.tag, found); err != nil {
				return fmt.Errorf("store %s: %w", name, err)
			}
			log.Printf("index: %s (%d partial paths)", name, len(found))
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "Re-index files even if they are up to date")
}
