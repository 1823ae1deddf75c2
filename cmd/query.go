package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/tangle/internal/cancel"
	"github.com/agentic-research/tangle/internal/position"
	"github.com/agentic-research/tangle/internal/storage"
)

var queryTimeout time.Duration

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query name bindings from the artifact store",
}

var definitionCmd = &cobra.Command{
	Use:   "definition FILE:LINE:COLUMN",
	Short: "Find the definitions a reference resolves to",
	Long: "Definition resolves the reference at the given position (1-based\n" +
		"line and column) against the indexed artifacts, loading files\n" +
		"lazily as the search reaches them.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, line, column, err := parseSourcePosition(args[0])
		if err != nil {
			return err
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

		var flag cancel.Flag = cancel.None{}
		if queryTimeout > 0 {
			flag = cancel.AfterTimeout(queryTimeout)
		}

		querier := storage.NewQuerier(store)
		results, err := querier.Definitions(file, line, column, flag)
		if err != nil {
			return err
		}
		for _, res := range results {
			fmt.Printf("reference at %s\n", formatLocation(res.ReferenceFile, res.ReferenceSpan))
			if len(res.Definitions) == 0 {
				fmt.Println("  no definitions found")
				continue
			}
			for _, def := range res.Definitions {
				fmt.Printf("  defined at %s\n", formatLocation(def.File, def.Span))
			}
		}
		if len(results) == 0 {
			fmt.Println("no bindings found")
		}
		return nil
	},
}

func init() {
	queryCmd.PersistentFlags().DurationVar(&queryTimeout, "timeout", 0, "Cancel the query after this duration (0 = no limit)")
	queryCmd.AddCommand(definitionCmd)
}

// parseSourcePosition splits FILE:LINE:COLUMN with 1-based line and column
// into the 0-based position the engine uses.
func parseSourcePosition(arg string) (file string, line, column uint32, err error) {
	parts := strings.Split(arg, ":")
	if len(parts) < 3 {
		return "", 0, 0, fmt.Errorf("expected FILE:LINE:COLUMN, got %q", arg)
	}
	file = strings.Join(parts[:len(parts)-2], ":")
	lineNo, err := strconv.ParseUint(parts[len(parts)-2], 10, 32)
	if err != nil || lineNo == 0 {
		return "", 0, 0, fmt.Errorf("invalid line in %q", arg)
	}
	colNo, err := strconv.ParseUint(parts[len(parts)-1], 10, 32)
	if err != nil || colNo == 0 {
		return "", 0, 0, fmt.Errorf("invalid column in %q", arg)
	}
	return file, uint32(lineNo - 1), uint32(colNo - 1), nil
}

func formatLocation(file string, span position.Span) string {
	return fmt.Sprintf("%s:%d:%d", file, span.Start.Line+1, span.Start.Column.UTF8+1)
}
