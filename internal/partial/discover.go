package partial

import (
	"github.com/agentic-research/tangle/internal/arena"
	"github.com/agentic-research/tangle/internal/cancel"
	"github.com/agentic-research/tangle/internal/cycles"
	"github.com/agentic-research/tangle/internal/graph"
)

// FindPartialPathsInFile computes the partial paths a file contributes to
// the database: every productive, as-complete-as-possible fragment reachable
// from the file's entry points (the root node, the file's references, and
// its exported scopes), extended only within the file plus the root and
// jump-to nodes. This is the index-time half of the stitching story; the
// query-time half recombines fragments from many files.
func (pp *PartialPaths) FindPartialPathsInFile(
	g *graph.StackGraph,
	file graph.FileHandle,
	flag cancel.Flag,
	visit func(*graph.StackGraph, *PartialPaths, *PartialPath),
) error {
	detector := cycles.NewDetector(
		func(p PartialPath) cycles.PathKey {
			return cycles.PathKey{StartNode: p.StartNode, EndNode: p.EndNode}
		},
		func(a, b PartialPath) bool {
			return a.Edges.Len() < b.Edges.Len() &&
				a.SymbolStackPrecondition.Len()+a.SymbolStackPostcondition.Len() <=
					b.SymbolStackPrecondition.Len()+b.SymbolStackPostcondition.Len()
		},
	)

	var queue []PartialPath
	seed := func(node graph.NodeHandle) {
		if path, ok := FromNode(g, pp, node); ok {
			queue = append(queue, path)
		}
	}
	seed(g.RootNode())
	g.NodesForFile(file, func(node arena.Handle[graph.Node]) {
		n := g.Node(node)
		if n.IsReference || n.IsExportedScope() {
			seed(node)
		}
	})

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if err := flag.Check("find partial paths in file"); err != nil {
			return err
		}
		if !detector.ShouldProcess(path, func(stored PartialPath) int {
			return stored.Compare(g, pp, &path)
		}) {
			continue
		}
		for _, edge := range g.OutgoingEdges(path.EndNode) {
			extended := path
			if err := extended.Append(g, pp, file, edge); err != nil {
				continue
			}
			if err := extended.Resolve(g, pp); err != nil {
				continue
			}
			queue = append(queue, extended)
		}
		if path.IsCompleteAsPossible(g) && path.IsProductive(pp) {
			visit(g, pp, &path)
		}
	}
	return nil
}
