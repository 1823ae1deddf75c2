package partial

import (
	"github.com/agentic-research/tangle/internal/graph"
	"github.com/agentic-research/tangle/internal/paths"
)

// AppendPartialPath extends a concrete path with a partial path: the partial
// path's preconditions are matched against the path's live stacks (binding
// the partial path's variables to the concrete remainders) and the stacks
// are rewritten into the concretized postconditions.
func AppendPartialPath(
	g *graph.StackGraph,
	ps *paths.Paths,
	pp *PartialPaths,
	path *paths.Path,
	partialPath *PartialPath,
) error {
	if partialPath.StartNode != path.EndNode {
		return paths.IncorrectSourceNode
	}

	var symbolBindings SymbolStackBindings
	var scopeBindings ScopeStackBindings
	if err := partialPath.SymbolStackPrecondition.MatchAgainstSymbolStack(
		ps, pp, path.SymbolStack, &symbolBindings, &scopeBindings); err != nil {
		return err
	}
	if err := partialPath.ScopeStackPrecondition.MatchAgainstScopeStack(
		ps, pp, path.ScopeStack, &scopeBindings); err != nil {
		return err
	}

	symbolStack, err := partialPath.SymbolStackPostcondition.ApplyBindings(ps, pp, &symbolBindings, &scopeBindings)
	if err != nil {
		return err
	}
	scopeStack, err := partialPath.ScopeStackPostcondition.ApplyBindings(ps, pp, &scopeBindings)
	if err != nil {
		return err
	}

	path.SymbolStack = symbolStack
	path.ScopeStack = scopeStack
	partialPath.Edges.ForEach(pp, func(edge PartialPathEdge) {
		path.Edges.PushBack(ps, paths.PathEdge{
			SourceNodeID: edge.SourceNodeID,
			Precedence:   edge.Precedence,
		})
	})
	path.EndNode = partialPath.EndNode
	return nil
}

// PathFromPartialPath materializes a partial path whose precondition is
// trivially satisfiable into a concrete path: the precondition variables are
// bound to empty stacks and the postconditions become the live stacks. A
// partial path that requires anything concrete on entry cannot seed a query
// and reports false.
func PathFromPartialPath(
	g *graph.StackGraph,
	ps *paths.Paths,
	pp *PartialPaths,
	partialPath *PartialPath,
) (paths.Path, bool) {
	if partialPath.SymbolStackPrecondition.Len() > 0 || partialPath.ScopeStackPrecondition.Len() > 0 {
		return paths.Path{}, false
	}

	var symbolBindings SymbolStackBindings
	var scopeBindings ScopeStackBindings
	if v := partialPath.SymbolStackPrecondition.Variable(); v != 0 {
		if err := symbolBindings.Add(ps, v, paths.NewEmptySymbolStack()); err != nil {
			return paths.Path{}, false
		}
	}
	if v := partialPath.ScopeStackPrecondition.Variable(); v != 0 {
		if err := scopeBindings.Add(ps, v, paths.NewEmptyScopeStack()); err != nil {
			return paths.Path{}, false
		}
	}

	symbolStack, err := partialPath.SymbolStackPostcondition.ApplyBindings(ps, pp, &symbolBindings, &scopeBindings)
	if err != nil {
		return paths.Path{}, false
	}
	scopeStack, err := partialPath.ScopeStackPostcondition.ApplyBindings(ps, pp, &scopeBindings)
	if err != nil {
		return paths.Path{}, false
	}

	path := paths.Path{
		StartNode:   partialPath.StartNode,
		EndNode:     partialPath.EndNode,
		SymbolStack: symbolStack,
		ScopeStack:  scopeStack,
	}
	partialPath.Edges.ForEach(pp, func(edge PartialPathEdge) {
		path.Edges.PushBack(ps, paths.PathEdge{
			SourceNodeID: edge.SourceNodeID,
			Precedence:   edge.Precedence,
		})
	})
	return path, true
}
