package partial

import (
	"github.com/agentic-research/tangle/internal/graph"
	"github.com/agentic-research/tangle/internal/paths"
)

// PartialPath is a reusable fragment of a name-binding path. The
// precondition pair describes the shape the symbol and scope stacks must
// have at the start node for the fragment to apply; the postcondition pair
// describes the shape they are rewritten into at the end node. Variables
// appearing in the postcondition are bound by the precondition.
type PartialPath struct {
	StartNode graph.NodeHandle
	EndNode   graph.NodeHandle

	SymbolStackPrecondition  PartialSymbolStack
	SymbolStackPostcondition PartialSymbolStack
	ScopeStackPrecondition   PartialScopeStack
	ScopeStackPostcondition  PartialScopeStack

	Edges PartialPathEdgeList
}

// FromNode creates the identity partial path at node, threading fresh
// variables from precondition to postcondition and seeding the
// postcondition with the node's own stack effect. Partial paths cannot
// start at pop nodes; those are reached, not started from.
func FromNode(g *graph.StackGraph, pp *PartialPaths, node graph.NodeHandle) (PartialPath, bool) {
	p := PartialPath{
		StartNode:                node,
		EndNode:                  node,
		SymbolStackPrecondition:  SymbolStackFromVariable(InitialSymbolStackVariable),
		SymbolStackPostcondition: SymbolStackFromVariable(InitialSymbolStackVariable),
		ScopeStackPrecondition:   ScopeStackFromVariable(InitialScopeStackVariable),
		ScopeStackPostcondition:  ScopeStackFromVariable(InitialScopeStackVariable),
	}
	n := g.Node(node)
	switch n.Kind {
	case graph.PushSymbol:
		p.SymbolStackPostcondition.PushFront(pp, PartialScopedSymbol{Symbol: n.Symbol})
	case graph.PushScopedSymbol:
		scope, ok := g.NodeForID(n.ScopeID)
		if !ok {
			return PartialPath{}, false
		}
		attached := p.ScopeStackPostcondition
		attached.PushFront(pp, scope)
		p.SymbolStackPostcondition.PushFront(pp, PartialScopedSymbol{
			Symbol:    n.Symbol,
			HasScopes: true,
			Scopes:    attached,
		})
	case graph.PopSymbol, graph.PopScopedSymbol:
		return PartialPath{}, false
	}
	return p, true
}

// IdentityFromNode returns the empty partial path at node: stacks pass
// through unchanged. Concatenating any partial path onto an identity path
// yields that path (up to variable renaming), which is how stitching seeds
// a search without re-applying the node's own stack effect.
func IdentityFromNode(node graph.NodeHandle) PartialPath {
	return PartialPath{
		StartNode:                node,
		EndNode:                  node,
		SymbolStackPrecondition:  SymbolStackFromVariable(InitialSymbolStackVariable),
		SymbolStackPostcondition: SymbolStackFromVariable(InitialSymbolStackVariable),
		ScopeStackPrecondition:   ScopeStackFromVariable(InitialScopeStackVariable),
		ScopeStackPostcondition:  ScopeStackFromVariable(InitialScopeStackVariable),
	}
}

// IsCompleteAsPossible reports whether the partial path cannot meaningfully
// be extended within its own file: it runs from a node other files can reach
// (the root, an exported scope, or a reference) to a node that hands control
// back (the root, the jump-to node, or a definition).
func (p *PartialPath) IsCompleteAsPossible(g *graph.StackGraph) bool {
	start := g.Node(p.StartNode)
	switch {
	case start.IsRoot(), start.IsExportedScope(), start.IsReference:
	default:
		return false
	}
	end := g.Node(p.EndNode)
	switch {
	case end.IsRoot(), end.IsJumpTo(), end.IsDefinition:
		return true
	default:
		return false
	}
}

// IsProductive reports whether the partial path does any work: it traverses
// at least one edge and, if it loops back to its start node, rewrites the
// stacks into a different shape.
func (p *PartialPath) IsProductive(pp *PartialPaths) bool {
	if p.Edges.IsEmpty() {
		return false
	}
	if p.StartNode != p.EndNode {
		return true
	}
	return !p.SymbolStackPrecondition.Equals(pp, p.SymbolStackPostcondition) ||
		!p.ScopeStackPrecondition.Equals(pp, p.ScopeStackPostcondition)
}

// IsComplete reports whether the partial path represents a full name
// binding: a reference resolved to a definition with nothing left on the
// stacks but the variables that stand for "whatever else was there".
func (p *PartialPath) IsComplete(g *graph.StackGraph) bool {
	if !g.Node(p.StartNode).IsReference {
		return false
	}
	if !g.Node(p.EndNode).IsDefinition {
		return false
	}
	return p.SymbolStackPrecondition.Len() == 0 &&
		p.SymbolStackPostcondition.Len() == 0 &&
		p.ScopeStackPrecondition.Len() == 0 &&
		p.ScopeStackPostcondition.Len() == 0
}

// Shadows reports whether this partial path shadows other. Not commutative.
func (p *PartialPath) Shadows(pp *PartialPaths, other *PartialPath) bool {
	return p.Edges.Shadows(pp, other.Edges)
}

// Equals reports whether two partial paths are identical.
func (p *PartialPath) Equals(pp *PartialPaths, other *PartialPath) bool {
	return p.StartNode == other.StartNode &&
		p.EndNode == other.EndNode &&
		p.SymbolStackPrecondition.Equals(pp, other.SymbolStackPrecondition) &&
		p.SymbolStackPostcondition.Equals(pp, other.SymbolStackPostcondition) &&
		p.ScopeStackPrecondition.Equals(pp, other.ScopeStackPrecondition) &&
		p.ScopeStackPostcondition.Equals(pp, other.ScopeStackPostcondition) &&
		p.Edges.Equals(pp, other.Edges)
}

// Compare canonically orders partial paths: by endpoints, then
// preconditions, then postconditions, then edges.
func (p *PartialPath) Compare(g *graph.StackGraph, pp *PartialPaths, other *PartialPath) int {
	if c := int(p.StartNode.Index()) - int(other.StartNode.Index()); c != 0 {
		return c
	}
	if c := int(p.EndNode.Index()) - int(other.EndNode.Index()); c != 0 {
		return c
	}
	if c := p.SymbolStackPrecondition.Compare(g, pp, other.SymbolStackPrecondition); c != 0 {
		return c
	}
	if c := p.SymbolStackPostcondition.Compare(g, pp, other.SymbolStackPostcondition); c != 0 {
		return c
	}
	if c := p.ScopeStackPrecondition.Compare(pp, other.ScopeStackPrecondition); c != 0 {
		return c
	}
	if c := p.ScopeStackPostcondition.Compare(pp, other.ScopeStackPostcondition); c != 0 {
		return c
	}
	return p.Edges.Compare(pp, other.Edges)
}

// LargestSymbolStackVariable returns the largest symbol stack variable
// anywhere in the partial path, or zero if there is none.
func (p *PartialPath) LargestSymbolStackVariable() SymbolStackVariable {
	largest := p.SymbolStackPrecondition.variable
	if v := p.SymbolStackPostcondition.variable; v > largest {
		largest = v
	}
	return largest
}

// LargestScopeStackVariable returns the largest scope stack variable
// anywhere in the partial path, including the attached scope stacks of its
// symbols, or zero if there is none.
func (p *PartialPath) LargestScopeStackVariable(pp *PartialPaths) ScopeStackVariable {
	largest := p.ScopeStackPrecondition.variable
	note := func(v ScopeStackVariable) {
		if v > largest {
			largest = v
		}
	}
	note(p.ScopeStackPostcondition.variable)
	scanSymbols := func(s PartialSymbolStack) {
		s.ForEach(pp, func(symbol PartialScopedSymbol) {
			if symbol.HasScopes {
				note(symbol.Scopes.variable)
			}
		})
	}
	scanSymbols(p.SymbolStackPrecondition)
	scanSymbols(p.SymbolStackPostcondition)
	return largest
}

// FreshScopeStackVariable returns a scope stack variable not used anywhere
// in the partial path.
func (p *PartialPath) FreshScopeStackVariable(pp *PartialPaths) ScopeStackVariable {
	return p.LargestScopeStackVariable(pp) + 1
}

func (s PartialScopeStack) withOffset(pp *PartialPaths, scopeOffset ScopeStackVariable) PartialScopeStack {
	if s.variable == 0 || scopeOffset == 0 {
		return s
	}
	result := EmptyPartialScopeStack()
	s.ForEach(pp, func(scope hNode) { result.PushBack(pp, scope) })
	result.variable = s.variable + scopeOffset
	return result
}

func (s PartialSymbolStack) withOffset(pp *PartialPaths, symbolOffset SymbolStackVariable, scopeOffset ScopeStackVariable) PartialSymbolStack {
	result := EmptyPartialSymbolStack()
	s.ForEach(pp, func(symbol PartialScopedSymbol) {
		if symbol.HasScopes {
			symbol.Scopes = symbol.Scopes.withOffset(pp, scopeOffset)
		}
		result.PushBack(pp, symbol)
	})
	if s.variable != 0 {
		result.variable = s.variable + symbolOffset
	}
	return result
}

// withOffsetVariables returns a copy of the partial path with every
// variable shifted, so that its variables cannot collide with another
// path's. Variable hygiene before concatenation.
func (p PartialPath) withOffsetVariables(pp *PartialPaths, symbolOffset SymbolStackVariable, scopeOffset ScopeStackVariable) PartialPath {
	if symbolOffset == 0 && scopeOffset == 0 {
		return p
	}
	p.SymbolStackPrecondition = p.SymbolStackPrecondition.withOffset(pp, symbolOffset, scopeOffset)
	p.SymbolStackPostcondition = p.SymbolStackPostcondition.withOffset(pp, symbolOffset, scopeOffset)
	p.ScopeStackPrecondition = p.ScopeStackPrecondition.withOffset(pp, scopeOffset)
	p.ScopeStackPostcondition = p.ScopeStackPostcondition.withOffset(pp, scopeOffset)
	return p
}

// Append attempts to extend the partial path with one edge, applying the
// sink's stack effect to the postcondition. Pops that run off the concrete
// postcondition grow the precondition through the variable tail instead.
// Partial paths stay within the file they were seeded in; edges may only
// leave it for the root or jump-to nodes.
func (p *PartialPath) Append(g *graph.StackGraph, pp *PartialPaths, file graph.FileHandle, edge graph.Edge) error {
	if edge.Source != p.EndNode {
		return paths.IncorrectSourceNode
	}

	sink := g.Node(edge.Sink)
	if !sink.File().IsNil() && sink.File() != file {
		return paths.IncorrectFile
	}

	switch sink.Kind {
	case graph.PushSymbol:
		p.SymbolStackPostcondition.PushFront(pp, PartialScopedSymbol{Symbol: sink.Symbol})

	case graph.PushScopedSymbol:
		scope, ok := g.NodeForID(sink.ScopeID)
		if !ok {
			return paths.UnknownAttachedScope
		}
		attached := p.ScopeStackPostcondition
		attached.PushFront(pp, scope)
		p.SymbolStackPostcondition.PushFront(pp, PartialScopedSymbol{
			Symbol:    sink.Symbol,
			HasScopes: true,
			Scopes:    attached,
		})

	case graph.PopSymbol:
		if top, ok := p.SymbolStackPostcondition.PopFront(pp); ok {
			if top.Symbol != sink.Symbol {
				return paths.IncorrectPoppedSymbol
			}
			if top.HasScopes {
				return paths.UnexpectedAttachedScopeList
			}
		} else if p.SymbolStackPostcondition.HasVariable() {
			// The pop reaches below what this fragment has seen; the symbol
			// must already have been on the stack when the fragment started.
			p.SymbolStackPrecondition.PushBack(pp, PartialScopedSymbol{Symbol: sink.Symbol})
		} else {
			return paths.EmptySymbolStack
		}

	case graph.PopScopedSymbol:
		if top, ok := p.SymbolStackPostcondition.PopFront(pp); ok {
			if top.Symbol != sink.Symbol {
				return paths.IncorrectPoppedSymbol
			}
			if !top.HasScopes {
				return paths.MissingAttachedScopeList
			}
			p.ScopeStackPostcondition = top.Scopes
		} else if p.SymbolStackPostcondition.HasVariable() {
			v := p.FreshScopeStackVariable(pp)
			p.SymbolStackPrecondition.PushBack(pp, PartialScopedSymbol{
				Symbol:    sink.Symbol,
				HasScopes: true,
				Scopes:    ScopeStackFromVariable(v),
			})
			p.ScopeStackPostcondition = ScopeStackFromVariable(v)
		} else {
			return paths.EmptySymbolStack
		}

	case graph.DropScopes:
		p.ScopeStackPostcondition = EmptyPartialScopeStack()
	}

	p.EndNode = edge.Sink
	p.Edges.PushBack(pp, PartialPathEdge{
		SourceNodeID: g.Node(edge.Source).ID,
		Precedence:   edge.Precedence,
	})
	return nil
}

// Resolve resolves a jump-to-scope ending against the scope stack
// postcondition. If the top of the postcondition is concrete, the path jumps
// there. If the postcondition is just a variable, the path is left parked at
// the jump-to node until stitching makes a concrete scope known. An empty
// postcondition with no variable cannot be resolved.
func (p *PartialPath) Resolve(g *graph.StackGraph, pp *PartialPaths) error {
	if !g.Node(p.EndNode).IsJumpTo() {
		return nil
	}
	if top, ok := p.ScopeStackPostcondition.PopFront(pp); ok {
		p.Edges.PushBack(pp, PartialPathEdge{SourceNodeID: g.Node(p.EndNode).ID})
		p.EndNode = top
		return nil
	}
	if p.ScopeStackPostcondition.HasVariable() {
		return nil
	}
	return paths.EmptyScopeStack
}

// ResolveToNode resolves a partial path parked at the jump-to node against
// a concrete exported scope that has since become known. The scope stack
// postcondition's variable is rewritten everywhere to "scope, and then a
// fresh rest", and the path jumps to the scope.
func (p *PartialPath) ResolveToNode(g *graph.StackGraph, pp *PartialPaths, scope graph.NodeHandle) error {
	if !g.Node(p.EndNode).IsJumpTo() {
		return paths.IncorrectSourceNode
	}
	if top, ok := p.ScopeStackPostcondition.PopFront(pp); ok {
		if top != scope {
			return paths.ScopeStackUnsatisfied
		}
	} else {
		v := p.ScopeStackPostcondition.Variable()
		if v == 0 {
			return paths.EmptyScopeStack
		}
		binding := ScopeStackFromVariable(p.FreshScopeStackVariable(pp))
		binding.PushFront(pp, scope)
		var bindings PartialScopeStackBindings
		if err := bindings.Add(pp, v, binding); err != nil {
			return err
		}
		var symbolBindings PartialSymbolStackBindings
		p.SymbolStackPrecondition = p.SymbolStackPrecondition.ApplyPartialBindings(pp, &symbolBindings, &bindings)
		p.SymbolStackPostcondition = p.SymbolStackPostcondition.ApplyPartialBindings(pp, &symbolBindings, &bindings)
		p.ScopeStackPrecondition = p.ScopeStackPrecondition.ApplyPartialBindings(pp, &bindings)
		p.ScopeStackPostcondition = p.ScopeStackPostcondition.ApplyPartialBindings(pp, &bindings)
		if _, ok := p.ScopeStackPostcondition.PopFront(pp); !ok {
			return paths.EmptyScopeStack
		}
	}
	p.Edges.PushBack(pp, PartialPathEdge{SourceNodeID: g.Node(p.EndNode).ID})
	p.EndNode = scope
	return nil
}

// Concatenate joins other onto the end of this partial path: renames
// other's variables so they cannot collide, unifies this path's
// postconditions with other's preconditions, and rewrites both sides
// through the resulting bindings.
func (p *PartialPath) Concatenate(g *graph.StackGraph, pp *PartialPaths, other *PartialPath) error {
	if other.StartNode != p.EndNode {
		return paths.IncorrectSourceNode
	}

	rhs := other.withOffsetVariables(pp, p.LargestSymbolStackVariable(), p.LargestScopeStackVariable(pp))

	var symbolBindings PartialSymbolStackBindings
	var scopeBindings PartialScopeStackBindings
	if err := UnifyPartialSymbolStacks(pp,
		p.SymbolStackPostcondition, rhs.SymbolStackPrecondition,
		&symbolBindings, &scopeBindings); err != nil {
		return err
	}
	if err := UnifyPartialScopeStacks(pp,
		p.ScopeStackPostcondition, rhs.ScopeStackPrecondition,
		&scopeBindings); err != nil {
		return err
	}

	p.SymbolStackPrecondition = p.SymbolStackPrecondition.ApplyPartialBindings(pp, &symbolBindings, &scopeBindings)
	p.ScopeStackPrecondition = p.ScopeStackPrecondition.ApplyPartialBindings(pp, &scopeBindings)
	p.SymbolStackPostcondition = rhs.SymbolStackPostcondition.ApplyPartialBindings(pp, &symbolBindings, &scopeBindings)
	p.ScopeStackPostcondition = rhs.ScopeStackPostcondition.ApplyPartialBindings(pp, &scopeBindings)

	rhs.Edges.ForEach(pp, func(edge PartialPathEdge) {
		p.Edges.PushBack(pp, edge)
	})
	p.EndNode = rhs.EndNode
	return nil
}
