// Package partial implements partial paths: reusable path fragments whose
// symbol and scope stacks are described symbolically as a precondition and a
// postcondition. A variable at the tail of a partial stack stands for "and
// anything else"; unification of those variables is what lets independently
// computed fragments be stitched into complete name-binding paths.
package partial

import (
	"strings"

	"github.com/agentic-research/tangle/internal/arena"
	"github.com/agentic-research/tangle/internal/graph"
)

// SymbolStackVariable identifies an unknown symbol stack tail. Zero means no
// variable.
type SymbolStackVariable uint32

// ScopeStackVariable identifies an unknown scope stack tail. Zero means no
// variable.
type ScopeStackVariable uint32

// InitialSymbolStackVariable and InitialScopeStackVariable are the variables
// a fresh partial path threads from its precondition to its postcondition.
const (
	InitialSymbolStackVariable SymbolStackVariable = 1
	InitialScopeStackVariable  ScopeStackVariable  = 1
)

// PartialPaths owns the arenas backing partial stacks and edge lists.
// Partial paths from different bags must never be mixed.
type PartialPaths struct {
	symbolStacks arena.DequeArena[PartialScopedSymbol]
	scopeStacks  arena.DequeArena[arena.Handle[graph.Node]]
	pathEdges    arena.DequeArena[PartialPathEdge]
}

// NewPartialPaths returns an empty partial path arena bag.
func NewPartialPaths() *PartialPaths {
	return &PartialPaths{}
}

// PartialScopedSymbol is a symbol with an optional attached partial scope
// stack.
type PartialScopedSymbol struct {
	Symbol    arena.Handle[graph.Symbol]
	HasScopes bool
	Scopes    PartialScopeStack
}

// Equals reports whether two partial scoped symbols are identical.
func (s PartialScopedSymbol) Equals(pp *PartialPaths, other PartialScopedSymbol) bool {
	if s.Symbol != other.Symbol || s.HasScopes != other.HasScopes {
		return false
	}
	return !s.HasScopes || s.Scopes.Equals(pp, other.Scopes)
}

// Compare orders partial scoped symbols by symbol text, then scopes.
func (s PartialScopedSymbol) Compare(g *graph.StackGraph, pp *PartialPaths, other PartialScopedSymbol) int {
	if c := strings.Compare(g.SymbolText(s.Symbol), g.SymbolText(other.Symbol)); c != 0 {
		return c
	}
	switch {
	case !s.HasScopes && !other.HasScopes:
		return 0
	case !s.HasScopes:
		return -1
	case !other.HasScopes:
		return 1
	default:
		return s.Scopes.Compare(pp, other.Scopes)
	}
}

// PartialScopeStack is a concrete prefix of exported scope nodes capped by
// an optional variable standing for the rest of the stack.
type PartialScopeStack struct {
	scopes   arena.Deque[arena.Handle[graph.Node]]
	length   uint32
	variable ScopeStackVariable
}

// EmptyPartialScopeStack returns the stack that matches exactly the empty
// scope stack.
func EmptyPartialScopeStack() PartialScopeStack {
	return PartialScopeStack{}
}

// ScopeStackFromVariable returns the stack consisting only of a variable,
// which matches any scope stack and names it.
func ScopeStackFromVariable(v ScopeStackVariable) PartialScopeStack {
	return PartialScopeStack{variable: v}
}

// IsEmpty reports whether the stack has no concrete scopes and no variable.
func (s PartialScopeStack) IsEmpty() bool {
	return s.length == 0 && s.variable == 0
}

// Len returns the number of concrete scopes.
func (s PartialScopeStack) Len() int {
	return int(s.length)
}

// HasVariable reports whether the stack is capped by a variable.
func (s PartialScopeStack) HasVariable() bool {
	return s.variable != 0
}

// Variable returns the capping variable, or zero if there is none.
func (s PartialScopeStack) Variable() ScopeStackVariable {
	return s.variable
}

// PushFront pushes a scope onto the top of the concrete prefix.
func (s *PartialScopeStack) PushFront(pp *PartialPaths, scope arena.Handle[graph.Node]) {
	s.length++
	s.scopes.PushFront(&pp.scopeStacks, scope)
}

// PushBack appends a scope below the concrete prefix, above the variable.
func (s *PartialScopeStack) PushBack(pp *PartialPaths, scope arena.Handle[graph.Node]) {
	s.length++
	s.scopes.PushBack(&pp.scopeStacks, scope)
}

// PopFront removes and returns the top concrete scope.
func (s *PartialScopeStack) PopFront(pp *PartialPaths) (arena.Handle[graph.Node], bool) {
	scope, ok := s.scopes.PopFront(&pp.scopeStacks)
	if ok {
		s.length--
	}
	return scope, ok
}

// ForEach calls f for each concrete scope from top to bottom.
func (s PartialScopeStack) ForEach(pp *PartialPaths, f func(arena.Handle[graph.Node])) {
	s.scopes.ForEach(&pp.scopeStacks, f)
}

// Equals reports structural equality, variables included.
func (s PartialScopeStack) Equals(pp *PartialPaths, other PartialScopeStack) bool {
	if s.variable != other.variable {
		return false
	}
	return s.scopes.EqualsWith(&pp.scopeStacks, other.scopes, func(a, b arena.Handle[graph.Node]) bool {
		return a == b
	})
}

// Compare orders stacks by concrete scopes, then by variable.
func (s PartialScopeStack) Compare(pp *PartialPaths, other PartialScopeStack) int {
	if c := s.scopes.CompareWith(&pp.scopeStacks, other.scopes, func(a, b arena.Handle[graph.Node]) int {
		return int(a.Index()) - int(b.Index())
	}); c != 0 {
		return c
	}
	return int(s.variable) - int(other.variable)
}

// PartialSymbolStack is a concrete prefix of partial scoped symbols capped
// by an optional variable standing for the rest of the stack.
type PartialSymbolStack struct {
	symbols  arena.Deque[PartialScopedSymbol]
	length   uint32
	variable SymbolStackVariable
}

// EmptyPartialSymbolStack returns the stack that matches exactly the empty
// symbol stack.
func EmptyPartialSymbolStack() PartialSymbolStack {
	return PartialSymbolStack{}
}

// SymbolStackFromVariable returns the stack consisting only of a variable.
func SymbolStackFromVariable(v SymbolStackVariable) PartialSymbolStack {
	return PartialSymbolStack{variable: v}
}

// IsEmpty reports whether the stack has no concrete symbols and no variable.
func (s PartialSymbolStack) IsEmpty() bool {
	return s.length == 0 && s.variable == 0
}

// Len returns the number of concrete symbols.
func (s PartialSymbolStack) Len() int {
	return int(s.length)
}

// HasVariable reports whether the stack is capped by a variable.
func (s PartialSymbolStack) HasVariable() bool {
	return s.variable != 0
}

// Variable returns the capping variable, or zero if there is none.
func (s PartialSymbolStack) Variable() SymbolStackVariable {
	return s.variable
}

// PushFront pushes a symbol onto the top of the concrete prefix.
func (s *PartialSymbolStack) PushFront(pp *PartialPaths, symbol PartialScopedSymbol) {
	s.length++
	s.symbols.PushFront(&pp.symbolStacks, symbol)
}

// PushBack appends a symbol below the concrete prefix, above the variable.
func (s *PartialSymbolStack) PushBack(pp *PartialPaths, symbol PartialScopedSymbol) {
	s.length++
	s.symbols.PushBack(&pp.symbolStacks, symbol)
}

// PopFront removes and returns the top concrete symbol.
func (s *PartialSymbolStack) PopFront(pp *PartialPaths) (PartialScopedSymbol, bool) {
	symbol, ok := s.symbols.PopFront(&pp.symbolStacks)
	if ok {
		s.length--
	}
	return symbol, ok
}

// ForEach calls f for each concrete symbol from top to bottom.
func (s PartialSymbolStack) ForEach(pp *PartialPaths, f func(PartialScopedSymbol)) {
	s.symbols.ForEach(&pp.symbolStacks, f)
}

// Equals reports structural equality, variables included.
func (s PartialSymbolStack) Equals(pp *PartialPaths, other PartialSymbolStack) bool {
	if s.variable != other.variable {
		return false
	}
	return s.symbols.EqualsWith(&pp.symbolStacks, other.symbols, func(a, b PartialScopedSymbol) bool {
		return a.Equals(pp, b)
	})
}

// Compare orders stacks by concrete symbols, then by variable.
func (s PartialSymbolStack) Compare(g *graph.StackGraph, pp *PartialPaths, other PartialSymbolStack) int {
	if c := s.symbols.CompareWith(&pp.symbolStacks, other.symbols, func(a, b PartialScopedSymbol) int {
		return a.Compare(g, pp, b)
	}); c != 0 {
		return c
	}
	return int(s.variable) - int(other.variable)
}

// PartialPathEdge records one traversed edge of a partial path.
type PartialPathEdge struct {
	SourceNodeID graph.NodeID
	Precedence   int32
}

// Shadows reports whether this edge shadows other: same source, strictly
// higher precedence.
func (e PartialPathEdge) Shadows(other PartialPathEdge) bool {
	return e.SourceNodeID == other.SourceNodeID && e.Precedence > other.Precedence
}

func comparePartialEdges(a, b PartialPathEdge) int {
	if a.SourceNodeID != b.SourceNodeID {
		if c := int(a.SourceNodeID.File().Index()) - int(b.SourceNodeID.File().Index()); c != 0 {
			return c
		}
		return int(a.SourceNodeID.LocalID()) - int(b.SourceNodeID.LocalID())
	}
	return int(a.Precedence) - int(b.Precedence)
}

// PartialPathEdgeList records the edges a partial path traversed.
type PartialPathEdgeList struct {
	edges  arena.Deque[PartialPathEdge]
	length uint32
}

// EmptyPartialPathEdgeList returns an empty edge list.
func EmptyPartialPathEdgeList() PartialPathEdgeList {
	return PartialPathEdgeList{}
}

// IsEmpty reports whether the list has no edges.
func (l PartialPathEdgeList) IsEmpty() bool {
	return l.edges.IsEmpty()
}

// Len returns the number of edges.
func (l PartialPathEdgeList) Len() int {
	return int(l.length)
}

// PushBack appends an edge.
func (l *PartialPathEdgeList) PushBack(pp *PartialPaths, edge PartialPathEdge) {
	l.length++
	l.edges.PushBack(&pp.pathEdges, edge)
}

// PopFront removes and returns the first edge.
func (l *PartialPathEdgeList) PopFront(pp *PartialPaths) (PartialPathEdge, bool) {
	edge, ok := l.edges.PopFront(&pp.pathEdges)
	if ok {
		l.length--
	}
	return edge, ok
}

// ForEach calls f for each edge from first to last.
func (l *PartialPathEdgeList) ForEach(pp *PartialPaths, f func(PartialPathEdge)) {
	l.edges.ForEach(&pp.pathEdges, f)
}

// Shadows reports whether this edge list shadows other, walking both in
// lockstep.
func (l PartialPathEdgeList) Shadows(pp *PartialPaths, other PartialPathEdgeList) bool {
	self, them := l, other
	for {
		selfEdge, ok := self.PopFront(pp)
		if !ok {
			return false
		}
		otherEdge, ok := them.PopFront(pp)
		if !ok {
			return false
		}
		if selfEdge.Shadows(otherEdge) {
			return true
		}
	}
}

// Equals reports element-wise equality.
func (l PartialPathEdgeList) Equals(pp *PartialPaths, other PartialPathEdgeList) bool {
	return l.edges.EqualsWith(&pp.pathEdges, other.edges, func(a, b PartialPathEdge) bool {
		return a == b
	})
}

// Compare lexicographically orders two edge lists.
func (l PartialPathEdgeList) Compare(pp *PartialPaths, other PartialPathEdgeList) int {
	return l.edges.CompareWith(&pp.pathEdges, other.edges, comparePartialEdges)
}
