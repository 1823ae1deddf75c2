// Package paths implements the concrete path abstract machine. A path is a
// walk through a stack graph that keeps a symbol stack (what we are looking
// for) and a scope stack (context for scoped symbol operations) in a valid
// state at every step. A complete path, from a reference to a definition
// with both stacks empty, represents one name binding in the source language.
package paths

import (
	"strings"

	"github.com/agentic-research/tangle/internal/arena"
	"github.com/agentic-research/tangle/internal/cancel"
	"github.com/agentic-research/tangle/internal/cycles"
	"github.com/agentic-research/tangle/internal/graph"
)

// Paths owns the arenas backing the stacks and edge lists of a collection of
// paths. Paths from different Paths bags must never be mixed.
type Paths struct {
	symbolStacks arena.ListArena[ScopedSymbol]
	scopeStacks  arena.ListArena[arena.Handle[graph.Node]]
	pathEdges    arena.DequeArena[PathEdge]
}

// NewPaths returns an empty path arena bag.
func NewPaths() *Paths {
	return &Paths{}
}

// ScopedSymbol is a symbol with an optional attached scope stack. Two scoped
// symbols match iff their symbols are the same handle and their attached
// stacks are either both absent or both present and equal.
type ScopedSymbol struct {
	Symbol    arena.Handle[graph.Symbol]
	HasScopes bool
	Scopes    ScopeStack
}

// Equals reports whether two scoped symbols match.
func (s ScopedSymbol) Equals(ps *Paths, other ScopedSymbol) bool {
	if s.Symbol != other.Symbol || s.HasScopes != other.HasScopes {
		return false
	}
	return !s.HasScopes || s.Scopes.Equals(ps, other.Scopes)
}

// Compare orders scoped symbols by symbol text, then by attached scopes.
func (s ScopedSymbol) Compare(g *graph.StackGraph, ps *Paths, other ScopedSymbol) int {
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
		return s.Scopes.Compare(ps, other.Scopes)
	}
}

// SymbolStack is the stack of scoped symbols the path machine is looking
// for; the front is the top.
type SymbolStack struct {
	list   arena.List[ScopedSymbol]
	length uint32
}

// NewEmptySymbolStack returns an empty symbol stack.
func NewEmptySymbolStack() SymbolStack {
	return SymbolStack{}
}

// IsEmpty reports whether the stack has no symbols.
func (s SymbolStack) IsEmpty() bool {
	return s.list.IsEmpty()
}

// Len returns the number of symbols on the stack.
func (s SymbolStack) Len() int {
	return int(s.length)
}

// PushFront pushes a scoped symbol onto the top of the stack.
func (s *SymbolStack) PushFront(ps *Paths, symbol ScopedSymbol) {
	s.length++
	s.list.PushFront(&ps.symbolStacks, symbol)
}

// PopFront removes and returns the top of the stack.
func (s *SymbolStack) PopFront(ps *Paths) (ScopedSymbol, bool) {
	value, ok := s.list.PopFront(&ps.symbolStacks)
	if ok {
		s.length--
	}
	return value, ok
}

// ForEach calls f for each symbol from top to bottom.
func (s SymbolStack) ForEach(ps *Paths, f func(ScopedSymbol)) {
	s.list.ForEach(&ps.symbolStacks, f)
}

// Equals reports structural equality of two symbol stacks.
func (s SymbolStack) Equals(ps *Paths, other SymbolStack) bool {
	return s.list.EqualsWith(&ps.symbolStacks, other.list, func(a, b ScopedSymbol) bool {
		return a.Equals(ps, b)
	})
}

// Compare lexicographically orders two symbol stacks.
func (s SymbolStack) Compare(g *graph.StackGraph, ps *Paths, other SymbolStack) int {
	return s.list.CompareWith(&ps.symbolStacks, other.list, func(a, b ScopedSymbol) int {
		return a.Compare(g, ps, b)
	})
}

// ScopeStack is a stack of exported scope nodes providing context for scoped
// symbol operations; the front is the top.
type ScopeStack struct {
	list   arena.List[arena.Handle[graph.Node]]
	length uint32
}

// NewEmptyScopeStack returns an empty scope stack.
func NewEmptyScopeStack() ScopeStack {
	return ScopeStack{}
}

// IsEmpty reports whether the stack has no scopes.
func (s ScopeStack) IsEmpty() bool {
	return s.list.IsEmpty()
}

// Len returns the number of scopes on the stack.
func (s ScopeStack) Len() int {
	return int(s.length)
}

// PushFront pushes an exported scope node onto the top of the stack.
func (s *ScopeStack) PushFront(ps *Paths, node arena.Handle[graph.Node]) {
	s.length++
	s.list.PushFront(&ps.scopeStacks, node)
}

// PopFront removes and returns the top of the stack.
func (s *ScopeStack) PopFront(ps *Paths) (arena.Handle[graph.Node], bool) {
	value, ok := s.list.PopFront(&ps.scopeStacks)
	if ok {
		s.length--
	}
	return value, ok
}

// ForEach calls f for each scope from top to bottom.
func (s ScopeStack) ForEach(ps *Paths, f func(arena.Handle[graph.Node])) {
	s.list.ForEach(&ps.scopeStacks, f)
}

// Equals reports structural equality of two scope stacks.
func (s ScopeStack) Equals(ps *Paths, other ScopeStack) bool {
	return s.list.EqualsWith(&ps.scopeStacks, other.list, func(a, b arena.Handle[graph.Node]) bool {
		return a == b
	})
}

// Compare lexicographically orders two scope stacks by node handle.
func (s ScopeStack) Compare(ps *Paths, other ScopeStack) int {
	return s.list.CompareWith(&ps.scopeStacks, other.list, func(a, b arena.Handle[graph.Node]) int {
		return int(a.Index()) - int(b.Index())
	})
}

// PathEdge records one traversed edge: the source node's id and the edge's
// precedence, which is what shadowing compares.
type PathEdge struct {
	SourceNodeID graph.NodeID
	Precedence   int32
}

// Shadows reports whether this edge shadows other: same source, strictly
// higher precedence. Shadowing is not commutative.
func (e PathEdge) Shadows(other PathEdge) bool {
	return e.SourceNodeID == other.SourceNodeID && e.Precedence > other.Precedence
}

func compareEdges(a, b PathEdge) int {
	if a.SourceNodeID != b.SourceNodeID {
		if c := int(a.SourceNodeID.File().Index()) - int(b.SourceNodeID.File().Index()); c != 0 {
			return c
		}
		return int(a.SourceNodeID.LocalID()) - int(b.SourceNodeID.LocalID())
	}
	return int(a.Precedence) - int(b.Precedence)
}

// PathEdgeList records the edges a path traversed, in order.
type PathEdgeList struct {
	edges  arena.Deque[PathEdge]
	length uint32
}

// EmptyPathEdgeList returns an empty edge list.
func EmptyPathEdgeList() PathEdgeList {
	return PathEdgeList{}
}

// IsEmpty reports whether the list has no edges.
func (l PathEdgeList) IsEmpty() bool {
	return l.edges.IsEmpty()
}

// Len returns the number of edges in the list.
func (l PathEdgeList) Len() int {
	return int(l.length)
}

// PushBack appends an edge.
func (l *PathEdgeList) PushBack(ps *Paths, edge PathEdge) {
	l.length++
	l.edges.PushBack(&ps.pathEdges, edge)
}

// PopFront removes and returns the first edge.
func (l *PathEdgeList) PopFront(ps *Paths) (PathEdge, bool) {
	value, ok := l.edges.PopFront(&ps.pathEdges)
	if ok {
		l.length--
	}
	return value, ok
}

// ForEach calls f for each edge from first to last.
func (l *PathEdgeList) ForEach(ps *Paths, f func(PathEdge)) {
	l.edges.ForEach(&ps.pathEdges, f)
}

// Shadows reports whether this edge list shadows other: walking both in
// lockstep, some edge of this list shadows the other's edge at the same
// position. Not commutative.
func (l PathEdgeList) Shadows(ps *Paths, other PathEdgeList) bool {
	self, them := l, other
	for {
		selfEdge, ok := self.PopFront(ps)
		if !ok {
			return false
		}
		otherEdge, ok := them.PopFront(ps)
		if !ok {
			return false
		}
		if selfEdge.Shadows(otherEdge) {
			return true
		}
	}
}

// Equals reports element-wise equality of two edge lists.
func (l PathEdgeList) Equals(ps *Paths, other PathEdgeList) bool {
	return l.edges.EqualsWith(&ps.pathEdges, other.edges, func(a, b PathEdge) bool {
		return a == b
	})
}

// Compare lexicographically orders two edge lists.
func (l PathEdgeList) Compare(ps *Paths, other PathEdgeList) int {
	return l.edges.CompareWith(&ps.pathEdges, other.edges, compareEdges)
}

// Path is a sequence of edges through a stack graph together with the stack
// state reached at its end node.
type Path struct {
	StartNode   arena.Handle[graph.Node]
	EndNode     arena.Handle[graph.Node]
	SymbolStack SymbolStack
	ScopeStack  ScopeStack
	Edges       PathEdgeList
}

// FromNode creates an empty path starting at node, seeding the stacks with
// the node's own stack effect. Paths cannot start at pop nodes.
func FromNode(g *graph.StackGraph, ps *Paths, node arena.Handle[graph.Node]) (Path, bool) {
	symbolStack := NewEmptySymbolStack()
	scopeStack := NewEmptyScopeStack()
	n := g.Node(node)
	switch n.Kind {
	case graph.PushScopedSymbol:
		scope, ok := g.NodeForID(n.ScopeID)
		if !ok {
			return Path{}, false
		}
		attached := scopeStack
		attached.PushFront(ps, scope)
		symbolStack.PushFront(ps, ScopedSymbol{Symbol: n.Symbol, HasScopes: true, Scopes: attached})
	case graph.PushSymbol:
		symbolStack.PushFront(ps, ScopedSymbol{Symbol: n.Symbol})
	case graph.PopSymbol, graph.PopScopedSymbol:
		return Path{}, false
	}
	return Path{
		StartNode:   node,
		EndNode:     node,
		SymbolStack: symbolStack,
		ScopeStack:  scopeStack,
	}, true
}

// IsComplete reports whether the path represents a full name binding: it
// runs from a reference to a definition and both stacks are empty.
func (p *Path) IsComplete(g *graph.StackGraph) bool {
	if !g.Node(p.StartNode).IsReference {
		return false
	}
	if !g.Node(p.EndNode).IsDefinition {
		return false
	}
	return p.SymbolStack.IsEmpty() && p.ScopeStack.IsEmpty()
}

// Shadows reports whether this path shadows other. Not commutative.
func (p *Path) Shadows(ps *Paths, other *Path) bool {
	return p.Edges.Shadows(ps, other.Edges)
}

// Equals reports whether two paths are identical.
func (p *Path) Equals(ps *Paths, other *Path) bool {
	return p.StartNode == other.StartNode &&
		p.EndNode == other.EndNode &&
		p.SymbolStack.Equals(ps, other.SymbolStack) &&
		p.ScopeStack.Equals(ps, other.ScopeStack) &&
		p.Edges.Equals(ps, other.Edges)
}

// Compare canonically orders paths: by endpoints, then stacks, then edges.
func (p *Path) Compare(g *graph.StackGraph, ps *Paths, other *Path) int {
	if c := int(p.StartNode.Index()) - int(other.StartNode.Index()); c != 0 {
		return c
	}
	if c := int(p.EndNode.Index()) - int(other.EndNode.Index()); c != 0 {
		return c
	}
	if c := p.SymbolStack.Compare(g, ps, other.SymbolStack); c != 0 {
		return c
	}
	if c := p.ScopeStack.Compare(ps, other.ScopeStack); c != 0 {
		return c
	}
	return p.Edges.Compare(ps, other.Edges)
}

// Append attempts to extend the path with one edge, advancing the stacks
// according to the sink node's variant. A ResolutionError means the edge is
// not a valid extension; during search such extensions are dropped.
func (p *Path) Append(g *graph.StackGraph, ps *Paths, edge graph.Edge) error {
	if edge.Source != p.EndNode {
		return IncorrectSourceNode
	}

	sink := g.Node(edge.Sink)
	switch sink.Kind {
	case graph.PushSymbol:
		p.SymbolStack.PushFront(ps, ScopedSymbol{Symbol: sink.Symbol})

	case graph.PushScopedSymbol:
		scope, ok := g.NodeForID(sink.ScopeID)
		if !ok {
			return UnknownAttachedScope
		}
		attached := p.ScopeStack
		attached.PushFront(ps, scope)
		p.SymbolStack.PushFront(ps, ScopedSymbol{Symbol: sink.Symbol, HasScopes: true, Scopes: attached})

	case graph.PopSymbol:
		top, ok := p.SymbolStack.PopFront(ps)
		if !ok {
			return EmptySymbolStack
		}
		if top.Symbol != sink.Symbol {
			return IncorrectPoppedSymbol
		}
		if top.HasScopes {
			return UnexpectedAttachedScopeList
		}

	case graph.PopScopedSymbol:
		top, ok := p.SymbolStack.PopFront(ps)
		if !ok {
			return EmptySymbolStack
		}
		if top.Symbol != sink.Symbol {
			return IncorrectPoppedSymbol
		}
		if !top.HasScopes {
			return MissingAttachedScopeList
		}
		p.ScopeStack = top.Scopes

	case graph.DropScopes:
		p.ScopeStack = NewEmptyScopeStack()
	}

	p.EndNode = edge.Sink
	p.Edges.PushBack(ps, PathEdge{
		SourceNodeID: g.Node(edge.Source).ID,
		Precedence:   edge.Precedence,
	})
	return nil
}

// Resolve resolves a jump-to-scope ending by jumping to the top of the scope
// stack. Paths not ending at the jump-to node are left unchanged, so Resolve
// is idempotent for them.
func (p *Path) Resolve(g *graph.StackGraph, ps *Paths) error {
	if !g.Node(p.EndNode).IsJumpTo() {
		return nil
	}
	top, ok := p.ScopeStack.PopFront(ps)
	if !ok {
		return EmptyScopeStack
	}
	p.Edges.PushBack(ps, PathEdge{SourceNodeID: g.Node(p.EndNode).ID})
	p.EndNode = top
	return nil
}

// Extend appends every valid one-edge extension of the path to result.
// Invalid extensions are dropped, not reported; that is how the search
// narrows.
func (p *Path) Extend(g *graph.StackGraph, ps *Paths, result *[]Path) {
	for _, edge := range g.OutgoingEdges(p.EndNode) {
		newPath := *p
		if err := newPath.Append(g, ps, edge); err != nil {
			continue
		}
		if err := newPath.Resolve(g, ps); err != nil {
			continue
		}
		*result = append(*result, newPath)
	}
}

// FindAllPaths finds every path reachable from the starting nodes, calling
// visit for each one. The graph must already be complete; for lazy loading
// use the stitching machinery instead.
func (ps *Paths) FindAllPaths(
	g *graph.StackGraph,
	startingNodes []arena.Handle[graph.Node],
	flag cancel.Flag,
	visit func(*graph.StackGraph, *Paths, Path),
) error {
	detector := cycles.NewDetector(
		func(p Path) cycles.PathKey {
			return cycles.PathKey{StartNode: p.StartNode, EndNode: p.EndNode}
		},
		func(a, b Path) bool {
			return a.Edges.Len() < b.Edges.Len() && a.SymbolStack.Len() <= b.SymbolStack.Len()
		},
	)
	var queue []Path
	for _, node := range startingNodes {
		if path, ok := FromNode(g, ps, node); ok {
			queue = append(queue, path)
		}
	}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if err := flag.Check("find all paths"); err != nil {
			return err
		}
		if !detector.ShouldProcess(path, func(stored Path) int {
			return stored.Compare(g, ps, &path)
		}) {
			continue
		}
		path.Extend(g, ps, &queue)
		visit(g, ps, path)
	}
	return nil
}

// RemoveShadowedPaths removes every path that some other path shadows,
// according to the precedence values of their edges. Quadratic; the flag is
// checked each outer iteration.
func (ps *Paths) RemoveShadowedPaths(allPaths *[]Path, flag cancel.Flag) error {
	in := *allPaths
	keep := make([]bool, len(in))
	for i := range keep {
		keep[i] = true
	}
	for i := range in {
		if err := flag.Check("remove shadowed paths"); err != nil {
			return err
		}
		for j := range in {
			if i == j || !keep[j] {
				continue
			}
			if in[i].Shadows(ps, &in[j]) {
				keep[j] = false
			}
		}
	}
	out := in[:0]
	for i := range in {
		if keep[i] {
			out = append(out, in[i])
		}
	}
	*allPaths = out
	return nil
}
