package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tangle/internal/cancel"
	"github.com/agentic-research/tangle/internal/graph"
)

// fixture builds a one-file graph with a reference to "x" wired straight to
// its definition.
type fixture struct {
	g    *graph.StackGraph
	ps   *Paths
	file graph.FileHandle
	ref  graph.NodeHandle
	def  graph.NodeHandle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g := graph.New()
	file, err := g.AddFile("test")
	require.NoError(t, err)
	x := g.AddSymbol("x")
	ref, err := g.AddPushSymbolNode(graph.NewNodeID(file, 1), x, true)
	require.NoError(t, err)
	def, err := g.AddPopSymbolNode(graph.NewNodeID(file, 2), x, true)
	require.NoError(t, err)
	g.AddEdge(ref, def, 0)
	return &fixture{g: g, ps: NewPaths(), file: file, ref: ref, def: def}
}

func TestFromNode_SeedsSymbolStack(t *testing.T) {
	f := newFixture(t)

	path, ok := FromNode(f.g, f.ps, f.ref)
	require.True(t, ok)
	assert.Equal(t, f.ref, path.StartNode)
	assert.Equal(t, f.ref, path.EndNode)
	assert.Equal(t, 1, path.SymbolStack.Len())
	assert.True(t, path.ScopeStack.IsEmpty())

	_, ok = FromNode(f.g, f.ps, f.def)
	assert.False(t, ok, "paths cannot start at pop nodes")
}

func TestAppend_PopCompletesBinding(t *testing.T) {
	f := newFixture(t)
	path, _ := FromNode(f.g, f.ps, f.ref)

	edge := f.g.OutgoingEdges(f.ref)[0]
	require.NoError(t, path.Append(f.g, f.ps, edge))
	assert.Equal(t, f.def, path.EndNode)
	assert.True(t, path.SymbolStack.IsEmpty())
	assert.True(t, path.IsComplete(f.g))
	assert.Equal(t, 1, path.Edges.Len())
}

func TestAppend_WrongSourceIsCallerBug(t *testing.T) {
	f := newFixture(t)
	path, _ := FromNode(f.g, f.ps, f.ref)

	badEdge := graph.Edge{Source: f.def, Sink: f.ref}
	assert.ErrorIs(t, path.Append(f.g, f.ps, badEdge), error(IncorrectSourceNode))
}

func TestAppend_PopMismatches(t *testing.T) {
	g := graph.New()
	file, _ := g.AddFile("test")
	x := g.AddSymbol("x")
	y := g.AddSymbol("y")
	ps := NewPaths()

	ref, _ := g.AddPushSymbolNode(graph.NewNodeID(file, 1), x, true)
	popY, _ := g.AddPopSymbolNode(graph.NewNodeID(file, 2), y, true)
	popScoped, _ := g.AddPopScopedSymbolNode(graph.NewNodeID(file, 3), x, true)
	scope, _ := g.AddScopeNode(graph.NewNodeID(file, 4), false)
	g.AddEdge(ref, popY, 0)
	g.AddEdge(ref, popScoped, 0)
	g.AddEdge(scope, popY, 0)

	path, _ := FromNode(g, ps, ref)
	wrongSymbol := path
	assert.ErrorIs(t, wrongSymbol.Append(g, ps, graph.Edge{Source: ref, Sink: popY}), error(IncorrectPoppedSymbol))

	missingScopes := path
	assert.ErrorIs(t, missingScopes.Append(g, ps, graph.Edge{Source: ref, Sink: popScoped}), error(MissingAttachedScopeList))

	emptyStack, _ := FromNode(g, ps, scope)
	assert.ErrorIs(t, emptyStack.Append(g, ps, graph.Edge{Source: scope, Sink: popY}), error(EmptySymbolStack))
}

// scopedFixture builds a scoped-symbol round trip: a reference pushing a
// scoped symbol capturing exported scope S, popped at the target, which then
// jumps to S.
type scopedFixture struct {
	g          *graph.StackGraph
	ps         *Paths
	scope      graph.NodeHandle
	pushScoped graph.NodeHandle
	popScoped  graph.NodeHandle
}

func newScopedFixture(t *testing.T) *scopedFixture {
	t.Helper()
	g := graph.New()
	file, err := g.AddFile("test")
	require.NoError(t, err)
	m := g.AddSymbol("m")

	scopeID := graph.NewNodeID(file, 10)
	scope, err := g.AddScopeNode(scopeID, true)
	require.NoError(t, err)
	pushScoped, err := g.AddPushScopedSymbolNode(graph.NewNodeID(file, 11), m, scopeID, true)
	require.NoError(t, err)
	popScoped, err := g.AddPopScopedSymbolNode(graph.NewNodeID(file, 12), m, true)
	require.NoError(t, err)

	g.AddEdge(pushScoped, popScoped, 0)
	g.AddEdge(popScoped, g.JumpToNode(), 0)
	return &scopedFixture{g: g, ps: NewPaths(), scope: scope, pushScoped: pushScoped, popScoped: popScoped}
}

func TestScopedSymbol_TransfersScopeStack(t *testing.T) {
	f := newScopedFixture(t)

	path, ok := FromNode(f.g, f.ps, f.pushScoped)
	require.True(t, ok)

	// Pop the scoped symbol: the attached scope list becomes the new scope
	// stack, containing exactly the captured scope.
	require.NoError(t, path.Append(f.g, f.ps, graph.Edge{Source: f.pushScoped, Sink: f.popScoped}))
	assert.True(t, path.SymbolStack.IsEmpty())
	require.Equal(t, 1, path.ScopeStack.Len())
	top, ok := path.ScopeStack.PopFront(f.ps)
	require.True(t, ok)
	assert.Equal(t, f.scope, top)
}

func TestResolve_JumpsToTopOfScopeStack(t *testing.T) {
	f := newScopedFixture(t)

	path, _ := FromNode(f.g, f.ps, f.pushScoped)
	require.NoError(t, path.Append(f.g, f.ps, graph.Edge{Source: f.pushScoped, Sink: f.popScoped}))
	require.NoError(t, path.Append(f.g, f.ps, graph.Edge{Source: f.popScoped, Sink: f.g.JumpToNode()}))

	require.NoError(t, path.Resolve(f.g, f.ps))
	assert.Equal(t, f.scope, path.EndNode)
	assert.True(t, path.ScopeStack.IsEmpty())

	// Resolve is idempotent once the path no longer ends at jump-to.
	before := path
	require.NoError(t, path.Resolve(f.g, f.ps))
	assert.True(t, path.Equals(f.ps, &before))
}

func TestResolve_EmptyScopeStackFails(t *testing.T) {
	g := graph.New()
	file, _ := g.AddFile("test")
	x := g.AddSymbol("x")
	ps := NewPaths()
	ref, _ := g.AddPushSymbolNode(graph.NewNodeID(file, 1), x, true)
	g.AddEdge(ref, g.JumpToNode(), 0)

	path, _ := FromNode(g, ps, ref)
	require.NoError(t, path.Append(g, ps, graph.Edge{Source: ref, Sink: g.JumpToNode()}))
	assert.ErrorIs(t, path.Resolve(g, ps), error(EmptyScopeStack))
}

func TestAppend_Deterministic(t *testing.T) {
	f := newFixture(t)
	edge := f.g.OutgoingEdges(f.ref)[0]

	p1, _ := FromNode(f.g, f.ps, f.ref)
	require.NoError(t, p1.Append(f.g, f.ps, edge))
	p2, _ := FromNode(f.g, f.ps, f.ref)
	require.NoError(t, p2.Append(f.g, f.ps, edge))

	assert.True(t, p1.Equals(f.ps, &p2))
	assert.Zero(t, p1.Compare(f.g, f.ps, &p2))
}

func TestFindAllPaths_SingleFileBinding(t *testing.T) {
	f := newFixture(t)

	var complete []Path
	err := f.ps.FindAllPaths(f.g, []graph.NodeHandle{f.ref}, cancel.None{}, func(g *graph.StackGraph, ps *Paths, p Path) {
		if p.IsComplete(g) {
			complete = append(complete, p)
		}
	})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, f.def, complete[0].EndNode)
}

func TestFindAllPaths_Cancellation(t *testing.T) {
	f := newFixture(t)
	var flag cancel.AtomicFlag
	flag.Cancel()
	err := f.ps.FindAllPaths(f.g, []graph.NodeHandle{f.ref}, &flag, func(*graph.StackGraph, *Paths, Path) {})
	assert.Error(t, err)
}

func TestRemoveShadowedPaths(t *testing.T) {
	// Two edges with the same source and different precedences; the
	// higher-precedence path shadows the lower one.
	g := graph.New()
	file, _ := g.AddFile("test")
	x := g.AddSymbol("x")
	ps := NewPaths()

	ref, _ := g.AddPushSymbolNode(graph.NewNodeID(file, 1), x, true)
	def1, _ := g.AddPopSymbolNode(graph.NewNodeID(file, 2), x, true)
	def2, _ := g.AddPopSymbolNode(graph.NewNodeID(file, 3), x, true)
	g.AddEdge(ref, def1, 1)
	g.AddEdge(ref, def2, 0)

	var complete []Path
	err := ps.FindAllPaths(g, []graph.NodeHandle{ref}, cancel.None{}, func(gr *graph.StackGraph, p *Paths, path Path) {
		if path.IsComplete(gr) {
			complete = append(complete, path)
		}
	})
	require.NoError(t, err)
	require.Len(t, complete, 2)

	require.NoError(t, ps.RemoveShadowedPaths(&complete, cancel.None{}))
	require.Len(t, complete, 1)
	assert.Equal(t, def1, complete[0].EndNode)
}
