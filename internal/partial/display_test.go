package partial

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tangle/internal/cancel"
	"github.com/agentic-research/tangle/internal/graph"
)

func TestDisplay_ImportFragments(t *testing.T) {
	f := newImportFixture(t)

	inA := discover(t, f.g, f.pp, f.fileA)
	require.Len(t, inA, 1)
	assert.Equal(t,
		"<a,%1> ($1) [root] -> [a(1) definition a] <%1> ($1)",
		inA[0].Display(f.g, f.pp))

	inB := discover(t, f.g, f.pp, f.fileB)
	require.Len(t, inB, 1)
	assert.Equal(t,
		"<%1> ($1) [b(1) reference a] -> [root] <a,%1> ($1)",
		inB[0].Display(f.g, f.pp))
}

func TestDisplay_StitchedBinding(t *testing.T) {
	f := newImportFixture(t)
	inA := discover(t, f.g, f.pp, f.fileA)
	inB := discover(t, f.g, f.pp, f.fileB)

	joined := inB[0]
	require.NoError(t, joined.Concatenate(f.g, f.pp, &inA[0]))
	assert.Equal(t,
		"<%2> ($2) [b(1) reference a] -> [a(1) definition a] <%2> ($2)",
		joined.Display(f.g, f.pp))
}

func TestDisplay_ScopedSymbols(t *testing.T) {
	// A scoped reference whose postcondition carries the captured scope.
	g := graph.New()
	pp := NewPartialPaths()
	file, err := g.AddFile("t")
	require.NoError(t, err)
	m := g.AddSymbol("m")
	scopeID := graph.NewNodeID(file, 10)
	_, err = g.AddScopeNode(scopeID, true)
	require.NoError(t, err)
	pushScoped, err := g.AddPushScopedSymbolNode(graph.NewNodeID(file, 11), m, scopeID, true)
	require.NoError(t, err)
	popScoped, err := g.AddPopScopedSymbolNode(graph.NewNodeID(file, 12), m, true)
	require.NoError(t, err)
	g.AddEdge(pushScoped, popScoped, 0)

	var rendered []string
	err = pp.FindPartialPathsInFile(g, file, cancel.None{},
		func(_ *graph.StackGraph, _ *PartialPaths, p *PartialPath) {
			rendered = append(rendered, p.Display(g, pp))
		})
	require.NoError(t, err)
	sort.Strings(rendered)
	require.Len(t, rendered, 1)
	assert.Equal(t,
		"<%1> ($1) [t(11) scoped reference m] -> [t(12) scoped definition m] <%1> ([t(10) exported scope],$1)",
		rendered[0])
}
