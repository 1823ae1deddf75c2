package tests

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tangle/internal/cancel"
	"github.com/agentic-research/tangle/internal/graph"
	"github.com/agentic-research/tangle/internal/partial"
	"github.com/agentic-research/tangle/internal/position"
	"github.com/agentic-research/tangle/internal/storage"
)

func spanAt(line, startCol, endCol uint32) position.Span {
	return position.Span{
		Start: position.Position{Line: line, Column: position.Offset{UTF8: startCol, UTF16: startCol, Grapheme: startCol}},
		End:   position.Position{Line: line, Column: position.Offset{UTF8: endCol, UTF16: endCol, Grapheme: endCol}},
	}
}

// indexAll computes and stores every file's artifacts, the way the index
// command does.
func indexAll(t *testing.T, store *storage.Store, g *graph.StackGraph, pp *partial.PartialPaths) {
	t.Helper()
	g.ForEachFile(func(file graph.FileHandle) {
		var found []partial.PartialPath
		err := pp.FindPartialPathsInFile(g, file, cancel.None{},
			func(_ *graph.StackGraph, _ *partial.PartialPaths, p *partial.PartialPath) {
				found = append(found, *p)
			})
		require.NoError(t, err)
		require.NoError(t, store.StoreFile(g, pp, file, "tag", found))
	})
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "tangle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSingleFileLocalBinding(t *testing.T) {
	store := openStore(t)
	g := graph.New()
	pp := partial.NewPartialPaths()

	file, err := g.AddFile("t")
	require.NoError(t, err)
	x := g.AddSymbol("x")
	ref, err := g.AddPushSymbolNode(graph.NewNodeID(file, 1), x, true)
	require.NoError(t, err)
	g.SourceInfoPtr(ref).Span = spanAt(0, 0, 1)
	def, err := g.AddPopSymbolNode(graph.NewNodeID(file, 2), x, true)
	require.NoError(t, err)
	g.SourceInfoPtr(def).Span = spanAt(1, 0, 1)
	g.AddEdge(ref, def, 0)

	indexAll(t, store, g, pp)

	q := storage.NewQuerier(store)
	results, err := q.Definitions("t", 0, 0, cancel.None{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Definitions, 1)
	assert.Equal(t, "t", results[0].Definitions[0].File)
	assert.Equal(t, uint32(1), results[0].Definitions[0].Span.Start.Line)
}

func TestCrossFileImport(t *testing.T) {
	store := openStore(t)
	g := graph.New()
	pp := partial.NewPartialPaths()

	fileA, err := g.AddFile("a")
	require.NoError(t, err)
	fileB, err := g.AddFile("b")
	require.NoError(t, err)
	a := g.AddSymbol("a")

	defA, err := g.AddPopSymbolNode(graph.NewNodeID(fileA, 1), a, true)
	require.NoError(t, err)
	g.SourceInfoPtr(defA).Span = spanAt(0, 0, 1)
	refA, err := g.AddPushSymbolNode(graph.NewNodeID(fileB, 1), a, true)
	require.NoError(t, err)
	g.SourceInfoPtr(refA).Span = spanAt(4, 7, 8)
	g.AddEdge(refA, g.RootNode(), 0)
	g.AddEdge(g.RootNode(), defA, 0)

	indexAll(t, store, g, pp)

	q := storage.NewQuerier(store)
	results, err := q.Definitions("b", 4, 7, cancel.None{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Definitions, 1)
	assert.Equal(t, "a", results[0].Definitions[0].File)
}

func TestScopedSymbolRoundTrip(t *testing.T) {
	store := openStore(t)
	g := graph.New()
	pp := partial.NewPartialPaths()

	file, err := g.AddFile("t")
	require.NoError(t, err)
	m := g.AddSymbol("m")

	scopeID := graph.NewNodeID(file, 10)
	_, err = g.AddScopeNode(scopeID, true)
	require.NoError(t, err)
	pushScoped, err := g.AddPushScopedSymbolNode(graph.NewNodeID(file, 11), m, scopeID, true)
	require.NoError(t, err)
	g.SourceInfoPtr(pushScoped).Span = spanAt(0, 0, 1)
	popScoped, err := g.AddPopScopedSymbolNode(graph.NewNodeID(file, 12), m, true)
	require.NoError(t, err)
	g.SourceInfoPtr(popScoped).Span = spanAt(3, 0, 1)
	g.AddEdge(pushScoped, popScoped, 0)

	indexAll(t, store, g, pp)

	q := storage.NewQuerier(store)
	results, err := q.Definitions("t", 0, 0, cancel.None{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Definitions, 1)
	assert.Equal(t, uint32(3), results[0].Definitions[0].Span.Start.Line)
}

func TestShadowedImports(t *testing.T) {
	// Two root fragments resolve "x" to distinct definitions with edge
	// precedences 1 and 0 on an otherwise identical prefix; only the
	// precedence-1 definition survives.
	store := openStore(t)
	g := graph.New()
	pp := partial.NewPartialPaths()

	fileMain, err := g.AddFile("main")
	require.NoError(t, err)
	fileHigh, err := g.AddFile("high")
	require.NoError(t, err)
	fileLow, err := g.AddFile("low")
	require.NoError(t, err)
	x := g.AddSymbol("x")

	refX, err := g.AddPushSymbolNode(graph.NewNodeID(fileMain, 1), x, true)
	require.NoError(t, err)
	g.SourceInfoPtr(refX).Span = spanAt(0, 0, 1)
	defHigh, err := g.AddPopSymbolNode(graph.NewNodeID(fileHigh, 1), x, true)
	require.NoError(t, err)
	g.SourceInfoPtr(defHigh).Span = spanAt(0, 0, 1)
	defLow, err := g.AddPopSymbolNode(graph.NewNodeID(fileLow, 1), x, true)
	require.NoError(t, err)
	g.SourceInfoPtr(defLow).Span = spanAt(0, 0, 1)

	g.AddEdge(refX, g.RootNode(), 0)
	g.AddEdge(g.RootNode(), defHigh, 1)
	g.AddEdge(g.RootNode(), defLow, 0)

	indexAll(t, store, g, pp)

	q := storage.NewQuerier(store)
	results, err := q.Definitions("main", 0, 0, cancel.None{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Definitions, 1, "the lower-precedence definition is shadowed")
	assert.Equal(t, "high", results[0].Definitions[0].File)
}

func TestCycleCutoffTerminates(t *testing.T) {
	// A re-export cycle: looking up "x" in main keeps rewriting through the
	// cycle without ever reaching a definition. The query must terminate.
	store := openStore(t)
	g := graph.New()
	pp := partial.NewPartialPaths()

	fileMain, err := g.AddFile("main")
	require.NoError(t, err)
	fileLoop, err := g.AddFile("loop")
	require.NoError(t, err)
	x := g.AddSymbol("x")
	m := g.AddSymbol("m")

	refX, err := g.AddPushSymbolNode(graph.NewNodeID(fileMain, 1), x, true)
	require.NoError(t, err)
	g.SourceInfoPtr(refX).Span = spanAt(0, 0, 1)
	g.AddEdge(refX, g.RootNode(), 0)

	// root -> push m -> root: every trip around grows the symbol stack.
	pushM, err := g.AddPushSymbolNode(graph.NewNodeID(fileLoop, 1), m, false)
	require.NoError(t, err)
	g.AddEdge(g.RootNode(), pushM, 0)
	g.AddEdge(pushM, g.RootNode(), 0)

	indexAll(t, store, g, pp)

	q := storage.NewQuerier(store)
	results, err := q.Definitions("main", 0, 0, cancel.None{})
	require.NoError(t, err, "the search must terminate despite the cycle")
	assert.Empty(t, results)
}

func TestDropScopesClearsContext(t *testing.T) {
	// A drop-scopes node between a scoped pop and a jump-to makes the jump
	// unresolvable: that continuation is a dead end rather than a crash,
	// and the definition itself still resolves.
	store := openStore(t)
	g := graph.New()
	pp := partial.NewPartialPaths()

	file, err := g.AddFile("t")
	require.NoError(t, err)
	m := g.AddSymbol("m")

	scopeID := graph.NewNodeID(file, 1)
	_, err = g.AddScopeNode(scopeID, true)
	require.NoError(t, err)
	pushScoped, err := g.AddPushScopedSymbolNode(graph.NewNodeID(file, 2), m, scopeID, true)
	require.NoError(t, err)
	g.SourceInfoPtr(pushScoped).Span = spanAt(0, 0, 1)
	popScoped, err := g.AddPopScopedSymbolNode(graph.NewNodeID(file, 3), m, true)
	require.NoError(t, err)
	g.SourceInfoPtr(popScoped).Span = spanAt(1, 0, 1)
	drop, err := g.AddDropScopesNode(graph.NewNodeID(file, 4))
	require.NoError(t, err)

	g.AddEdge(pushScoped, popScoped, 0)
	g.AddEdge(popScoped, drop, 0)
	g.AddEdge(drop, g.JumpToNode(), 0)

	indexAll(t, store, g, pp)

	q := storage.NewQuerier(store)
	results, err := q.Definitions("t", 0, 0, cancel.None{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Definitions, 1)
	assert.Equal(t, uint32(1), results[0].Definitions[0].Span.Start.Line)
}

func TestMultipleReferencesAtSamePosition(t *testing.T) {
	store := openStore(t)
	g := graph.New()
	pp := partial.NewPartialPaths()

	file, err := g.AddFile("t")
	require.NoError(t, err)
	x := g.AddSymbol("x")
	y := g.AddSymbol("y")

	refX, err := g.AddPushSymbolNode(graph.NewNodeID(file, 1), x, true)
	require.NoError(t, err)
	g.SourceInfoPtr(refX).Span = spanAt(0, 0, 5)
	refY, err := g.AddPushSymbolNode(graph.NewNodeID(file, 2), y, true)
	require.NoError(t, err)
	g.SourceInfoPtr(refY).Span = spanAt(0, 0, 5)
	defX, err := g.AddPopSymbolNode(graph.NewNodeID(file, 3), x, true)
	require.NoError(t, err)
	g.SourceInfoPtr(defX).Span = spanAt(1, 0, 1)
	defY, err := g.AddPopSymbolNode(graph.NewNodeID(file, 4), y, true)
	require.NoError(t, err)
	g.SourceInfoPtr(defY).Span = spanAt(2, 0, 1)
	g.AddEdge(refX, defX, 0)
	g.AddEdge(refY, defY, 0)

	indexAll(t, store, g, pp)

	q := storage.NewQuerier(store)
	results, err := q.Definitions("t", 0, 2, cancel.None{})
	require.NoError(t, err)
	assert.Len(t, results, 2, "both references at the position resolve")
}
