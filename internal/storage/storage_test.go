package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tangle/internal/cancel"
	"github.com/agentic-research/tangle/internal/graph"
	"github.com/agentic-research/tangle/internal/partial"
	"github.com/agentic-research/tangle/internal/position"
)

// world is the cross-file import scenario with source spans, indexed into a
// fresh store.
type world struct {
	store *Store
	g     *graph.StackGraph
	pp    *partial.PartialPaths
}

func spanAt(line, startCol, endCol uint32) position.Span {
	return position.Span{
		Start: position.Position{Line: line, Column: position.Offset{UTF8: startCol, UTF16: startCol, Grapheme: startCol}},
		End:   position.Position{Line: line, Column: position.Offset{UTF8: endCol, UTF16: endCol, Grapheme: endCol}},
	}
}

func newWorld(t *testing.T) *world {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tangle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	g := graph.New()
	pp := partial.NewPartialPaths()
	fileA, err := g.AddFile("a.py")
	require.NoError(t, err)
	fileB, err := g.AddFile("b.py")
	require.NoError(t, err)
	fileC, err := g.AddFile("c.py")
	require.NoError(t, err)
	a := g.AddSymbol("a")
	c := g.AddSymbol("c")

	// b.py references "a", defined in a.py. c.py is unrelated.
	defA, err := g.AddPopSymbolNode(graph.NewNodeID(fileA, 1), a, true)
	require.NoError(t, err)
	g.SourceInfoPtr(defA).Span = spanAt(0, 0, 1)
	refA, err := g.AddPushSymbolNode(graph.NewNodeID(fileB, 1), a, true)
	require.NoError(t, err)
	g.SourceInfoPtr(refA).Span = spanAt(2, 7, 8)
	defC, err := g.AddPopSymbolNode(graph.NewNodeID(fileC, 1), c, true)
	require.NoError(t, err)
	g.SourceInfoPtr(defC).Span = spanAt(0, 0, 1)

	g.AddEdge(refA, g.RootNode(), 0)
	g.AddEdge(g.RootNode(), defA, 0)
	g.AddEdge(g.RootNode(), defC, 0)

	for name, file := range map[string]graph.FileHandle{"a.py": fileA, "b.py": fileB, "c.py": fileC} {
		var found []partial.PartialPath
		err := pp.FindPartialPathsInFile(g, file, cancel.None{},
			func(_ *graph.StackGraph, _ *partial.PartialPaths, p *partial.PartialPath) {
				found = append(found, *p)
			})
		require.NoError(t, err)
		require.NoError(t, store.StoreFile(g, pp, file, "tag-"+name, found))
	}
	return &world{store: store, g: g, pp: pp}
}

func TestStatusForFile(t *testing.T) {
	w := newWorld(t)

	status, err := w.store.StatusForFile("a.py", "tag-a.py")
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, status)

	status, err = w.store.StatusForFile("a.py", "other-tag")
	require.NoError(t, err)
	assert.Equal(t, StatusStale, status)

	status, err = w.store.StatusForFile("nope.py", "tag")
	require.NoError(t, err)
	assert.Equal(t, StatusMissing, status)
}

func TestListAndDelete(t *testing.T) {
	w := newWorld(t)

	entries, err := w.store.ListFiles()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a.py", entries[0].File)

	require.NoError(t, w.store.DeleteFile("c.py"))
	entries, err = w.store.ListFiles()
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, w.store.DeleteAll())
	entries, err = w.store.ListFiles()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReindexReplacesArtifacts(t *testing.T) {
	w := newWorld(t)
	fileA, ok := w.g.GetFile("a.py")
	require.True(t, ok)

	// Re-store a.py with no partial paths; the old rows must be gone.
	require.NoError(t, w.store.StoreFile(w.g, w.pp, fileA, "tag-2", nil))

	status, err := w.store.StatusForFile("a.py", "tag-2")
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, status)

	var count int
	err = w.store.db.QueryRow("SELECT COUNT(*) FROM root_paths WHERE file = 'a.py'").Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReader_LoadsGraphOnce(t *testing.T) {
	w := newWorld(t)
	r := NewReader(w.store)

	require.NoError(t, r.LoadGraphForFile("b.py"))
	require.NoError(t, r.LoadGraphForFile("b.py"))

	_, ok := r.Graph().GetFile("b.py")
	assert.True(t, ok)
	_, ok = r.Graph().GetFile("a.py")
	assert.False(t, ok, "a.py is loaded lazily, not at graph load time")

	err := r.LoadGraphForFile("missing.py")
	assert.ErrorIs(t, err, ErrFileNotIndexed)
}

func TestReader_ResolvesAcrossFilesLazily(t *testing.T) {
	w := newWorld(t)
	r := NewReader(w.store)
	require.NoError(t, r.LoadGraphForFile("b.py"))

	fileB, ok := r.Graph().GetFile("b.py")
	require.True(t, ok)
	refA, ok := r.Graph().NodeForID(graph.NewNodeID(fileB, 1))
	require.True(t, ok)

	var complete []partial.PartialPath
	err := r.FindAllCompletePartialPaths([]graph.NodeHandle{refA}, cancel.None{},
		func(_ *graph.StackGraph, _ *partial.PartialPaths, p *partial.PartialPath) {
			complete = append(complete, *p)
		})
	require.NoError(t, err)
	require.Len(t, complete, 1)

	end := r.Graph().Node(complete[0].EndNode)
	require.False(t, end.File().IsNil())
	assert.Equal(t, "a.py", r.Graph().File(end.File()).Name())

	// The definition's file was pulled in by the search; the unrelated file
	// never was.
	_, ok = r.Graph().GetFile("a.py")
	assert.True(t, ok)
	_, ok = r.Graph().GetFile("c.py")
	assert.False(t, ok, "files off every surviving path stay unloaded")
}

func TestQuerier_Definitions(t *testing.T) {
	w := newWorld(t)
	q := NewQuerier(w.store)

	results, err := q.Definitions("b.py", 2, 7, cancel.None{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.py", results[0].ReferenceFile)
	assert.Equal(t, uint32(2), results[0].ReferenceSpan.Start.Line)
	require.Len(t, results[0].Definitions, 1)
	assert.Equal(t, "a.py", results[0].Definitions[0].File)
	assert.Equal(t, uint32(0), results[0].Definitions[0].Span.Start.Line)
}

func TestQuerier_NoReferenceAtPosition(t *testing.T) {
	w := newWorld(t)
	q := NewQuerier(w.store)

	_, err := q.Definitions("b.py", 9, 9, cancel.None{})
	assert.ErrorIs(t, err, ErrNoReferencesAtPosition)
}

func TestQuerier_UnindexedFile(t *testing.T) {
	w := newWorld(t)
	q := NewQuerier(w.store)

	_, err := q.Definitions("missing.py", 0, 0, cancel.None{})
	assert.ErrorIs(t, err, ErrFileNotIndexed)
}
