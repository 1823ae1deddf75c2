package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tangle/api"
	"github.com/agentic-research/tangle/internal/storage"
)

// writeGraphJSON writes a serialized two-file import graph the way a graph
// construction front end would hand it to us.
func writeGraphJSON(t *testing.T, dir string) string {
	t.Helper()
	span := func(line uint32) api.Span {
		return api.Span{
			Start: api.Position{Line: line, Column: api.Offset{UTF8: 0, UTF16: 0, Grapheme: 0}},
			End:   api.Position{Line: line, Column: api.Offset{UTF8: 1, UTF16: 1, Grapheme: 1}},
		}
	}
	serialized := api.StackGraph{
		Files: []string{"a.py", "b.py"},
		Nodes: []api.Node{
			{
				Type: api.NodeTypePopSymbol, ID: api.NodeID{File: "a.py", LocalID: 1},
				Symbol: "a", IsDefinition: true,
				SourceInfo: &api.SourceInfo{Span: span(0)},
			},
			{
				Type: api.NodeTypePushSymbol, ID: api.NodeID{File: "b.py", LocalID: 1},
				Symbol: "a", IsReference: true,
				SourceInfo: &api.SourceInfo{Span: span(2)},
			},
		},
		Edges: []api.Edge{
			{Source: api.NodeID{File: "b.py", LocalID: 1}, Sink: api.NodeID{LocalID: 1}},
			{Source: api.NodeID{LocalID: 1}, Sink: api.NodeID{File: "a.py", LocalID: 1}},
		},
	}
	blob, err := json.Marshal(&serialized)
	require.NoError(t, err)
	path := filepath.Join(dir, "graph.json")
	require.NoError(t, os.WriteFile(path, blob, 0o644))
	return path
}

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestIndexQueryCleanRoundTrip(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tangle.db")
	graphJSON := writeGraphJSON(t, dir)

	require.NoError(t, runCommand(t, "--db", db, "index", graphJSON))

	store, err := storage.Open(db)
	require.NoError(t, err)
	entries, err := store.ListFiles()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	status, err := store.StatusForFile("a.py", entries[0].Tag)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusIndexed, status)
	require.NoError(t, store.Close())

	// The reference at b.py:3:1 (1-based) resolves into a.py.
	require.NoError(t, runCommand(t, "--db", db, "query", "definition", "b.py:3:1"))

	// Indexing again without --force skips up-to-date files.
	require.NoError(t, runCommand(t, "--db", db, "index", graphJSON))

	require.NoError(t, runCommand(t, "--db", db, "clean", "--all"))
	store, err = storage.Open(db)
	require.NoError(t, err)
	entries, err = store.ListFiles()
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.NoError(t, store.Close())
}

func TestQueryMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tangle.db")

	err := runCommand(t, "--db", db, "query", "definition", "nope.py:1:1")
	assert.Error(t, err)
}

func TestParseSourcePosition(t *testing.T) {
	file, line, column, err := parseSourcePosition("src/main.py:12:5")
	require.NoError(t, err)
	assert.Equal(t, "src/main.py", file)
	assert.Equal(t, uint32(11), line)
	assert.Equal(t, uint32(4), column)

	_, _, _, err = parseSourcePosition("main.py:12")
	assert.Error(t, err)
	_, _, _, err = parseSourcePosition("main.py:0:1")
	assert.Error(t, err)
}
