package storage

import (
	"encoding/json"
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/tangle/api"
	"github.com/agentic-research/tangle/internal/cancel"
	"github.com/agentic-research/tangle/internal/graph"
	"github.com/agentic-research/tangle/internal/partial"
	"github.com/agentic-research/tangle/internal/stitch"
)

// Reader wraps a store with an in-memory stack graph, partial path arenas,
// and a stitching database, loading artifacts on demand: a file's subgraph
// once per file, file-keyed partial paths once per start node, and
// root-keyed partial paths once per symbol stack prefix.
type Reader struct {
	store    *Store
	graph    *graph.StackGraph
	partials *partial.PartialPaths
	db       *stitch.Database

	loadedGraphs    map[string]bool
	loadedNodePaths *roaring.Bitmap // node handles whose file paths are in
	loadedRootPaths map[string]bool // symbol stack key prefixes already in
}

// NewReader returns a reader over store with nothing loaded yet.
func NewReader(store *Store) *Reader {
	return &Reader{
		store:           store,
		graph:           graph.New(),
		partials:        partial.NewPartialPaths(),
		db:              stitch.NewDatabase(),
		loadedGraphs:    make(map[string]bool),
		loadedNodePaths: roaring.New(),
		loadedRootPaths: make(map[string]bool),
	}
}

// Graph returns the reader's stack graph.
func (r *Reader) Graph() *graph.StackGraph {
	return r.graph
}

// Partials returns the reader's partial path arenas.
func (r *Reader) Partials() *partial.PartialPaths {
	return r.partials
}

// Database returns the reader's stitching database.
func (r *Reader) Database() *stitch.Database {
	return r.db
}

// LoadGraphForFile loads the stored subgraph for file into the reader's
// graph, once. Unindexed files fail with ErrFileNotIndexed.
func (r *Reader) LoadGraphForFile(file string) error {
	if r.loadedGraphs[file] {
		return nil
	}
	var blob []byte
	err := r.store.db.QueryRow("SELECT json FROM graphs WHERE file = ?", file).Scan(&blob)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFileNotIndexed, file)
	}
	r.loadedGraphs[file] = true
	var serialized api.StackGraph
	if err := json.Unmarshal(blob, &serialized); err != nil {
		return fmt.Errorf("corrupt graph for %s: %w", file, err)
	}
	if err := serialized.LoadInto(r.graph); err != nil {
		return fmt.Errorf("load graph for %s: %w", file, err)
	}
	return nil
}

// loadPartialPathBlob resolves one serialized partial path, first loading
// the subgraph of every file it references, and installs it in the
// database.
func (r *Reader) loadPartialPathBlob(blob []byte) error {
	var serialized api.PartialPath
	if err := json.Unmarshal(blob, &serialized); err != nil {
		return fmt.Errorf("corrupt partial path: %w", err)
	}
	var loadErr error
	serialized.ForEachFile(func(file string) {
		if loadErr == nil {
			loadErr = r.LoadGraphForFile(file)
		}
	})
	if loadErr != nil {
		return loadErr
	}
	path, err := serialized.ToPartialPath(r.graph, r.partials)
	if err != nil {
		return err
	}
	r.db.AddPartialPath(r.graph, r.partials, path)
	return nil
}

// loadPathsForNode loads the file-keyed partial paths starting at node,
// once per node.
func (r *Reader) loadPathsForNode(node graph.NodeHandle) error {
	if !r.loadedNodePaths.CheckedAdd(node.Index()) {
		return nil
	}
	id := r.graph.Node(node).ID
	if id.File().IsNil() {
		return nil
	}
	file := r.graph.File(id.File()).Name()

	rows, err := r.store.db.Query(
		"SELECT json FROM file_paths WHERE file = ? AND local_id = ?",
		file, id.LocalID(),
	)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	var blobs [][]byte
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return err
		}
		blobs = append(blobs, blob)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, blob := range blobs {
		if err := r.loadPartialPathBlob(blob); err != nil {
			return err
		}
	}
	return nil
}

// loadPathsForRoot loads the root-keyed partial paths for every prefix of
// the given symbol stack, once per prefix.
func (r *Reader) loadPathsForRoot(symbolStack partial.PartialSymbolStack) error {
	for _, prefix := range symbolStackKeyPrefixes(r.graph, r.partials, symbolStack) {
		if r.loadedRootPaths[prefix] {
			continue
		}
		r.loadedRootPaths[prefix] = true

		rows, err := r.store.db.Query("SELECT json FROM root_paths WHERE symbol_stack = ?", prefix)
		if err != nil {
			return err
		}
		var blobs [][]byte
		for rows.Next() {
			var blob []byte
			if err := rows.Scan(&blob); err != nil {
				_ = rows.Close()
				return err
			}
			blobs = append(blobs, blob)
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return err
		}
		for _, blob := range blobs {
			if err := r.loadPartialPathBlob(blob); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadPartialPathExtensions loads everything the stitcher might extend path
// with in the next phase: file paths if it ends at a node, root paths for
// its postcondition if it ends at the root.
func (r *Reader) LoadPartialPathExtensions(path *partial.PartialPath) error {
	end := r.graph.Node(path.EndNode)
	switch {
	case !end.File().IsNil():
		return r.loadPathsForNode(path.EndNode)
	case end.IsRoot():
		return r.loadPathsForRoot(path.SymbolStackPostcondition)
	default:
		return nil
	}
}

// FindAllCompletePartialPaths stitches from the starting nodes, lazily
// loading extensions between phases, and calls visit for every complete
// partial path found.
func (r *Reader) FindAllCompletePartialPaths(
	startingNodes []graph.NodeHandle,
	flag cancel.Flag,
	visit func(*graph.StackGraph, *partial.PartialPaths, *partial.PartialPath),
) error {
	stitcher := stitch.NewForwardPartialPathStitcher(r.graph, r.partials, r.db, startingNodes)
	for !stitcher.IsComplete() {
		if err := flag.Check("find all complete partial paths"); err != nil {
			return err
		}
		previous := stitcher.PreviousPhasePartialPaths()
		for i := range previous {
			if err := r.LoadPartialPathExtensions(&previous[i]); err != nil {
				return err
			}
		}
		if err := stitcher.ProcessNextPhase(r.graph, r.partials, r.db, flag); err != nil {
			return err
		}
		next := stitcher.PreviousPhasePartialPaths()
		for i := range next {
			if next[i].IsComplete(r.graph) {
				visit(r.graph, r.partials, &next[i])
			}
		}
	}
	return nil
}
