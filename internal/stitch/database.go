// Package stitch implements the phased partial-path stitching algorithm:
// a database of partial paths indexed by their entry condition, and the
// stitchers that repeatedly extend a frontier of paths with compatible
// partial paths fetched from the database.
//
// The database is a lazily loaded view into a storage layer. During
// stitching we repeatedly try to extend the frontier with partial paths
// compatible with it; for large codebases it would be prohibitive to load
// every partial path up front, so between phases the caller gets to load
// exactly the extensions the next phase might need.
package stitch

import (
	"github.com/agentic-research/tangle/internal/arena"
	"github.com/agentic-research/tangle/internal/graph"
	"github.com/agentic-research/tangle/internal/partial"
	"github.com/agentic-research/tangle/internal/paths"
)

// PartialPathHandle identifies a partial path stored in a Database.
type PartialPathHandle = arena.Handle[partial.PartialPath]

type symbolKeyCellHandle = arena.ListCellHandle[graph.SymbolHandle]

type symbolKeyCacheKey struct {
	head graph.SymbolHandle
	tail symbolKeyCellHandle
}

// Database holds the partial paths a stitching session can draw from,
// indexed by start node and, for paths starting at the root, by the
// interned tail of their symbol stack precondition, so that all candidates
// whose precondition is a prefix of a live symbol stack can be found
// cheaply.
type Database struct {
	partialPaths arena.Arena[partial.PartialPath]

	symbolStackKeys     arena.ListArena[graph.SymbolHandle]
	symbolStackKeyCache map[symbolKeyCacheKey]symbolKeyCellHandle

	pathsByStartNode        arena.SupplementalArena[graph.Node, []PartialPathHandle]
	rootPathsByPrecondition map[symbolKeyCellHandle][]PartialPathHandle
}

// NewDatabase returns an empty database.
func NewDatabase() *Database {
	return &Database{
		symbolStackKeyCache:     make(map[symbolKeyCacheKey]symbolKeyCellHandle),
		rootPathsByPrecondition: make(map[symbolKeyCellHandle][]PartialPathHandle),
	}
}

// Get dereferences a partial path handle.
func (db *Database) Get(handle PartialPathHandle) *partial.PartialPath {
	return db.partialPaths.Get(handle)
}

// Len returns the number of partial paths in the database.
func (db *Database) Len() int {
	return db.partialPaths.Len()
}

// AddPartialPath adds a partial path to the database and indexes it. Partial
// paths are not deduplicated; it is the caller's responsibility to add each
// one only once.
func (db *Database) AddPartialPath(g *graph.StackGraph, pp *partial.PartialPaths, path partial.PartialPath) PartialPathHandle {
	handle := db.partialPaths.Add(path)
	if g.Node(path.StartNode).IsRoot() {
		key := db.keyFromPartialSymbolStack(pp, path.SymbolStackPrecondition)
		cell := key.backHandle()
		db.rootPathsByPrecondition[cell] = append(db.rootPathsByPrecondition[cell], handle)
	} else {
		slot := db.pathsByStartNode.Ptr(path.StartNode)
		*slot = append(*slot, handle)
	}
	return handle
}

// FindCandidatePartialPathsFromNode appends to result every partial path
// that starts at the given node. No further filtering happens here: each
// candidate is checked for compatibility during the append anyway, and
// non-root nodes typically have few outgoing paths.
func (db *Database) FindCandidatePartialPathsFromNode(node graph.NodeHandle, result *[]PartialPathHandle) {
	*result = append(*result, db.pathsByStartNode.Get(node)...)
}

// FindCandidatePartialPathsFromRoot appends to result every root-started
// partial path whose symbol stack precondition is a prefix of the given
// concrete symbol stack.
func (db *Database) FindCandidatePartialPathsFromRoot(ps *paths.Paths, symbolStack paths.SymbolStack, result *[]PartialPathHandle) {
	key := symbolStackKey{}
	stack := symbolStack
	for {
		symbol, ok := stack.PopFront(ps)
		if !ok {
			break
		}
		key.pushBack(db, symbol.Symbol)
	}
	db.collectRootCandidates(key, result)
}

// FindCandidatePartialPathsFromRootPartial is the partial-stack flavor of
// FindCandidatePartialPathsFromRoot, keyed on the concrete prefix of a
// symbol stack postcondition.
func (db *Database) FindCandidatePartialPathsFromRootPartial(pp *partial.PartialPaths, symbolStack partial.PartialSymbolStack, result *[]PartialPathHandle) {
	db.collectRootCandidates(db.keyFromPartialSymbolStack(pp, symbolStack), result)
}

func (db *Database) collectRootCandidates(key symbolStackKey, result *[]PartialPathHandle) {
	// Walk the key from deepest to shallowest, so that candidates may
	// consume as much or as little of the live stack as they need.
	for {
		if found, ok := db.rootPathsByPrecondition[key.backHandle()]; ok {
			*result = append(*result, found...)
		}
		if _, ok := key.popBack(db); !ok {
			break
		}
	}
}

func (db *Database) keyFromPartialSymbolStack(pp *partial.PartialPaths, stack partial.PartialSymbolStack) symbolStackKey {
	key := symbolStackKey{}
	stack.ForEach(pp, func(symbol partial.PartialScopedSymbol) {
		key.pushBack(db, symbol.Symbol)
	})
	return key
}

// symbolStackKey is the index key for root-started partial paths. The
// symbols are stored in reverse order, with the front of the list being the
// back of the symbol stack: that makes the handle of the deepest symbol the
// interning point, and makes popping from the back (for prefix searches)
// cheap. Keys are hash-consed so equal keys share cells.
type symbolStackKey struct {
	symbols arena.List[graph.SymbolHandle]
}

func (k *symbolStackKey) pushBack(db *Database, symbol graph.SymbolHandle) {
	cacheKey := symbolKeyCacheKey{head: symbol, tail: k.backHandle()}
	if cell, ok := db.symbolStackKeyCache[cacheKey]; ok {
		k.symbols = arena.ListFromHandle(cell)
		return
	}
	// PushFront because the key stores its symbols in reverse order.
	k.symbols.PushFront(&db.symbolStackKeys, symbol)
	db.symbolStackKeyCache[cacheKey] = k.backHandle()
}

func (k *symbolStackKey) popBack(db *Database) (graph.SymbolHandle, bool) {
	return k.symbols.PopFront(&db.symbolStackKeys)
}

func (k symbolStackKey) backHandle() symbolKeyCellHandle {
	return k.symbols.Handle()
}
