// Package graph implements the stack graph data model: a directed multigraph
// of typed nodes connected by precedence-weighted edges, in which name
// bindings appear as paths.
//
// A graph is built single-threaded through the factory methods and then
// treated as immutable for queries. It is append-only for the lifetime of a
// query session: files and nodes are never removed, and re-indexing a file
// constructs a new graph.
package graph

import (
	"errors"
	"fmt"

	"github.com/agentic-research/tangle/internal/arena"
	"github.com/agentic-research/tangle/internal/position"
)

var (
	// ErrFileAlreadyPresent is returned when adding a file whose name is
	// already taken.
	ErrFileAlreadyPresent = errors.New("file already present")
	// ErrNodeIDCollision is returned when adding a node whose NodeID is
	// already taken.
	ErrNodeIDCollision = errors.New("node ID collision")
	// ErrNodeIDOutsideFile is returned when a non-singleton node is added
	// with a NodeID that does not name a file.
	ErrNodeIDOutsideFile = errors.New("node ID must belong to a file")
)

// File identifies one source file in the graph. Files are interned by name.
type File struct {
	name string
}

// Name returns the file's name.
func (f *File) Name() string {
	return f.name
}

// Symbol is an interned name referenced by code. Symbol equality is handle
// equality.
type Symbol struct {
	value string
}

// Value returns the symbol's text.
func (s *Symbol) Value() string {
	return s.value
}

// InternedString is an auxiliary interned string used for debug and
// syntax-type labels.
type InternedString struct {
	value string
}

// Value returns the string's text.
func (s *InternedString) Value() string {
	return s.value
}

// Reserved local ids for the two singleton nodes shared by all files.
const (
	RootNodeLocalID   uint32 = 1
	JumpToNodeLocalID uint32 = 2
)

// NodeID uniquely identifies a node: an optional owning file plus a 32-bit
// id that is local to that file. The singleton root and jump-to nodes have
// no owning file.
type NodeID struct {
	file    arena.Handle[File]
	localID uint32
}

// RootNodeID returns the id of the singleton root node.
func RootNodeID() NodeID {
	return NodeID{localID: RootNodeLocalID}
}

// JumpToNodeID returns the id of the singleton jump-to-scope node.
func JumpToNodeID() NodeID {
	return NodeID{localID: JumpToNodeLocalID}
}

// NewNodeID returns the id for a node local to a file.
func NewNodeID(file arena.Handle[File], localID uint32) NodeID {
	return NodeID{file: file, localID: localID}
}

// File returns the owning file, or the nil handle for singleton nodes.
func (id NodeID) File() arena.Handle[File] {
	return id.file
}

// LocalID returns the file-local id.
func (id NodeID) LocalID() uint32 {
	return id.localID
}

// IsRoot reports whether this is the root node's id.
func (id NodeID) IsRoot() bool {
	return id.file.IsNil() && id.localID == RootNodeLocalID
}

// IsJumpTo reports whether this is the jump-to-scope node's id.
func (id NodeID) IsJumpTo() bool {
	return id.file.IsNil() && id.localID == JumpToNodeLocalID
}

// IsInFile reports whether the node belongs to file.
func (id NodeID) IsInFile(file arena.Handle[File]) bool {
	return id.file == file && !id.file.IsNil()
}

// Handle aliases for the graph's entity kinds, used throughout the module.
type (
	NodeHandle   = arena.Handle[Node]
	FileHandle   = arena.Handle[File]
	SymbolHandle = arena.Handle[Symbol]
	StringHandle = arena.Handle[InternedString]
)

// NodeKind discriminates the node variants.
type NodeKind uint8

const (
	// Root is the universal source/sink; symbol stacks cross files only
	// through it.
	Root NodeKind = iota
	// JumpToScope is the target of jump-to-scope transitions.
	JumpToScope
	// Scope is a plain scope node; only exported scopes may appear on
	// scope stacks.
	Scope
	// PushSymbol pushes its symbol onto the symbol stack.
	PushSymbol
	// PushScopedSymbol pushes its symbol carrying the current scope stack,
	// capped with a named exported scope.
	PushScopedSymbol
	// PopSymbol consumes a matching symbol from the symbol stack.
	PopSymbol
	// PopScopedSymbol consumes a matching symbol and restores its attached
	// scope stack.
	PopScopedSymbol
	// DropScopes clears the scope stack.
	DropScopes
)

// Node is one node of a stack graph. The Kind field declares the variant;
// the payload fields are meaningful only for the variants that carry them.
type Node struct {
	ID   NodeID
	Kind NodeKind

	// Symbol is set for the push and pop variants.
	Symbol arena.Handle[Symbol]
	// ScopeID names the attached exported scope of a PushScopedSymbol node.
	ScopeID NodeID

	IsReference  bool // push variants that represent references
	IsDefinition bool // pop variants that represent definitions
	IsExported   bool // Scope nodes that may appear on scope stacks
}

// IsRoot reports whether this is the root node.
func (n *Node) IsRoot() bool {
	return n.Kind == Root
}

// IsJumpTo reports whether this is the jump-to-scope node.
func (n *Node) IsJumpTo() bool {
	return n.Kind == JumpToScope
}

// IsExportedScope reports whether this node may appear on a scope stack.
func (n *Node) IsExportedScope() bool {
	return n.Kind == Scope && n.IsExported
}

// File returns the node's owning file, or the nil handle for the singleton
// nodes.
func (n *Node) File() arena.Handle[File] {
	return n.ID.File()
}

// Edge connects two nodes. Multiple edges between the same endpoints are
// allowed and distinguished by precedence; higher precedences shadow lower
// ones when paths compete.
type Edge struct {
	Source     arena.Handle[Node]
	Sink       arena.Handle[Node]
	Precedence int32
}

// SourceInfo records where a node came from in its source file. It exists
// for diagnostics and assertions; the path machine ignores it.
type SourceInfo struct {
	// Span is the node's location, propagated unchanged from the loader.
	Span position.Span
	// SyntaxType is an optional label for the syntactic category.
	SyntaxType arena.Handle[InternedString]
}

// DebugEntry is one free-form key/value annotation.
type DebugEntry struct {
	Key   arena.Handle[InternedString]
	Value arena.Handle[InternedString]
}

// DebugInfo is a free-form key→value map attached to a node or edge.
type DebugInfo struct {
	Entries []DebugEntry
}

// Add appends a key/value pair.
func (d *DebugInfo) Add(key, value arena.Handle[InternedString]) {
	d.Entries = append(d.Entries, DebugEntry{Key: key, Value: value})
}

type edgeKey struct {
	source arena.Handle[Node]
	sink   arena.Handle[Node]
}

// StackGraph holds the nodes and edges of every file loaded into a query
// session, along with the interning tables they reference. The singleton
// root and jump-to nodes are created at construction with fixed handles.
type StackGraph struct {
	files       arena.Arena[File]
	fileByName  map[string]arena.Handle[File]
	symbols     arena.Arena[Symbol]
	symbolByVal map[string]arena.Handle[Symbol]
	strings     arena.Arena[InternedString]
	stringByVal map[string]arena.Handle[InternedString]

	nodes        arena.Arena[Node]
	nodeByID     map[NodeID]arena.Handle[Node]
	nodesForFile arena.SupplementalArena[File, []arena.Handle[Node]]

	outgoing   arena.SupplementalArena[Node, []Edge]
	sourceInfo arena.SupplementalArena[Node, *SourceInfo]
	nodeDebug  arena.SupplementalArena[Node, *DebugInfo]
	edgeDebug  map[edgeKey]*DebugInfo

	root   arena.Handle[Node]
	jumpTo arena.Handle[Node]
}

// New returns an empty stack graph containing only the singleton root and
// jump-to-scope nodes.
func New() *StackGraph {
	g := &StackGraph{
		fileByName:  make(map[string]arena.Handle[File]),
		symbolByVal: make(map[string]arena.Handle[Symbol]),
		stringByVal: make(map[string]arena.Handle[InternedString]),
		nodeByID:    make(map[NodeID]arena.Handle[Node]),
		edgeDebug:   make(map[edgeKey]*DebugInfo),
	}
	g.root = g.nodes.Add(Node{ID: RootNodeID(), Kind: Root})
	g.jumpTo = g.nodes.Add(Node{ID: JumpToNodeID(), Kind: JumpToScope})
	g.nodeByID[RootNodeID()] = g.root
	g.nodeByID[JumpToNodeID()] = g.jumpTo
	return g
}

// RootNode returns the handle of the singleton root node.
func (g *StackGraph) RootNode() arena.Handle[Node] {
	return g.root
}

// JumpToNode returns the handle of the singleton jump-to-scope node.
func (g *StackGraph) JumpToNode() arena.Handle[Node] {
	return g.jumpTo
}

// AddFile interns a file by name. Adding a name twice fails with
// ErrFileAlreadyPresent.
func (g *StackGraph) AddFile(name string) (arena.Handle[File], error) {
	if _, ok := g.fileByName[name]; ok {
		return arena.NilHandle[File](), fmt.Errorf("%w: %s", ErrFileAlreadyPresent, name)
	}
	h := g.files.Add(File{name: name})
	g.fileByName[name] = h
	return h, nil
}

// GetOrCreateFile interns a file by name, returning the existing handle if
// the name is already present.
func (g *StackGraph) GetOrCreateFile(name string) arena.Handle[File] {
	if h, ok := g.fileByName[name]; ok {
		return h
	}
	h, _ := g.AddFile(name)
	return h
}

// GetFile looks up a file by name.
func (g *StackGraph) GetFile(name string) (arena.Handle[File], bool) {
	h, ok := g.fileByName[name]
	return h, ok
}

// File dereferences a file handle.
func (g *StackGraph) File(h arena.Handle[File]) *File {
	return g.files.Get(h)
}

// ForEachFile calls f for every file in the graph.
func (g *StackGraph) ForEachFile(f func(arena.Handle[File])) {
	g.files.ForEachHandle(f)
}

// AddSymbol interns a symbol.
func (g *StackGraph) AddSymbol(value string) arena.Handle[Symbol] {
	if h, ok := g.symbolByVal[value]; ok {
		return h
	}
	h := g.symbols.Add(Symbol{value: value})
	g.symbolByVal[value] = h
	return h
}

// Symbol dereferences a symbol handle.
func (g *StackGraph) Symbol(h arena.Handle[Symbol]) *Symbol {
	return g.symbols.Get(h)
}

// SymbolText returns the text of a symbol.
func (g *StackGraph) SymbolText(h arena.Handle[Symbol]) string {
	return g.symbols.Get(h).value
}

// AddString interns an auxiliary string.
func (g *StackGraph) AddString(value string) arena.Handle[InternedString] {
	if h, ok := g.stringByVal[value]; ok {
		return h
	}
	h := g.strings.Add(InternedString{value: value})
	g.stringByVal[value] = h
	return h
}

// StringText returns the text of an interned string.
func (g *StackGraph) StringText(h arena.Handle[InternedString]) string {
	return g.strings.Get(h).value
}

// Node dereferences a node handle.
func (g *StackGraph) Node(h arena.Handle[Node]) *Node {
	return g.nodes.Get(h)
}

// NodeForID looks up a node by its id.
func (g *StackGraph) NodeForID(id NodeID) (arena.Handle[Node], bool) {
	h, ok := g.nodeByID[id]
	return h, ok
}

// ForEachNode calls f for every node in the graph, singletons included.
func (g *StackGraph) ForEachNode(f func(arena.Handle[Node])) {
	g.nodes.ForEachHandle(f)
}

// NodesForFile calls f for every node belonging to file, in insertion order.
func (g *StackGraph) NodesForFile(file arena.Handle[File], f func(arena.Handle[Node])) {
	for _, h := range g.nodesForFile.Get(file) {
		f(h)
	}
}

func (g *StackGraph) addNode(node Node) (arena.Handle[Node], error) {
	if node.ID.file.IsNil() {
		return arena.NilHandle[Node](), fmt.Errorf("%w: local id %d", ErrNodeIDOutsideFile, node.ID.localID)
	}
	if _, ok := g.nodeByID[node.ID]; ok {
		return arena.NilHandle[Node](), fmt.Errorf("%w: %s(%d)",
			ErrNodeIDCollision, g.files.Get(node.ID.file).name, node.ID.localID)
	}
	h := g.nodes.Add(node)
	g.nodeByID[node.ID] = h
	perFile := g.nodesForFile.Ptr(node.ID.file)
	*perFile = append(*perFile, h)
	return h, nil
}

// AddScopeNode adds a plain scope node. Exported scopes may appear on scope
// stacks.
func (g *StackGraph) AddScopeNode(id NodeID, isExported bool) (arena.Handle[Node], error) {
	return g.addNode(Node{ID: id, Kind: Scope, IsExported: isExported})
}

// AddPushSymbolNode adds a node that pushes symbol onto the symbol stack.
func (g *StackGraph) AddPushSymbolNode(id NodeID, symbol arena.Handle[Symbol], isReference bool) (arena.Handle[Node], error) {
	return g.addNode(Node{ID: id, Kind: PushSymbol, Symbol: symbol, IsReference: isReference})
}

// AddPushScopedSymbolNode adds a node that pushes symbol carrying the
// current scope stack capped with the exported scope named by scope.
func (g *StackGraph) AddPushScopedSymbolNode(id NodeID, symbol arena.Handle[Symbol], scope NodeID, isReference bool) (arena.Handle[Node], error) {
	return g.addNode(Node{ID: id, Kind: PushScopedSymbol, Symbol: symbol, ScopeID: scope, IsReference: isReference})
}

// AddPopSymbolNode adds a node that pops a matching symbol with no attached
// scope list.
func (g *StackGraph) AddPopSymbolNode(id NodeID, symbol arena.Handle[Symbol], isDefinition bool) (arena.Handle[Node], error) {
	return g.addNode(Node{ID: id, Kind: PopSymbol, Symbol: symbol, IsDefinition: isDefinition})
}

// AddPopScopedSymbolNode adds a node that pops a matching symbol and
// restores its attached scope list.
func (g *StackGraph) AddPopScopedSymbolNode(id NodeID, symbol arena.Handle[Symbol], isDefinition bool) (arena.Handle[Node], error) {
	return g.addNode(Node{ID: id, Kind: PopScopedSymbol, Symbol: symbol, IsDefinition: isDefinition})
}

// AddDropScopesNode adds a node that clears the scope stack.
func (g *StackGraph) AddDropScopesNode(id NodeID) (arena.Handle[Node], error) {
	return g.addNode(Node{ID: id, Kind: DropScopes})
}

// AddEdge connects source to sink with the given precedence. Re-adding an
// identical (source, sink, precedence) triple is a no-op; edges between the
// same endpoints with different precedences coexist.
func (g *StackGraph) AddEdge(source, sink arena.Handle[Node], precedence int32) {
	edges := g.outgoing.Ptr(source)
	for _, e := range *edges {
		if e.Sink == sink && e.Precedence == precedence {
			return
		}
	}
	*edges = append(*edges, Edge{Source: source, Sink: sink, Precedence: precedence})
}

// OutgoingEdges returns the edges leaving node. The returned slice is owned
// by the graph and must not be mutated.
func (g *StackGraph) OutgoingEdges(node arena.Handle[Node]) []Edge {
	return g.outgoing.Get(node)
}

// SourceInfoPtr returns the node's source info slot, creating it on first
// use.
func (g *StackGraph) SourceInfoPtr(node arena.Handle[Node]) *SourceInfo {
	slot := g.sourceInfo.Ptr(node)
	if *slot == nil {
		*slot = &SourceInfo{}
	}
	return *slot
}

// SourceInfo returns the node's source info, or nil if none was set.
func (g *StackGraph) SourceInfo(node arena.Handle[Node]) *SourceInfo {
	return g.sourceInfo.Get(node)
}

// NodeDebugInfoPtr returns the node's debug info slot, creating it on first
// use.
func (g *StackGraph) NodeDebugInfoPtr(node arena.Handle[Node]) *DebugInfo {
	slot := g.nodeDebug.Ptr(node)
	if *slot == nil {
		*slot = &DebugInfo{}
	}
	return *slot
}

// NodeDebugInfo returns the node's debug info, or nil if none was set.
func (g *StackGraph) NodeDebugInfo(node arena.Handle[Node]) *DebugInfo {
	return g.nodeDebug.Get(node)
}

// EdgeDebugInfoPtr returns the debug info slot for the (source, sink) edge
// pair, creating it on first use.
func (g *StackGraph) EdgeDebugInfoPtr(source, sink arena.Handle[Node]) *DebugInfo {
	key := edgeKey{source: source, sink: sink}
	if info, ok := g.edgeDebug[key]; ok {
		return info
	}
	info := &DebugInfo{}
	g.edgeDebug[key] = info
	return info
}

// EdgeDebugInfo returns the debug info for the (source, sink) edge pair, or
// nil if none was set.
func (g *StackGraph) EdgeDebugInfo(source, sink arena.Handle[Node]) *DebugInfo {
	return g.edgeDebug[edgeKey{source: source, sink: sink}]
}
