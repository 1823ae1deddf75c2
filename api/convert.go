package api

import (
	"errors"
	"fmt"

	"github.com/agentic-research/tangle/internal/arena"
	"github.com/agentic-research/tangle/internal/graph"
	"github.com/agentic-research/tangle/internal/partial"
	"github.com/agentic-research/tangle/internal/position"
)

var (
	// ErrUnknownFile is returned when serialized data references a file the
	// graph has never seen.
	ErrUnknownFile = errors.New("unknown file")
	// ErrUnknownNode is returned when serialized data references a NodeID
	// that does not exist in the graph.
	ErrUnknownNode = errors.New("unknown node ID")
	// ErrUnknownNodeType is returned when a serialized node carries an
	// unrecognized variant tag.
	ErrUnknownNodeType = errors.New("unknown node type")
)

// FromGraph serializes a whole stack graph.
func FromGraph(g *graph.StackGraph) *StackGraph {
	out := &StackGraph{}
	g.ForEachFile(func(file graph.FileHandle) {
		out.Files = append(out.Files, g.File(file).Name())
	})
	g.ForEachNode(func(node graph.NodeHandle) {
		if !g.Node(node).IsRoot() && !g.Node(node).IsJumpTo() {
			out.Nodes = append(out.Nodes, nodeToAPI(g, node))
		}
		for _, edge := range g.OutgoingEdges(node) {
			out.Edges = append(out.Edges, edgeToAPI(g, edge))
		}
	})
	return out
}

// FromGraphFile serializes the subgraph of a single file: its nodes, plus
// every edge with an endpoint in the file.
func FromGraphFile(g *graph.StackGraph, file graph.FileHandle) *StackGraph {
	out := &StackGraph{Files: []string{g.File(file).Name()}}
	g.NodesForFile(file, func(node graph.NodeHandle) {
		appendNodeAndEdges(g, node, out)
	})
	// Edges into the file from the singleton nodes live in this file's
	// subgraph too; the singletons themselves are implied.
	for _, singleton := range []graph.NodeHandle{g.RootNode(), g.JumpToNode()} {
		for _, edge := range g.OutgoingEdges(singleton) {
			if g.Node(edge.Sink).File() == file {
				out.Edges = append(out.Edges, edgeToAPI(g, edge))
			}
		}
	}
	return out
}

func appendNodeAndEdges(g *graph.StackGraph, node graph.NodeHandle, out *StackGraph) {
	out.Nodes = append(out.Nodes, nodeToAPI(g, node))
	for _, edge := range g.OutgoingEdges(node) {
		out.Edges = append(out.Edges, edgeToAPI(g, edge))
	}
}

func nodeIDToAPI(g *graph.StackGraph, id graph.NodeID) NodeID {
	out := NodeID{LocalID: id.LocalID()}
	if !id.File().IsNil() {
		out.File = g.File(id.File()).Name()
	}
	return out
}

func nodeToAPI(g *graph.StackGraph, node graph.NodeHandle) Node {
	n := g.Node(node)
	out := Node{
		ID:           nodeIDToAPI(g, n.ID),
		IsReference:  n.IsReference,
		IsDefinition: n.IsDefinition,
		IsExported:   n.IsExported,
	}
	switch n.Kind {
	case graph.Root:
		out.Type = NodeTypeRoot
	case graph.JumpToScope:
		out.Type = NodeTypeJumpToScope
	case graph.Scope:
		out.Type = NodeTypeScope
	case graph.PushSymbol:
		out.Type = NodeTypePushSymbol
		out.Symbol = g.SymbolText(n.Symbol)
	case graph.PushScopedSymbol:
		out.Type = NodeTypePushScopedSymbol
		out.Symbol = g.SymbolText(n.Symbol)
		scope := nodeIDToAPI(g, n.ScopeID)
		out.Scope = &scope
	case graph.PopSymbol:
		out.Type = NodeTypePopSymbol
		out.Symbol = g.SymbolText(n.Symbol)
	case graph.PopScopedSymbol:
		out.Type = NodeTypePopScopedSymbol
		out.Symbol = g.SymbolText(n.Symbol)
	case graph.DropScopes:
		out.Type = NodeTypeDropScopes
	}
	if info := g.SourceInfo(node); info != nil {
		out.SourceInfo = sourceInfoToAPI(g, info)
	}
	if info := g.NodeDebugInfo(node); info != nil {
		out.DebugInfo = debugInfoToAPI(g, info)
	}
	return out
}

func edgeToAPI(g *graph.StackGraph, edge graph.Edge) Edge {
	out := Edge{
		Source:     nodeIDToAPI(g, g.Node(edge.Source).ID),
		Sink:       nodeIDToAPI(g, g.Node(edge.Sink).ID),
		Precedence: edge.Precedence,
	}
	if info := g.EdgeDebugInfo(edge.Source, edge.Sink); info != nil {
		out.DebugInfo = debugInfoToAPI(g, info)
	}
	return out
}

func sourceInfoToAPI(g *graph.StackGraph, info *graph.SourceInfo) *SourceInfo {
	out := &SourceInfo{Span: spanToAPI(info.Span)}
	if !info.SyntaxType.IsNil() {
		out.SyntaxType = g.StringText(info.SyntaxType)
	}
	return out
}

func debugInfoToAPI(g *graph.StackGraph, info *graph.DebugInfo) *DebugInfo {
	out := &DebugInfo{}
	for _, entry := range info.Entries {
		out.Entries = append(out.Entries, DebugEntry{
			Key:   g.StringText(entry.Key),
			Value: g.StringText(entry.Value),
		})
	}
	return out
}

func positionToAPI(p position.Position) Position {
	return Position{
		Line:           p.Line,
		Column:         Offset{UTF8: p.Column.UTF8, UTF16: p.Column.UTF16, Grapheme: p.Column.Grapheme},
		ContainingLine: ByteRange{Start: p.ContainingLine.Start, End: p.ContainingLine.End},
		TrimmedLine:    ByteRange{Start: p.TrimmedLine.Start, End: p.TrimmedLine.End},
	}
}

func spanToAPI(s position.Span) Span {
	return Span{Start: positionToAPI(s.Start), End: positionToAPI(s.End)}
}

func positionFromAPI(p Position) position.Position {
	return position.Position{
		Line:           p.Line,
		Column:         position.Offset{UTF8: p.Column.UTF8, UTF16: p.Column.UTF16, Grapheme: p.Column.Grapheme},
		ContainingLine: position.ByteRange{Start: p.ContainingLine.Start, End: p.ContainingLine.End},
		TrimmedLine:    position.ByteRange{Start: p.TrimmedLine.Start, End: p.TrimmedLine.End},
	}
}

// SpanFromAPI converts a serialized span into the position model.
func SpanFromAPI(s Span) position.Span {
	return position.Span{Start: positionFromAPI(s.Start), End: positionFromAPI(s.End)}
}

func (id NodeID) resolveHandle(g *graph.StackGraph) (graph.NodeHandle, error) {
	gid, err := id.resolveID(g)
	if err != nil {
		return arena.NilHandle[graph.Node](), err
	}
	if handle, ok := g.NodeForID(gid); ok {
		return handle, nil
	}
	return arena.NilHandle[graph.Node](), fmt.Errorf("%w: %s(%d)", ErrUnknownNode, id.File, id.LocalID)
}

func (id NodeID) resolveID(g *graph.StackGraph) (graph.NodeID, error) {
	if id.File == "" {
		switch id.LocalID {
		case graph.RootNodeLocalID:
			return graph.RootNodeID(), nil
		case graph.JumpToNodeLocalID:
			return graph.JumpToNodeID(), nil
		default:
			return graph.NodeID{}, fmt.Errorf("%w: (%d)", ErrUnknownNode, id.LocalID)
		}
	}
	file, ok := g.GetFile(id.File)
	if !ok {
		return graph.NodeID{}, fmt.Errorf("%w: %s", ErrUnknownFile, id.File)
	}
	return graph.NewNodeID(file, id.LocalID), nil
}

// LoadInto loads the serialized graph into g. Loading is idempotent: nodes
// that already exist are left alone, and re-added edges are no-ops, so
// loading the same subgraph twice reproduces the same graph.
func (s *StackGraph) LoadInto(g *graph.StackGraph) error {
	for _, name := range s.Files {
		g.GetOrCreateFile(name)
	}
	for i := range s.Nodes {
		if err := s.Nodes[i].loadInto(g); err != nil {
			return err
		}
	}
	for i := range s.Edges {
		if err := s.Edges[i].loadInto(g); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) loadInto(g *graph.StackGraph) error {
	if n.ID.File == "" {
		// The singletons are implied; tolerate serializations that list
		// them anyway.
		if n.Type == NodeTypeRoot || n.Type == NodeTypeJumpToScope {
			return nil
		}
		return fmt.Errorf("%w: %s without file", ErrUnknownNode, n.Type)
	}
	file := g.GetOrCreateFile(n.ID.File)
	id := graph.NewNodeID(file, n.ID.LocalID)
	if _, ok := g.NodeForID(id); ok {
		return nil
	}

	var handle graph.NodeHandle
	var err error
	switch n.Type {
	case NodeTypeScope:
		handle, err = g.AddScopeNode(id, n.IsExported)
	case NodeTypePushSymbol:
		handle, err = g.AddPushSymbolNode(id, g.AddSymbol(n.Symbol), n.IsReference)
	case NodeTypePushScopedSymbol:
		if n.Scope == nil {
			return fmt.Errorf("%w: push_scoped_symbol without scope", ErrUnknownNode)
		}
		scopeID, idErr := n.Scope.resolveIDLenient(g)
		if idErr != nil {
			return idErr
		}
		handle, err = g.AddPushScopedSymbolNode(id, g.AddSymbol(n.Symbol), scopeID, n.IsReference)
	case NodeTypePopSymbol:
		handle, err = g.AddPopSymbolNode(id, g.AddSymbol(n.Symbol), n.IsDefinition)
	case NodeTypePopScopedSymbol:
		handle, err = g.AddPopScopedSymbolNode(id, g.AddSymbol(n.Symbol), n.IsDefinition)
	case NodeTypeDropScopes:
		handle, err = g.AddDropScopesNode(id)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownNodeType, n.Type)
	}
	if err != nil {
		return err
	}

	if n.SourceInfo != nil {
		info := g.SourceInfoPtr(handle)
		info.Span = SpanFromAPI(n.SourceInfo.Span)
		if n.SourceInfo.SyntaxType != "" {
			info.SyntaxType = g.AddString(n.SourceInfo.SyntaxType)
		}
	}
	if n.DebugInfo != nil {
		info := g.NodeDebugInfoPtr(handle)
		for _, entry := range n.DebugInfo.Entries {
			info.Add(g.AddString(entry.Key), g.AddString(entry.Value))
		}
	}
	return nil
}

// resolveIDLenient resolves a NodeID to a graph NodeID without requiring
// the node itself to exist yet; node order within a serialized graph is
// arbitrary, and a push_scoped_symbol node may name a scope that appears
// later.
func (id NodeID) resolveIDLenient(g *graph.StackGraph) (graph.NodeID, error) {
	if id.File == "" {
		return id.resolveID(g)
	}
	return graph.NewNodeID(g.GetOrCreateFile(id.File), id.LocalID), nil
}

func (e *Edge) loadInto(g *graph.StackGraph) error {
	source, err := e.Source.resolveHandle(g)
	if err != nil {
		return err
	}
	sink, err := e.Sink.resolveHandle(g)
	if err != nil {
		return err
	}
	g.AddEdge(source, sink, e.Precedence)
	if e.DebugInfo != nil {
		info := g.EdgeDebugInfoPtr(source, sink)
		if len(info.Entries) == 0 {
			for _, entry := range e.DebugInfo.Entries {
				info.Add(g.AddString(entry.Key), g.AddString(entry.Value))
			}
		}
	}
	return nil
}

// FromPartialPath serializes a partial path.
func FromPartialPath(g *graph.StackGraph, pp *partial.PartialPaths, p *partial.PartialPath) *PartialPath {
	out := &PartialPath{
		StartNode:                nodeIDToAPI(g, g.Node(p.StartNode).ID),
		EndNode:                  nodeIDToAPI(g, g.Node(p.EndNode).ID),
		SymbolStackPrecondition:  symbolStackToAPI(g, pp, p.SymbolStackPrecondition),
		SymbolStackPostcondition: symbolStackToAPI(g, pp, p.SymbolStackPostcondition),
		ScopeStackPrecondition:   scopeStackToAPI(g, pp, p.ScopeStackPrecondition),
		ScopeStackPostcondition:  scopeStackToAPI(g, pp, p.ScopeStackPostcondition),
	}
	p.Edges.ForEach(pp, func(edge partial.PartialPathEdge) {
		out.Edges = append(out.Edges, PartialPathEdge{
			Source:     nodeIDToAPI(g, edge.SourceNodeID),
			Precedence: edge.Precedence,
		})
	})
	return out
}

func symbolStackToAPI(g *graph.StackGraph, pp *partial.PartialPaths, s partial.PartialSymbolStack) PartialSymbolStack {
	out := PartialSymbolStack{Variable: uint32(s.Variable())}
	s.ForEach(pp, func(symbol partial.PartialScopedSymbol) {
		entry := PartialScopedSymbol{Symbol: g.SymbolText(symbol.Symbol)}
		if symbol.HasScopes {
			scopes := scopeStackToAPI(g, pp, symbol.Scopes)
			entry.Scopes = &scopes
		}
		out.Symbols = append(out.Symbols, entry)
	})
	return out
}

func scopeStackToAPI(g *graph.StackGraph, pp *partial.PartialPaths, s partial.PartialScopeStack) PartialScopeStack {
	out := PartialScopeStack{Variable: uint32(s.Variable())}
	s.ForEach(pp, func(scope graph.NodeHandle) {
		out.Scopes = append(out.Scopes, nodeIDToAPI(g, g.Node(scope).ID))
	})
	return out
}

// ToPartialPath resolves the serialized path against a graph. Every file
// and node the path references must already be loaded; unknown references
// are structural errors.
func (p *PartialPath) ToPartialPath(g *graph.StackGraph, pp *partial.PartialPaths) (partial.PartialPath, error) {
	startNode, err := p.StartNode.resolveHandle(g)
	if err != nil {
		return partial.PartialPath{}, err
	}
	endNode, err := p.EndNode.resolveHandle(g)
	if err != nil {
		return partial.PartialPath{}, err
	}
	symPre, err := p.SymbolStackPrecondition.toPartialSymbolStack(g, pp)
	if err != nil {
		return partial.PartialPath{}, err
	}
	symPost, err := p.SymbolStackPostcondition.toPartialSymbolStack(g, pp)
	if err != nil {
		return partial.PartialPath{}, err
	}
	scopePre, err := p.ScopeStackPrecondition.toPartialScopeStack(g, pp)
	if err != nil {
		return partial.PartialPath{}, err
	}
	scopePost, err := p.ScopeStackPostcondition.toPartialScopeStack(g, pp)
	if err != nil {
		return partial.PartialPath{}, err
	}

	out := partial.PartialPath{
		StartNode:                startNode,
		EndNode:                  endNode,
		SymbolStackPrecondition:  symPre,
		SymbolStackPostcondition: symPost,
		ScopeStackPrecondition:   scopePre,
		ScopeStackPostcondition:  scopePost,
	}
	for _, edge := range p.Edges {
		sourceID, err := edge.Source.resolveID(g)
		if err != nil {
			return partial.PartialPath{}, err
		}
		out.Edges.PushBack(pp, partial.PartialPathEdge{
			SourceNodeID: sourceID,
			Precedence:   edge.Precedence,
		})
	}
	return out, nil
}

func (s *PartialSymbolStack) toPartialSymbolStack(g *graph.StackGraph, pp *partial.PartialPaths) (partial.PartialSymbolStack, error) {
	out := partial.EmptyPartialSymbolStack()
	if s.Variable != 0 {
		out = partial.SymbolStackFromVariable(partial.SymbolStackVariable(s.Variable))
	}
	for i := range s.Symbols {
		entry := partial.PartialScopedSymbol{Symbol: g.AddSymbol(s.Symbols[i].Symbol)}
		if s.Symbols[i].Scopes != nil {
			scopes, err := s.Symbols[i].Scopes.toPartialScopeStack(g, pp)
			if err != nil {
				return partial.PartialSymbolStack{}, err
			}
			entry.HasScopes = true
			entry.Scopes = scopes
		}
		out.PushBack(pp, entry)
	}
	return out, nil
}

func (s *PartialScopeStack) toPartialScopeStack(g *graph.StackGraph, pp *partial.PartialPaths) (partial.PartialScopeStack, error) {
	out := partial.EmptyPartialScopeStack()
	if s.Variable != 0 {
		out = partial.ScopeStackFromVariable(partial.ScopeStackVariable(s.Variable))
	}
	for _, scope := range s.Scopes {
		handle, err := scope.resolveHandle(g)
		if err != nil {
			return partial.PartialScopeStack{}, err
		}
		out.PushBack(pp, handle)
	}
	return out, nil
}
