package graph

import "fmt"

// NodeString renders a node for logs and test assertions, e.g. "[root]" or
// "[a.py(1) definition a]".
func (g *StackGraph) NodeString(handle NodeHandle) string {
	n := g.Node(handle)
	switch n.Kind {
	case Root:
		return "[root]"
	case JumpToScope:
		return "[jump to scope]"
	}

	where := fmt.Sprintf("%s(%d)", g.files.Get(n.ID.file).name, n.ID.localID)
	switch n.Kind {
	case Scope:
		if n.IsExported {
			return fmt.Sprintf("[%s exported scope]", where)
		}
		return fmt.Sprintf("[%s scope]", where)
	case PushSymbol:
		if n.IsReference {
			return fmt.Sprintf("[%s reference %s]", where, g.SymbolText(n.Symbol))
		}
		return fmt.Sprintf("[%s push %s]", where, g.SymbolText(n.Symbol))
	case PushScopedSymbol:
		if n.IsReference {
			return fmt.Sprintf("[%s scoped reference %s]", where, g.SymbolText(n.Symbol))
		}
		return fmt.Sprintf("[%s push scoped %s]", where, g.SymbolText(n.Symbol))
	case PopSymbol:
		if n.IsDefinition {
			return fmt.Sprintf("[%s definition %s]", where, g.SymbolText(n.Symbol))
		}
		return fmt.Sprintf("[%s pop %s]", where, g.SymbolText(n.Symbol))
	case PopScopedSymbol:
		if n.IsDefinition {
			return fmt.Sprintf("[%s scoped definition %s]", where, g.SymbolText(n.Symbol))
		}
		return fmt.Sprintf("[%s pop scoped %s]", where, g.SymbolText(n.Symbol))
	case DropScopes:
		return fmt.Sprintf("[%s drop scopes]", where)
	}
	return fmt.Sprintf("[%s]", where)
}
